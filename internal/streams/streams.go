package streams

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"github.com/keithlinneman/httpfilters/internal/xerrors"
)

// DefaultBufferSize is used whenever a caller passes a size <= 0.
const DefaultBufferSize = 64 * 1024

func bufferSize(n int) int {
	if n <= 0 {
		return DefaultBufferSize
	}
	return n
}

// closeQuietly closes any end that is an io.Closer. Close errors are dropped.
func closeQuietly(ends ...any) {
	for _, e := range ends {
		if c, ok := e.(io.Closer); ok && c != nil {
			_ = c.Close()
		}
	}
}

// Copy moves everything from src to dst in chunks of at most size bytes and
// returns the number of bytes written. With forceClose both ends are closed
// before Copy returns, also when it fails or panics.
func Copy(src io.Reader, dst io.Writer, size int, forceClose bool) (n int64, err error) {
	if forceClose {
		defer closeQuietly(src, dst)
	}
	size = bufferSize(size)

	br := bufio.NewReaderSize(src, size)
	bw := bufio.NewWriterSize(dst, size)
	buf := make([]byte, size)

	for {
		nr, rerr := br.Read(buf)
		if nr > 0 {
			nw, werr := bw.Write(buf[:nr])
			n += int64(nw)
			if werr != nil {
				return n, xerrors.Wrap(werr, "write")
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return n, xerrors.Wrap(rerr, "read")
		}
	}
	if ferr := bw.Flush(); ferr != nil {
		return n, xerrors.Wrap(ferr, "flush")
	}
	return n, nil
}

// ReadAll drains src into memory.
func ReadAll(src io.Reader, size int, forceClose bool) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := Copy(src, &buf, size, forceClose); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadAllDefault is ReadAll with DefaultBufferSize.
func ReadAllDefault(src io.Reader, forceClose bool) ([]byte, error) {
	return ReadAll(src, DefaultBufferSize, forceClose)
}

// Append returns a new slice holding a followed by b. Neither input is
// modified and the result shares memory with neither.
func Append(a, b []byte) []byte {
	out := make([]byte, len(a)+len(b))
	copy(out, a)
	copy(out[len(a):], b)
	return out
}

// Compare reports whether a and b yield the same bytes and end together.
// Both sources are closed before it returns.
func Compare(a, b io.Reader) (bool, error) {
	defer closeQuietly(a, b)

	ra, rb := bufio.NewReader(a), bufio.NewReader(b)
	for {
		ca, errA := ra.ReadByte()
		cb, errB := rb.ReadByte()

		if errA != nil && !errors.Is(errA, io.EOF) {
			return false, xerrors.Wrap(errA, "read first stream")
		}
		if errB != nil && !errors.Is(errB, io.EOF) {
			return false, xerrors.Wrap(errB, "read second stream")
		}

		endA, endB := errA != nil, errB != nil
		switch {
		case endA && endB:
			return true, nil
		case endA != endB:
			return false, nil
		case ca != cb:
			return false, nil
		}
	}
}

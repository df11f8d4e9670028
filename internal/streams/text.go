package streams

import (
	"bufio"
	"io"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/keithlinneman/httpfilters/internal/xerrors"
)

// CopyText copies UTF-8 text from src to dst one rune at a time, size runes
// per batch, and returns the number of runes written. Invalid sequences come
// out as U+FFFD. forceClose behaves as in Copy.
func CopyText(src io.Reader, dst io.Writer, size int, forceClose bool) (n int64, err error) {
	if forceClose {
		defer closeQuietly(src, dst)
	}
	size = bufferSize(size)

	br := bufio.NewReaderSize(src, size)
	bw := bufio.NewWriterSize(dst, size)
	batch := make([]rune, 0, size)

	flushBatch := func() error {
		for _, r := range batch {
			if _, werr := bw.WriteRune(r); werr != nil {
				return xerrors.Wrap(werr, "write")
			}
			n++
		}
		batch = batch[:0]
		return nil
	}

	for {
		r, _, rerr := br.ReadRune()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if ferr := flushBatch(); ferr != nil {
				return n, ferr
			}
			return n, xerrors.Wrap(rerr, "read")
		}
		batch = append(batch, r)
		if len(batch) == size {
			if ferr := flushBatch(); ferr != nil {
				return n, ferr
			}
		}
	}
	if ferr := flushBatch(); ferr != nil {
		return n, ferr
	}
	if ferr := bw.Flush(); ferr != nil {
		return n, xerrors.Wrap(ferr, "flush")
	}
	return n, nil
}

// DecodeText returns a reader that yields src decoded from charset to UTF-8.
// Charset names follow the WHATWG encoding labels ("utf-8", "latin1",
// "windows-1252", "shift_jis", ...).
func DecodeText(src io.Reader, charset string) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, xerrors.Wrapf(err, "unknown charset %q", charset)
	}
	return transform.NewReader(src, enc.NewDecoder()), nil
}

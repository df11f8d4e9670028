package capture

import (
	"bufio"
	"net"
	"net/http"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/keithlinneman/httpfilters/internal/streams"
)

// Writer wraps an http.ResponseWriter and records the status, status
// message, headers and body size the handler produced. Operations are
// forwarded to the wrapped writer before they are recorded. A Writer serves
// one request and is not safe for concurrent use.
type Writer struct {
	w    http.ResponseWriter
	sink Sink

	status    int
	msg       string
	hasMsg    bool
	headers   HeaderTable
	body      streams.Null
	committed bool

	// seen is the wrapped header map as of the last operation this Writer
	// made, used to spot edits made directly through Header().
	seen http.Header
}

var (
	_ http.ResponseWriter = (*Writer)(nil)
	_ http.Flusher        = (*Writer)(nil)
	_ http.Hijacker       = (*Writer)(nil)
	_ Sink                = (*Writer)(nil)
)

// New wraps w. If w is itself a Sink (another Writer, for instance) the Sink
// operations are forwarded to it so nested captures see them too.
func New(w http.ResponseWriter) *Writer {
	s, ok := w.(Sink)
	if !ok {
		s = HTTPSink{W: w}
	}
	return &Writer{w: w, sink: s, seen: w.Header().Clone()}
}

// Unwrap lets http.ResponseController reach the wrapped writer.
func (c *Writer) Unwrap() http.ResponseWriter { return c.w }

func (c *Writer) Header() http.Header { return c.w.Header() }

func (c *Writer) WriteHeader(code int) {
	if informational(code) {
		c.w.WriteHeader(code)
		return
	}
	c.commit()
	c.w.WriteHeader(code)
	c.status = code
}

func (c *Writer) Write(p []byte) (int, error) {
	c.commit()
	n, err := c.w.Write(p)
	if c.status == 0 {
		c.status = http.StatusOK
	}
	_, _ = c.body.Write(p[:n])
	return n, err
}

func (c *Writer) Flush() {
	c.commit()
	_ = http.NewResponseController(c.w).Flush()
}

func (c *Writer) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(c.w).Hijack()
}

func (c *Writer) AddHeader(name, value string) {
	c.sink.AddHeader(name, value)
	c.headers.Add(name, value)
	c.sync(name)
}

func (c *Writer) SetHeader(name, value string) {
	c.sink.SetHeader(name, value)
	c.headers.Set(name, value)
	c.sync(name)
}

func (c *Writer) AddDateHeader(name string, t time.Time) {
	c.sink.AddDateHeader(name, t)
	c.headers.Add(name, formatDate(t))
	c.sync(name)
}

func (c *Writer) SetDateHeader(name string, t time.Time) {
	c.sink.SetDateHeader(name, t)
	c.headers.Set(name, formatDate(t))
	c.sync(name)
}

func (c *Writer) AddIntHeader(name string, v int) {
	c.sink.AddIntHeader(name, v)
	c.headers.Add(name, strconv.Itoa(v))
	c.sync(name)
}

func (c *Writer) SetIntHeader(name string, v int) {
	c.sink.SetIntHeader(name, v)
	c.headers.Set(name, strconv.Itoa(v))
	c.sync(name)
}

// SetStatus records code and leaves any earlier status message in place.
func (c *Writer) SetStatus(code int) {
	if informational(code) {
		c.sink.SetStatus(code)
		return
	}
	c.commit()
	c.sink.SetStatus(code)
	c.status = code
}

func (c *Writer) SetStatusMessage(code int, msg string) {
	c.commit()
	c.sink.SetStatusMessage(code, msg)
	c.status, c.msg, c.hasMsg = code, msg, true
}

// SendError forwards to the wrapped Sink's error page for code. Any earlier
// status message is kept.
func (c *Writer) SendError(code int) error {
	c.commit()
	err := c.sink.SendError(code)
	c.recordError(code, http.StatusText(code), err)
	return err
}

func (c *Writer) SendErrorMessage(code int, msg string) error {
	c.commit()
	err := c.sink.SendErrorMessage(code, msg)
	c.recordError(code, msg, err)
	c.msg, c.hasMsg = msg, true
	return err
}

// recordError mirrors the headers and body an error page carries. The body
// only counts when the Sink reported it written.
func (c *Writer) recordError(code int, body string, err error) {
	c.status = code
	c.headers.Del("Content-Length")
	c.headers.setFold("Content-Type", errorContentType)
	c.headers.setFold("X-Content-Type-Options", "nosniff")
	for _, k := range []string{"Content-Length", "Content-Type", "X-Content-Type-Options"} {
		c.sync(k)
	}
	if err == nil {
		_, _ = c.body.Write([]byte(body + "\n"))
	}
}

// StatusCode is the last status sent, 0 if none was.
func (c *Writer) StatusCode() int { return c.status }

// StatusMessage is the last explicit status message, if one was given.
func (c *Writer) StatusMessage() (string, bool) { return c.msg, c.hasMsg }

// HeaderNames lists captured header names in the order they were first set.
func (c *Writer) HeaderNames() []string {
	t := c.view()
	return t.Names()
}

// HeaderValues returns a copy of the captured values for name, matched
// case-sensitively, or nil.
func (c *Writer) HeaderValues(name string) []string {
	t := c.view()
	return t.Values(name)
}

// BytesWritten is the number of body bytes accepted by the wrapped writer.
func (c *Writer) BytesWritten() int64 { return c.body.Size() }

func (c *Writer) sync(name string) {
	key := http.CanonicalHeaderKey(name)
	if vals, ok := c.w.Header()[key]; ok {
		c.seen[key] = slices.Clone(vals)
	} else {
		delete(c.seen, key)
	}
}

func (c *Writer) commit() {
	if c.committed {
		return
	}
	c.mirrorDirect(&c.headers, true)
	c.committed = true
}

// view is the captured table as it would look if the response committed
// now. Pending direct edits go into a copy so reads leave no trace.
func (c *Writer) view() *HeaderTable {
	if c.committed {
		return &c.headers
	}
	t := c.headers.clone()
	c.mirrorDirect(&t, false)
	return &t
}

// mirrorDirect copies headers that were changed through the Header() map
// rather than a Sink method into t. Only the pre-commit state counts since
// later map edits never reach the wire. With record set the edits are also
// marked as seen.
func (c *Writer) mirrorDirect(t *HeaderTable, record bool) {
	cur := c.w.Header()
	keys := make([]string, 0, len(cur))
	for k := range cur {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vals := cur[k]
		if slices.Equal(vals, c.seen[k]) || len(vals) == 0 {
			continue
		}
		name := k
		if stored, ok := t.nameFold(k); ok {
			name = stored
		}
		t.replace(name, vals)
		if record {
			c.seen[k] = slices.Clone(vals)
		}
	}
}

// informational reports whether code is a 1xx response that precedes the
// final one. 101 ends the exchange, so it counts as final.
func informational(code int) bool {
	return code >= 100 && code < 200 && code != http.StatusSwitchingProtocols
}

package capture

import (
	"io"
	"net/http"
	"strconv"
	"time"
)

// Sink is the set of response operations a handler can perform beyond
// writing the body.
type Sink interface {
	AddHeader(name, value string)
	SetHeader(name, value string)
	AddDateHeader(name string, t time.Time)
	SetDateHeader(name string, t time.Time)
	AddIntHeader(name string, v int)
	SetIntHeader(name string, v int)
	SetStatus(code int)
	SetStatusMessage(code int, msg string)
	SendError(code int) error
	SendErrorMessage(code int, msg string) error
}

// HTTPSink performs Sink operations directly on a ResponseWriter.
type HTTPSink struct {
	W http.ResponseWriter
}

var _ Sink = HTTPSink{}

func (s HTTPSink) AddHeader(name, value string) { s.W.Header().Add(name, value) }
func (s HTTPSink) SetHeader(name, value string) { s.W.Header().Set(name, value) }

func (s HTTPSink) AddDateHeader(name string, t time.Time) {
	s.AddHeader(name, formatDate(t))
}

func (s HTTPSink) SetDateHeader(name string, t time.Time) {
	s.SetHeader(name, formatDate(t))
}

func (s HTTPSink) AddIntHeader(name string, v int) { s.AddHeader(name, strconv.Itoa(v)) }
func (s HTTPSink) SetIntHeader(name string, v int) { s.SetHeader(name, strconv.Itoa(v)) }

func (s HTTPSink) SetStatus(code int) { s.W.WriteHeader(code) }

// SetStatusMessage sends code. net/http always uses the standard reason
// phrase, so msg is not transmitted.
func (s HTTPSink) SetStatusMessage(code int, _ string) { s.W.WriteHeader(code) }

func (s HTTPSink) SendError(code int) error {
	return s.SendErrorMessage(code, http.StatusText(code))
}

// SendErrorMessage writes a plain-text error response like http.Error and
// returns the body write error, if any.
func (s HTTPSink) SendErrorMessage(code int, msg string) error {
	h := s.W.Header()
	h.Del("Content-Length")
	h.Set("Content-Type", errorContentType)
	h.Set("X-Content-Type-Options", "nosniff")
	s.W.WriteHeader(code)
	_, err := io.WriteString(s.W, msg+"\n")
	return err
}

const errorContentType = "text/plain; charset=utf-8"

func formatDate(t time.Time) string { return t.UTC().Format(http.TimeFormat) }

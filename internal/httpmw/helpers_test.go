package httpmw

import (
	"context"
	"sync"

	"github.com/keithlinneman/httpfilters/internal/log"
)

type capturedLog struct {
	level  string
	msg    string
	err    error
	fields []any
}

// spyLogger records every call. With returns the same spy so records made
// through derived loggers land in one place; the With fields are kept too.
type spyLogger struct {
	mu    sync.Mutex
	logs  []capturedLog
	withs [][]any
}

func newSpyLogger() *spyLogger { return &spyLogger{} }

func (s *spyLogger) add(level string, err error, msg string, kv []any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, capturedLog{level: level, msg: msg, err: err, fields: kv})
}

func (s *spyLogger) With(kv ...any) log.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.withs = append(s.withs, kv)
	return s
}

func (s *spyLogger) Debug(_ context.Context, msg string, kv ...any) { s.add("debug", nil, msg, kv) }
func (s *spyLogger) Info(_ context.Context, msg string, kv ...any)  { s.add("info", nil, msg, kv) }
func (s *spyLogger) Warn(_ context.Context, msg string, kv ...any)  { s.add("warn", nil, msg, kv) }
func (s *spyLogger) Error(_ context.Context, err error, msg string, kv ...any) {
	s.add("error", err, msg, kv)
}
func (s *spyLogger) Sync() error { return nil }

func (s *spyLogger) byLevel(level string) []capturedLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []capturedLog
	for _, l := range s.logs {
		if l.level == level {
			out = append(out, l)
		}
	}
	return out
}

func (s *spyLogger) all() []capturedLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]capturedLog(nil), s.logs...)
}

// field returns the value for key in kv.
func field(kv []any, key string) (any, bool) {
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i] == key {
			return kv[i+1], true
		}
	}
	return nil, false
}

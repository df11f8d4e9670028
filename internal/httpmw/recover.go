package httpmw

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/keithlinneman/httpfilters/internal/capture"
	"github.com/keithlinneman/httpfilters/internal/log"
	"github.com/keithlinneman/httpfilters/internal/xerrors"
)

// Recover turns a handler panic into a 500 and an error log line.
// http.ErrAbortHandler is re-panicked so net/http can drop the connection
// quietly. onPanic may be nil.
func Recover(L log.Logger, onPanic func()) Middleware {
	if L == nil {
		L = log.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}
				if onPanic != nil {
					onPanic()
				}

				err, ok := v.(error)
				if !ok {
					err = fmt.Errorf("%v", v)
				}
				L.With(
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
					"request_id", RequestIDFromContext(r.Context()),
				).Error(r.Context(), xerrors.WithStack(err), "panic recovered")

				_ = capture.HTTPSink{W: w}.SendError(http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

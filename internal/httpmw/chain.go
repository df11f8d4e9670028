package httpmw

import "net/http"

// Middleware wraps a handler with behavior that runs around it.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so that the first middleware in the
// list is the outermost, and the last is innermost, wrapping h.
// nil entries are skipped. Build the chain once and reuse it.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	wrapped := h
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return wrapped
}

// Around builds a Middleware from a function that receives the request,
// the response and the rest of the chain. Returning without calling
// next.ServeHTTP stops the chain there.
func Around(fn func(w http.ResponseWriter, r *http.Request, next http.Handler)) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fn(w, r, next)
		})
	}
}

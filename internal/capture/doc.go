// Package capture records what a handler did to its response.
//
// Writer decorates an http.ResponseWriter: every header, status and body
// operation is passed to the wrapped writer first and then mirrored into
// local state that middleware can read once the handler returns. Header
// names keep the case and order the handler used.
package capture

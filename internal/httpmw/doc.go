// Package httpmw provides the HTTP middleware that sits in front of the
// site handlers.
//
// Middleware is composed with Chain, first entry outermost. The reference
// server in internal/httpserver builds this order:
// recover, request ID, client IP, request logger, timing, trace log, rate
// limiting, body limit, basic auth, then the chi router.
//
// BasicAuth only extracts credentials. It never checks them against
// anything, and a malformed Authorization header is let through with no
// credentials attached. Handlers that need an authenticated caller must
// verify CredentialsFromContext themselves.
package httpmw

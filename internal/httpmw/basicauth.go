package httpmw

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/keithlinneman/httpfilters/internal/log"
	"github.com/keithlinneman/httpfilters/internal/xerrors"
)

// DefaultRealm is the realm sent in the challenge when none is configured.
const DefaultRealm = "SAPERION"

// Basic auth outcomes reported to the observer.
const (
	AuthChallenged  = "challenged"
	AuthDecoded     = "decoded"
	AuthUndecodable = "undecodable"
)

// Credentials are the username and password a client sent. They have not
// been checked.
type Credentials struct {
	Username string
	Password string
}

type credentialsKey struct{}

// WithCredentials attaches c to ctx.
func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, c)
}

// CredentialsFromContext returns the credentials BasicAuth extracted for
// this request.
func CredentialsFromContext(ctx context.Context) (Credentials, bool) {
	c, ok := ctx.Value(credentialsKey{}).(Credentials)
	return c, ok
}

type basicAuthConfig struct {
	observe func(outcome string)
}

type BasicAuthOption func(*basicAuthConfig)

// WithAuthObserver receives one of AuthChallenged, AuthDecoded or
// AuthUndecodable per request.
func WithAuthObserver(fn func(outcome string)) BasicAuthOption {
	return func(c *basicAuthConfig) { c.observe = fn }
}

// basicPrefixLen is the length of "Basic " and is skipped whatever the
// first six bytes are.
const basicPrefixLen = 6

// BasicAuth challenges requests that carry no Authorization header with a
// 401 and stops the chain. Requests that carry one always continue:
// decodable credentials are stored in the context, anything else is logged
// at debug and dropped.
//
// Nothing here verifies the credentials. A request with any Authorization
// header reaches the next handler, so handlers must do their own check.
func BasicAuth(realm string, opts ...BasicAuthOption) Middleware {
	if realm == "" {
		realm = DefaultRealm
	}
	challenge := `BASIC realm="` + realm + `"`

	var cfg basicAuthConfig
	for _, o := range opts {
		o(&cfg)
	}
	report := func(outcome string) {
		if cfg.observe != nil {
			cfg.observe(outcome)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header, present := r.Header["Authorization"]
			if !present || len(header) == 0 {
				w.Header().Set("WWW-Authenticate", challenge)
				w.WriteHeader(http.StatusUnauthorized)
				report(AuthChallenged)
				return
			}

			creds, err := parseBasic(header[0])
			if err != nil {
				log.FromContext(r.Context()).Debug(r.Context(), "ignoring undecodable basic credentials",
					"reason", err.Error(),
				)
				report(AuthUndecodable)
				next.ServeHTTP(w, r)
				return
			}

			report(AuthDecoded)
			next.ServeHTTP(w, r.WithContext(WithCredentials(r.Context(), creds)))
		})
	}
}

func parseBasic(header string) (Credentials, error) {
	if len(header) < basicPrefixLen {
		return Credentials{}, xerrors.New("authorization header shorter than scheme prefix")
	}
	payload := strings.TrimSpace(header[basicPrefixLen:])

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return Credentials{}, xerrors.Wrap(err, "decode basic credentials")
		}
	}

	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok {
		return Credentials{}, xerrors.New("basic credentials have no ':' separator")
	}
	return Credentials{Username: user, Password: pass}, nil
}

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/keithlinneman/httpfilters/internal/capture"
	"github.com/keithlinneman/httpfilters/internal/httpmw"
	"github.com/keithlinneman/httpfilters/internal/log"
	"github.com/keithlinneman/httpfilters/internal/streams"
)

type whoamiResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	HasPassword   bool   `json:"has_password"`
	// Verified is always false: the filter extracts credentials and never
	// checks them.
	Verified  bool   `json:"verified"`
	RequestID string `json:"request_id,omitempty"`
}

// whoami reports what the Basic-Auth filter extracted. The password itself
// is never echoed.
func whoami(w http.ResponseWriter, r *http.Request) {
	creds, ok := httpmw.CredentialsFromContext(r.Context())
	resp := whoamiResponse{
		Authenticated: ok,
		Username:      creds.Username,
		HasPassword:   creds.Password != "",
		RequestID:     httpmw.RequestIDFromContext(r.Context()),
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(resp)
}

// echo copies the request body back. With ?charset=<name> the body is
// decoded from that charset and returned as UTF-8 text.
func echo(w http.ResponseWriter, r *http.Request) {
	cw := capture.New(w)
	ctx := r.Context()

	var err error
	if cs := r.URL.Query().Get("charset"); cs != "" {
		src, derr := streams.DecodeText(r.Body, cs)
		if derr != nil {
			_ = cw.SendErrorMessage(http.StatusBadRequest, "unsupported charset")
			return
		}
		cw.SetHeader("Content-Type", "text/plain; charset=utf-8")
		_, err = streams.CopyText(src, cw, 0, false)
	} else {
		ct := r.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}
		cw.SetHeader("Content-Type", ct)
		_, err = streams.Copy(r.Body, cw, 0, false)
	}
	if err == nil {
		return
	}

	var tooBig *http.MaxBytesError
	switch {
	case cw.StatusCode() != 0:
		// body already on the wire
		log.FromContext(ctx).Warn(ctx, "echo interrupted", "err", err, "bytes", cw.BytesWritten())
	case errors.As(err, &tooBig):
		_ = cw.SendError(http.StatusRequestEntityTooLarge)
	default:
		_ = cw.SendError(http.StatusBadRequest)
	}
}

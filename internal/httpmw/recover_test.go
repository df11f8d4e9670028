package httpmw

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecover_NoPanic(t *testing.T) {
	spy := newSpyLogger()
	h := Recover(spy, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Custom", "value")
		w.WriteHeader(http.StatusCreated)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", http.NoBody))

	if rec.Code != http.StatusCreated || rec.Header().Get("X-Custom") != "value" {
		t.Fatalf("code=%d headers=%v", rec.Code, rec.Header())
	}
	if len(spy.byLevel("error")) != 0 {
		t.Fatal("nothing should be logged")
	}
}

func TestRecover_Panics(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"string", "something broke"},
		{"error", errors.New("database connection lost")},
		{"int", 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := newSpyLogger()
			panics := 0
			h := Recover(spy, func() { panics++ })(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic(tt.value)
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/submit", http.NoBody))

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", rec.Code)
			}
			if rec.Body.String() != "Internal Server Error\n" {
				t.Fatalf("body = %q", rec.Body.String())
			}
			errs := spy.byLevel("error")
			if len(errs) != 1 || errs[0].msg != "panic recovered" || errs[0].err == nil {
				t.Fatalf("logged = %+v", errs)
			}
			if panics != 1 {
				t.Fatalf("onPanic calls = %d", panics)
			}
		})
	}
}

func TestRecover_WrapsErrorValue(t *testing.T) {
	spy := newSpyLogger()
	cause := errors.New("root")
	h := Recover(spy, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(cause) }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if err := spy.byLevel("error")[0].err; !errors.Is(err, cause) {
		t.Fatalf("logged err %v does not wrap the panic value", err)
	}
}

func TestRecover_RepanicsAbortHandler(t *testing.T) {
	h := Recover(newSpyLogger(), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if v := recover(); v != http.ErrAbortHandler {
			t.Fatalf("recovered %v, want http.ErrAbortHandler", v)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
}

func TestRecover_NilLogger(t *testing.T) {
	h := Recover(nil, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("x") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

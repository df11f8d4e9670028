package opshttp

import (
	"net/http"

	"github.com/keithlinneman/httpfilters/internal/health"
)

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe
	// OnPanic runs when a handler panic is recovered, e.g. to count it.
	OnPanic func()
}

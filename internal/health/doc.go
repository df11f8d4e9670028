// Package health holds the liveness and readiness probes served on the
// admin listener.
//
// A Probe returns nil when healthy and an error carrying the reason
// otherwise. ShutdownGate fails readiness as soon as shutdown starts so the
// load balancer stops routing before in-flight requests drain.
package health

// Package ratelimit throttles requests per client address with token
// buckets from golang.org/x/time/rate.
//
// State lives in memory on one instance and idle buckets are evicted in the
// background. It limits a single noisy client. It does not help against
// traffic spread over many addresses.
package ratelimit

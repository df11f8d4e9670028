// Package blobhttp serves objects from one S3 bucket under a route
// wildcard. Object bodies are streamed to the client with streams.Copy and
// closed on every exit path.
package blobhttp

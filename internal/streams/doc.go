// Package streams copies, drains and compares byte and text streams.
//
// Copy and CopyText move data through buffered readers and writers and can
// close both ends when the caller hands over ownership. Null is a counting
// sink used to measure response bodies without keeping them.
package streams

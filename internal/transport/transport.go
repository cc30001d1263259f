// SPDX-License-Identifier: MIT

// Package transport publishes spectrum and now-playing data to external
// consumers. Implementations are thread-safe; the poller goroutine calls
// Send, shutdown calls Close.
package transport

// Transport is a generic sink for outbound frames.
type Transport interface {
	Send(data any) error
	Close() error
}

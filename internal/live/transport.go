package live

import (
	"context"
	"errors"
)

// ErrTransport wraps connection failures: a dial that did not open or a
// socket that closed unexpectedly.
var ErrTransport = errors.New("live transport error")

// Transport opens duplex connections to the conversational endpoint.
type Transport interface {
	// Dial connects and configures the remote session. It returns once the
	// endpoint has accepted the configuration.
	Dial(ctx context.Context, cfg Config) (Conn, error)
}

// Conn is an open duplex connection.
type Conn interface {
	// SendAudio sends one base64 16-bit PCM frame tagged as realtime input.
	SendAudio(base64PCM string) error
	// Receive blocks for the next message. It returns io.EOF after a clean
	// close by the remote side.
	Receive() (*ServerMessage, error)
	// Close closes the connection. Safe to call more than once.
	Close() error
}

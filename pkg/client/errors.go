package client

import "errors"

// Client errors. ErrClientClosed is terminal ("this client is gone");
// ErrConnectionLost and ErrHandshakeFailed are connectivity failures
// ("try again"). Callers distinguish them with errors.Is.
var (
	// ErrClientClosed indicates the client was shut down. All calls after
	// Shutdown fail with this error and the client never reconnects.
	ErrClientClosed = errors.New("client is shut down")

	// ErrConnectionLost indicates the connection died while a request was
	// in flight. The request was not retried; the caller decides whether
	// re-issuing is safe.
	ErrConnectionLost = errors.New("connection lost")

	// ErrHandshakeFailed indicates the connect sequence exhausted its
	// retries without authenticating.
	ErrHandshakeFailed = errors.New("handshake failed")

	// ErrQueueFull indicates the offline request queue hit its bound.
	ErrQueueFull = errors.New("request queue full")
)

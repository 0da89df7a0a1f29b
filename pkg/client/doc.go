// Package client implements the gateway connection manager: one
// authenticated, long-lived websocket RPC connection multiplexing many
// concurrent requests and asynchronous events.
//
// The externally visible surface is the Client façade:
//
//	c, err := client.New(cfg)
//	payload, err := c.Request(ctx, "sessions.list", nil)
//	stop := c.OnEvent(func(ev *wire.EventFrame) { ... })
//	err = c.EnsureConnected(ctx)
//	err = c.Shutdown()
//
// Requests issued while disconnected are queued in submission order and
// flushed once the handshake authenticates. Responses are correlated to
// requests by client-generated ids, so they may arrive in any order.
// Disconnects fail only the requests that were in flight; queued work
// survives and is retried after reconnection. After Shutdown every call
// fails fast with ErrClientClosed.
//
// Internally the client drives a handshake state machine (open socket,
// await the connect.challenge event, sign the device assertion, send the
// connect request), a heartbeat monitor that tears down silently-dead
// connections, and a reconnection scheduler with tabled-then-doubling
// backoff.
package client

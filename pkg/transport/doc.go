// Package transport provides the websocket session layer of the gateway
// client.
//
// A Session owns exactly one physical duplex connection. It exposes
// send/close primitives and raises callbacks for inbound messages,
// errors, and closure. Delivery starts only when the caller invokes
// Start, so routing can be wired up before the first frame arrives.
// Sessions are single-use: after the socket closes the session is dead
// and a new one must be dialed.
//
// Sessions are independent of each other. Closing a session never
// affects a session opened after it, which guards the connection manager
// against delayed close events from superseded sockets.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      JSON frames (pkg/wire)    │
//	├────────────────────────────────┤
//	│     websocket text messages    │
//	├────────────────────────────────┤
//	│          TCP (+TLS)            │
//	└────────────────────────────────┘
package transport

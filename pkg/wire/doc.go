// Package wire defines the gateway wire protocol: JSON frames exchanged
// over a duplex websocket between the client and the gateway.
//
// Three frame kinds exist:
//   - request:  { "type": "req",   "id": ..., "method": ..., "params": ... }
//   - response: { "type": "res",   "id": ..., "ok": ..., "payload"|"error": ... }
//   - event:    { "type": "event", "event": ..., "payload": ..., "seq": ... }
//
// Some gateway builds emit "evt" instead of "event"; the decoder accepts
// both, the encoder always writes "event".
//
// The first request on every connection is the "connect" method carrying a
// ConnectParams with the signed device assertion (see pkg/identity).
package wire

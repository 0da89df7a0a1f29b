// Package discovery finds gateways on the local network via mDNS.
//
// Gateways advertise the service type "_gatewire._tcp" with TXT records
// describing the endpoint (display name, protocol range, TLS, websocket
// path). Browse streams gateways as they appear; Find waits for one
// specific gateway by name.
package discovery

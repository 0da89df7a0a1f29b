// Package identity manages the long-lived device identity of a client
// installation and produces the signed connect assertion presented during
// the gateway handshake.
//
// The identity is an Ed25519 keypair generated on first use and persisted
// to a JSON record at a fixed path with owner-only permissions. The device
// id is the hex SHA-256 digest of the raw public key, so it is stable for
// the lifetime of the keypair and reproducible across restarts.
package identity

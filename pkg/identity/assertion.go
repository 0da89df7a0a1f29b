package identity

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gatewire/gatewire-go/pkg/wire"
)

// Assertion format versions. V2 is selected whenever the gateway offered
// a challenge nonce; V1 is the legacy no-nonce form. The two canonical
// strings differ, so a signature made for one never verifies as the other.
const (
	AssertionV1 = "v1"
	AssertionV2 = "v2"
)

// AssertionInput collects the caller-supplied fields of an assertion.
type AssertionInput struct {
	ClientID   string
	ClientMode string
	Role       string
	Scopes     []string
	Token      string

	// Nonce is the server-issued challenge nonce, empty on the legacy path.
	Nonce string
}

// Signer builds and signs connect assertions for one device identity.
// It is a pure function of its inputs plus the current clock.
type Signer struct {
	identity *DeviceIdentity

	// now is replaceable for tests.
	now func() time.Time
}

// NewSigner creates a signer for the given identity.
func NewSigner(id *DeviceIdentity) *Signer {
	return &Signer{identity: id, now: time.Now}
}

// BuildAssertion composes the canonical string for in, signs it with the
// device private key and returns the wire-ready device assertion.
func (s *Signer) BuildAssertion(in AssertionInput) wire.DeviceAssertion {
	signedAt := s.now().UnixMilli()
	canonical := CanonicalString(s.identity.DeviceID, in, signedAt)
	sig := ed25519.Sign(s.identity.privateKey, []byte(canonical))

	return wire.DeviceAssertion{
		ID:        s.identity.DeviceID,
		PublicKey: base64.RawURLEncoding.EncodeToString(s.identity.PublicKey),
		Signature: base64.RawURLEncoding.EncodeToString(sig),
		SignedAt:  signedAt,
		Nonce:     in.Nonce,
	}
}

// CanonicalString builds the exact byte sequence that is signed:
//
//	version|deviceId|clientId|clientMode|role|scopes(csv)|signedAtMillis|token
//
// with "|nonce" appended (and version v2) when a nonce is present.
func CanonicalString(deviceID string, in AssertionInput, signedAtMs int64) string {
	version := AssertionV1
	if in.Nonce != "" {
		version = AssertionV2
	}

	fields := []string{
		version,
		deviceID,
		in.ClientID,
		in.ClientMode,
		in.Role,
		strings.Join(in.Scopes, ","),
		strconv.FormatInt(signedAtMs, 10),
		in.Token,
	}
	if in.Nonce != "" {
		fields = append(fields, in.Nonce)
	}
	return strings.Join(fields, "|")
}

// VerifyAssertion checks a device assertion against the canonical string
// it claims to cover. Used by tests and by embedded gateway stubs.
func VerifyAssertion(a wire.DeviceAssertion, in AssertionInput) error {
	pub, err := base64.RawURLEncoding.DecodeString(a.PublicKey)
	if err != nil {
		return fmt.Errorf("bad public key encoding: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("bad public key length %d", len(pub))
	}
	if DeriveDeviceID(pub) != a.ID {
		return fmt.Errorf("device id does not match public key")
	}

	sig, err := base64.RawURLEncoding.DecodeString(a.Signature)
	if err != nil {
		return fmt.Errorf("bad signature encoding: %w", err)
	}

	in.Nonce = a.Nonce
	canonical := CanonicalString(a.ID, in, a.SignedAt)
	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(canonical), sig) {
		return fmt.Errorf("signature does not verify")
	}
	return nil
}

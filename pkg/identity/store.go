package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RecordVersion is the current version of the identity record format.
const RecordVersion = 1

// identityFile is the record file name inside the store directory.
const identityFile = "device-identity.json"

// DeviceIdentity is the loaded keypair plus its derived device id. The
// private key never leaves this package except through the Signer.
type DeviceIdentity struct {
	DeviceID   string
	PublicKey  ed25519.PublicKey
	privateKey ed25519.PrivateKey
	CreatedAt  time.Time
}

// record is the persisted JSON form of the identity.
type record struct {
	Version       int    `json:"version"`
	DeviceID      string `json:"deviceId"`
	PublicKeyPem  string `json:"publicKeyPem"`
	PrivateKeyPem string `json:"privateKeyPem"`
	CreatedAtMs   int64  `json:"createdAtMs"`
}

// Store loads or creates the device identity at a fixed directory.
type Store struct {
	mu  sync.Mutex
	dir string

	// Cached for the process lifetime after first load.
	cached *DeviceIdentity
}

// NewStore creates a store rooted at dir. The directory is created on
// first write with owner-only permissions.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// GetIdentity returns the device identity, loading it from disk or
// generating and persisting a new keypair if no valid record exists.
// Corrupt or partial records are treated as absent and regenerated.
// Idempotent: repeated calls return the same cached identity.
func (s *Store) GetIdentity() (*DeviceIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return s.cached, nil
	}

	if id := s.loadLocked(); id != nil {
		s.cached = id
		return id, nil
	}

	id, err := s.generateLocked()
	if err != nil {
		return nil, err
	}
	s.cached = id
	return id, nil
}

// Path returns the identity record path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, identityFile)
}

// loadLocked reads and validates the persisted record. Any defect
// (missing file, bad JSON, wrong version, missing fields, undecodable
// keys, digest mismatch) returns nil so the caller regenerates.
func (s *Store) loadLocked() *DeviceIdentity {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return nil
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil
	}
	if rec.Version != RecordVersion {
		return nil
	}
	if rec.DeviceID == "" || rec.PublicKeyPem == "" || rec.PrivateKeyPem == "" {
		return nil
	}

	pub, err := decodePublicKeyPEM(rec.PublicKeyPem)
	if err != nil {
		return nil
	}
	priv, err := decodePrivateKeyPEM(rec.PrivateKeyPem)
	if err != nil {
		return nil
	}

	// The device id must match the key material it was derived from.
	if DeriveDeviceID(pub) != rec.DeviceID {
		return nil
	}

	return &DeviceIdentity{
		DeviceID:   rec.DeviceID,
		PublicKey:  pub,
		privateKey: priv,
		CreatedAt:  time.UnixMilli(rec.CreatedAtMs),
	}
}

// generateLocked creates a fresh keypair and persists it.
func (s *Store) generateLocked() (*DeviceIdentity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate device keypair: %w", err)
	}

	now := time.Now()
	id := &DeviceIdentity{
		DeviceID:   DeriveDeviceID(pub),
		PublicKey:  pub,
		privateKey: priv,
		CreatedAt:  now,
	}

	pubPem, err := encodePublicKeyPEM(pub)
	if err != nil {
		return nil, err
	}
	privPem, err := encodePrivateKeyPEM(priv)
	if err != nil {
		return nil, err
	}

	rec := record{
		Version:       RecordVersion,
		DeviceID:      id.DeviceID,
		PublicKeyPem:  pubPem,
		PrivateKeyPem: privPem,
		CreatedAtMs:   now.UnixMilli(),
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode identity record: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create identity directory: %w", err)
	}
	if err := os.WriteFile(s.Path(), data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write identity record: %w", err)
	}

	return id, nil
}

// DeriveDeviceID computes the stable device id for a public key:
// the lowercase hex SHA-256 digest of the raw key bytes.
func DeriveDeviceID(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:])
}

func encodePublicKeyPEM(pub ed25519.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

func encodePrivateKeyPEM(priv ed25519.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", fmt.Errorf("failed to marshal private key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})), nil
}

func decodePublicKeyPEM(s string) (ed25519.PublicKey, error) {
	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return nil, fmt.Errorf("no PEM block in public key")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not Ed25519")
	}
	return pub, nil
}

func decodePrivateKeyPEM(s string) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return nil, fmt.Errorf("no PEM block in private key")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not Ed25519")
	}
	return priv, nil
}

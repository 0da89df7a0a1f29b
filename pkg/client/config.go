package client

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gatewire/gatewire-go/pkg/log"
)

// Handshake defaults.
const (
	// DefaultHandshakeTimeout bounds one full connect sequence.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultChallengeWait is how long to wait for the connect.challenge
	// event before assuming a legacy gateway and signing without a nonce.
	DefaultChallengeWait = 2 * time.Second

	// DefaultHandshakeRetries is the number of additional attempts within
	// one EnsureConnected call.
	DefaultHandshakeRetries = 2

	// DefaultRetryDelay is the fixed delay between handshake attempts.
	DefaultRetryDelay = 500 * time.Millisecond
)

// Config configures a Client. The zero value is completed by defaults,
// except GatewayURL which is required.
type Config struct {
	// GatewayURL is the websocket endpoint, e.g. "ws://127.0.0.1:18789".
	GatewayURL string `yaml:"gateway_url"`

	// Token is the optional bearer token sent in the connect request.
	Token string `yaml:"token,omitempty"`

	// Password is the optional shared password. Absence of both Token and
	// Password is legal; the device signature alone may authenticate.
	Password string `yaml:"password,omitempty"`

	// Role and Scopes are presented in the connect request and bound into
	// the signed assertion.
	Role   string   `yaml:"role"`
	Scopes []string `yaml:"scopes,omitempty"`

	// Client identifies this application to the gateway.
	Client ClientIdentity `yaml:"client"`

	// IdentityDir is where the device keypair record lives.
	IdentityDir string `yaml:"identity_dir"`

	// Timers. Zero values take the package defaults.
	ConnectTimeout   time.Duration `yaml:"connect_timeout,omitempty"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout,omitempty"`
	ChallengeWait    time.Duration `yaml:"challenge_wait,omitempty"`
	RetryDelay       time.Duration `yaml:"retry_delay,omitempty"`
	ProbeInterval    time.Duration `yaml:"probe_interval,omitempty"`
	AckTimeout       time.Duration `yaml:"ack_timeout,omitempty"`

	// HandshakeRetries is the number of extra handshake attempts per
	// EnsureConnected call. Negative disables retries.
	HandshakeRetries int `yaml:"handshake_retries,omitempty"`

	// QueueLimit bounds the offline request queue (default 1024).
	QueueLimit int `yaml:"queue_limit,omitempty"`

	// Backoff overrides the reconnection schedule. Nil uses the default
	// table-then-doubling schedule.
	Backoff *BackoffConfig `yaml:"-"`

	// ProtocolLogger receives protocol capture events. Nil disables.
	ProtocolLogger log.Logger `yaml:"-"`
}

// ClientIdentity is the client block of the connect request.
type ClientIdentity struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name,omitempty"`
	Version     string `yaml:"version,omitempty"`
	Platform    string `yaml:"platform,omitempty"`
	Mode        string `yaml:"mode,omitempty"`
}

// DefaultConfig returns a config with every optional field at its
// default. GatewayURL is left empty and must be set by the caller.
func DefaultConfig() Config {
	return Config{
		Role: "operator",
		Client: ClientIdentity{
			ID:       "gatewire-go",
			Version:  "0.1.0",
			Platform: runtime.GOOS,
			Mode:     "app",
		},
		ConnectTimeout:   0, // transport default
		HandshakeTimeout: DefaultHandshakeTimeout,
		ChallengeWait:    DefaultChallengeWait,
		RetryDelay:       DefaultRetryDelay,
		ProbeInterval:    DefaultProbeInterval,
		AckTimeout:       DefaultAckTimeout,
		HandshakeRetries: DefaultHandshakeRetries,
		QueueLimit:       DefaultQueueLimit,
	}
}

// LoadConfig reads a YAML config file and fills defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the required fields.
func (c *Config) Validate() error {
	if c.GatewayURL == "" {
		return fmt.Errorf("config missing gateway_url")
	}
	return nil
}

// applyDefaults fills zero-valued optional fields.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Role == "" {
		c.Role = def.Role
	}
	if c.Client.ID == "" {
		c.Client.ID = def.Client.ID
	}
	if c.Client.Version == "" {
		c.Client.Version = def.Client.Version
	}
	if c.Client.Platform == "" {
		c.Client.Platform = def.Client.Platform
	}
	if c.Client.Mode == "" {
		c.Client.Mode = def.Client.Mode
	}
	if c.IdentityDir == "" {
		c.IdentityDir = DefaultIdentityDir()
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.ChallengeWait == 0 {
		c.ChallengeWait = def.ChallengeWait
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = def.RetryDelay
	}
	if c.ProbeInterval == 0 {
		c.ProbeInterval = def.ProbeInterval
	}
	if c.AckTimeout == 0 {
		c.AckTimeout = def.AckTimeout
	}
	if c.HandshakeRetries == 0 {
		c.HandshakeRetries = def.HandshakeRetries
	}
	if c.QueueLimit == 0 {
		c.QueueLimit = def.QueueLimit
	}
}

// DefaultIdentityDir returns the per-user identity directory.
func DefaultIdentityDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gatewire"
	}
	return home + "/.gatewire"
}

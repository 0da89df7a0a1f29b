package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Run("parses yaml and fills defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		data := `
gateway_url: ws://gateway.local:18789
token: secret-token
role: admin
scopes: [zones.read, zones.write]
client:
  id: my-app
  display_name: My App
probe_interval: 10s
`
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}

		if cfg.GatewayURL != "ws://gateway.local:18789" {
			t.Errorf("gateway_url = %s", cfg.GatewayURL)
		}
		if cfg.Token != "secret-token" || cfg.Role != "admin" {
			t.Errorf("credentials not parsed: token=%q role=%q", cfg.Token, cfg.Role)
		}
		if len(cfg.Scopes) != 2 {
			t.Errorf("scopes = %v", cfg.Scopes)
		}
		if cfg.Client.ID != "my-app" || cfg.Client.DisplayName != "My App" {
			t.Errorf("client block = %+v", cfg.Client)
		}
		if cfg.ProbeInterval != 10*time.Second {
			t.Errorf("probe_interval = %v, want 10s", cfg.ProbeInterval)
		}

		// Unset fields take package defaults.
		if cfg.HandshakeTimeout != DefaultHandshakeTimeout {
			t.Errorf("handshake timeout = %v, want default", cfg.HandshakeTimeout)
		}
		if cfg.ChallengeWait != DefaultChallengeWait {
			t.Errorf("challenge wait = %v, want default", cfg.ChallengeWait)
		}
		if cfg.QueueLimit != DefaultQueueLimit {
			t.Errorf("queue limit = %d, want default", cfg.QueueLimit)
		}
		if cfg.Client.Mode == "" || cfg.Client.Platform == "" {
			t.Errorf("client defaults not filled: %+v", cfg.Client)
		}
	})

	t.Run("missing gateway url is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("role: admin\n"), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if _, err := LoadConfig(path); err == nil {
			t.Fatal("LoadConfig accepted a config without gateway_url")
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Fatal("LoadConfig accepted a missing file")
		}
	})
}

// Command gatewire-cli is an interactive gateway RPC console.
//
// It connects to a gateway, authenticates with the local device
// identity, and offers a small command interface for issuing RPCs and
// watching events. The connection is managed automatically: requests
// issued while disconnected queue up and go out after the next
// successful handshake.
//
// Usage:
//
//	gatewire-cli [flags]
//
// Flags:
//
//	-gateway string       Gateway websocket URL (e.g. ws://host:18789)
//	-config string        Configuration file path (YAML)
//	-token string         Bearer token for authentication
//	-role string          Requested role (default "operator")
//	-scopes string        Comma-separated scopes
//	-identity-dir string  Device identity directory
//	-discover             Discover a gateway via mDNS when no URL is given
//	-capture string       Write a protocol capture file (.glog)
//
// Examples:
//
//	# Connect to a known gateway
//	gatewire-cli -gateway ws://192.168.1.20:18789 -token secret
//
//	# Discover the gateway on the local network
//	gatewire-cli -discover
//
//	# Record the session for later inspection with gatewire-log
//	gatewire-cli -gateway ws://hub:18789 -capture session.glog
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gatewire/gatewire-go/pkg/client"
	"github.com/gatewire/gatewire-go/pkg/discovery"
	"github.com/gatewire/gatewire-go/pkg/log"
)

var flags struct {
	gateway     string
	config      string
	token       string
	role        string
	scopes      string
	identityDir string
	discover    bool
	capture     string
}

func init() {
	flag.StringVar(&flags.gateway, "gateway", "", "Gateway websocket URL")
	flag.StringVar(&flags.config, "config", "", "Configuration file path")
	flag.StringVar(&flags.token, "token", "", "Bearer token for authentication")
	flag.StringVar(&flags.role, "role", "", "Requested role")
	flag.StringVar(&flags.scopes, "scopes", "", "Comma-separated scopes")
	flag.StringVar(&flags.identityDir, "identity-dir", "", "Device identity directory")
	flag.BoolVar(&flags.discover, "discover", false, "Discover a gateway via mDNS")
	flag.StringVar(&flags.capture, "capture", "", "Protocol capture file path")
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	var capture *log.FileLogger
	if flags.capture != "" {
		capture, err = log.NewFileLogger(flags.capture)
		if err != nil {
			return fmt.Errorf("failed to open capture file: %w", err)
		}
		defer capture.Close()
		cfg.ProtocolLogger = capture
	}

	if cfg.GatewayURL == "" && flags.discover {
		url, err := discoverGateway()
		if err != nil {
			return err
		}
		fmt.Printf("Discovered gateway at %s\n", url)
		cfg.GatewayURL = url
	}
	if cfg.GatewayURL == "" {
		return fmt.Errorf("no gateway URL: use -gateway, -config, or -discover")
	}

	c, err := client.New(cfg)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	fmt.Printf("Device ID: %s\n", c.DeviceID())
	fmt.Printf("Connecting to %s ...\n", cfg.GatewayURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	connectCtx, connectCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := c.EnsureConnected(connectCtx); err != nil {
		connectCancel()
		return fmt.Errorf("failed to connect: %w", err)
	}
	connectCancel()
	fmt.Println("Connected.")

	console, err := newConsole(c)
	if err != nil {
		return err
	}
	console.Run(ctx, cancel)
	return nil
}

// buildConfig merges the config file and command-line flags; flags win.
func buildConfig() (client.Config, error) {
	cfg := client.DefaultConfig()
	if flags.config != "" {
		loaded, err := client.LoadConfig(flags.config)
		if err != nil {
			return client.Config{}, err
		}
		cfg = loaded
	}

	if flags.gateway != "" {
		cfg.GatewayURL = flags.gateway
	}
	if flags.token != "" {
		cfg.Token = flags.token
	}
	if flags.role != "" {
		cfg.Role = flags.role
	}
	if flags.scopes != "" {
		cfg.Scopes = splitScopes(flags.scopes)
	}
	if flags.identityDir != "" {
		cfg.IdentityDir = flags.identityDir
	}
	if cfg.IdentityDir == "" {
		cfg.IdentityDir = client.DefaultIdentityDir()
	}
	return cfg, nil
}

func splitScopes(s string) []string {
	var scopes []string
	for _, scope := range strings.Split(s, ",") {
		if scope = strings.TrimSpace(scope); scope != "" {
			scopes = append(scopes, scope)
		}
	}
	return scopes
}

// discoverGateway browses mDNS for the first advertised gateway.
func discoverGateway() (string, error) {
	fmt.Println("Browsing for gateways ...")

	ctx, cancel := context.WithTimeout(context.Background(), discovery.BrowseTimeout)
	defer cancel()

	browser := discovery.NewBrowser(discovery.Config{})
	gw, err := browser.Find(ctx, "")
	if err != nil {
		return "", fmt.Errorf("discovery failed: %w", err)
	}
	return gw.URL(), nil
}

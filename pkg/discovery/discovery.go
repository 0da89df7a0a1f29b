package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// mDNS constants.
const (
	// ServiceType is the gateway service type.
	ServiceType = "_gatewire._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// BrowseTimeout is the default timeout for Find.
	BrowseTimeout = 10 * time.Second
)

// TXT record keys published by gateways.
const (
	txtKeyName      = "name"
	txtKeyProtocols = "proto"
	txtKeyTLS       = "tls"
	txtKeyPath      = "path"
)

// Gateway is one discovered gateway endpoint.
type Gateway struct {
	// InstanceName is the mDNS instance name, unique per gateway.
	InstanceName string

	// Host is the advertised hostname.
	Host string

	// Port is the websocket listen port.
	Port uint16

	// Addresses holds the resolved IP addresses, IPv4 first.
	Addresses []string

	// Name is the human-readable display name from TXT.
	Name string

	// MinProtocol and MaxProtocol are the advertised protocol range
	// (0 when not advertised).
	MinProtocol int
	MaxProtocol int

	// TLS indicates the endpoint expects wss.
	TLS bool

	// Path is the websocket path (default "/").
	Path string
}

// URL returns the websocket URL for this gateway, preferring a resolved
// address over the hostname.
func (g *Gateway) URL() string {
	scheme := "ws"
	if g.TLS {
		scheme = "wss"
	}

	host := strings.TrimSuffix(g.Host, ".")
	if len(g.Addresses) > 0 {
		host = g.Addresses[0]
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
	}

	path := g.Path
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, host, g.Port, path)
}

// Config configures a Browser.
type Config struct {
	// Interface restricts browsing to one network interface. Empty means
	// all multicast-capable interfaces.
	Interface string
}

// Browser browses for gateways via mDNS.
type Browser struct {
	config Config
}

// NewBrowser creates a browser.
func NewBrowser(config Config) *Browser {
	return &Browser{config: config}
}

// Browse streams gateways as they are discovered. The returned channel
// closes when ctx ends. A gateway reappearing with more addresses does
// not produce a second emission; addresses are merged into the first.
func (b *Browser) Browse(ctx context.Context) (<-chan *Gateway, error) {
	out := make(chan *Gateway)

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		seen := make(map[string]*Gateway)

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				gw := entryToGateway(entry)
				if gw == nil {
					continue
				}

				if existing, found := seen[gw.InstanceName]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, gw.Addresses)
					continue
				}
				seen[gw.InstanceName] = gw
				select {
				case out <- gw:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				delete(seen, entry.Instance)

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.browseOptions()...)
	}()

	return out, nil
}

// Find waits for the first gateway whose display name (or instance name)
// matches name. An empty name matches any gateway. Bounded by
// BrowseTimeout unless ctx has an earlier deadline.
func (b *Browser) Find(ctx context.Context, name string) (*Gateway, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, BrowseTimeout)
		defer cancel()
	}

	gateways, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case gw, ok := <-gateways:
			if !ok {
				return nil, fmt.Errorf("no gateway %q found", name)
			}
			if name == "" || gw.Name == name || gw.InstanceName == name {
				return gw, nil
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("no gateway %q found: %w", name, ctx.Err())
		}
	}
}

// browseOptions builds zeroconf client options from the config.
func (b *Browser) browseOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		if iface, err := net.InterfaceByName(b.config.Interface); err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

// entryToGateway converts a service entry. Entries without a usable
// endpoint (no port) are dropped.
func entryToGateway(entry *zeroconf.ServiceEntry) *Gateway {
	if entry.Port == 0 {
		return nil
	}

	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	gw := &Gateway{
		InstanceName: entry.Instance,
		Host:         entry.HostName,
		Port:         uint16(entry.Port),
		Addresses:    addrs,
		Path:         "/",
	}

	for _, txt := range entry.Text {
		key, value, found := strings.Cut(txt, "=")
		if !found {
			continue
		}
		switch key {
		case txtKeyName:
			gw.Name = value
		case txtKeyProtocols:
			gw.MinProtocol, gw.MaxProtocol = parseProtocolRange(value)
		case txtKeyTLS:
			gw.TLS = value == "1" || value == "true"
		case txtKeyPath:
			if strings.HasPrefix(value, "/") {
				gw.Path = value
			}
		}
	}
	return gw
}

// parseProtocolRange parses "1-3" or a single version "2".
func parseProtocolRange(s string) (min, max int) {
	lo, hi, found := strings.Cut(s, "-")
	if !found {
		hi = lo
	}
	min, err := strconv.Atoi(lo)
	if err != nil {
		return 0, 0
	}
	max, err = strconv.Atoi(hi)
	if err != nil || max < min {
		return 0, 0
	}
	return min, max
}

// mergeAddresses appends addresses not already present.
func mergeAddresses(existing, more []string) []string {
	have := make(map[string]bool, len(existing))
	for _, a := range existing {
		have[a] = true
	}
	for _, a := range more {
		if !have[a] {
			existing = append(existing, a)
		}
	}
	return existing
}

package config

import (
	"fmt"
	"strings"
)

// The mode types below implement pflag.Value so they can be bound directly
// as flags.

// PathFallback selects the path used when a request names only a host.
type PathFallback string

const (
	PathFallbackRoot  PathFallback = "root"  // GET host -> /
	PathFallbackIndex PathFallback = "index" // GET host -> /index.html
)

// DefaultPath returns the request path this fallback stands for.
func (p PathFallback) DefaultPath() string {
	if p == PathFallbackIndex {
		return "/index.html"
	}
	return "/"
}

func (p *PathFallback) String() string { return string(*p) }
func (p *PathFallback) Type() string   { return "fallback" }

func (p *PathFallback) Set(value string) error {
	switch strings.ToLower(value) {
	case "root", "/":
		*p = PathFallbackRoot
	case "index", "index.html", "/index.html":
		*p = PathFallbackIndex
	default:
		return fmt.Errorf("unknown path fallback %q (supported: root, index)", value)
	}
	return nil
}

// FetchMode selects how downstream responses are relayed.
type FetchMode string

const (
	// FetchModeFramed sends length and filename lines and requires Content-Length.
	FetchModeFramed FetchMode = "framed"
	// FetchModeStream forwards the raw downstream response without framing.
	FetchModeStream FetchMode = "stream"
)

func (m *FetchMode) String() string { return string(*m) }
func (m *FetchMode) Type() string   { return "mode" }

func (m *FetchMode) Set(value string) error {
	switch strings.ToLower(value) {
	case "framed", "frame":
		*m = FetchModeFramed
	case "stream", "raw":
		*m = FetchModeStream
	default:
		return fmt.Errorf("unknown fetch mode %q (supported: framed, stream)", value)
	}
	return nil
}

// DiscoveryMode represents origin discovery strategy
type DiscoveryMode string

const (
	DiscoveryDNS        DiscoveryMode = "dns"
	DiscoveryStatic     DiscoveryMode = "static"
	DiscoveryKubernetes DiscoveryMode = "kubernetes"
)

func (d *DiscoveryMode) String() string { return string(*d) }
func (d *DiscoveryMode) Type() string   { return "discovery" }

func (d *DiscoveryMode) Set(value string) error {
	switch strings.ToLower(value) {
	case "dns", "direct":
		*d = DiscoveryDNS
	case "static", "memory":
		*d = DiscoveryStatic
	case "kubernetes", "k8s":
		*d = DiscoveryKubernetes
	default:
		return fmt.Errorf("unknown discovery mode %q (supported: dns, static, kubernetes)", value)
	}
	return nil
}

// DialMode represents how origin connections leave the proxy
type DialMode string

const (
	DialDirect      DialMode = "direct"
	DialSOCKS5      DialMode = "socks5"
	DialShadowsocks DialMode = "shadowsocks"
)

func (d *DialMode) String() string { return string(*d) }
func (d *DialMode) Type() string   { return "dial" }

func (d *DialMode) Set(value string) error {
	switch strings.ToLower(value) {
	case "direct":
		*d = DialDirect
	case "socks5", "socks":
		*d = DialSOCKS5
	case "shadowsocks", "ss":
		*d = DialShadowsocks
	default:
		return fmt.Errorf("unknown dial mode %q (supported: direct, socks5, shadowsocks)", value)
	}
	return nil
}

// ClientMode selects what the client does with a downloaded body.
type ClientMode string

const (
	ClientModeDisplay ClientMode = "display"
	ClientModeSave    ClientMode = "save"
)

func (m *ClientMode) String() string { return string(*m) }
func (m *ClientMode) Type() string   { return "mode" }

func (m *ClientMode) Set(value string) error {
	switch strings.ToLower(value) {
	case "display", "print":
		*m = ClientModeDisplay
	case "save", "file":
		*m = ClientModeSave
	default:
		return fmt.Errorf("unknown client mode %q (supported: display, save)", value)
	}
	return nil
}

// Package dialer provides the egress paths the relay can use to reach
// origins: a plain TCP dial, a SOCKS5 proxy, or a shadowsocks tunnel.
package dialer

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/proxy"
)

// NewDirect returns a dialer that connects straight to the origin.
func NewDirect(timeout time.Duration) *net.Dialer {
	return &net.Dialer{Timeout: timeout}
}

// SOCKS5 dials origins through a SOCKS5 proxy. Host names are resolved by
// the proxy.
type SOCKS5 struct {
	Address string
	dialer  proxy.ContextDialer
}

// NewSOCKS5 creates a SOCKS5 egress dialer. username may be empty.
func NewSOCKS5(address, username, password string, timeout time.Duration) (*SOCKS5, error) {
	var auth *proxy.Auth
	if username != "" {
		auth = &proxy.Auth{User: username, Password: password}
	}

	d, err := proxy.SOCKS5("tcp", address, auth, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create socks5 dialer for %s: %w", address, err)
	}

	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks5 dialer for %s does not support contexts", address)
	}

	return &SOCKS5{Address: address, dialer: cd}, nil
}

func (s *SOCKS5) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return s.dialer.DialContext(ctx, network, address)
}

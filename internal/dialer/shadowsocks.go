package dialer

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/shadowsocks/go-shadowsocks2/core"
	"github.com/shadowsocks/go-shadowsocks2/socks"
)

// Shadowsocks dials origins through a shadowsocks server. Each connection is
// a fresh encrypted stream that starts with the SOCKS-style target address.
type Shadowsocks struct {
	Server  string
	cipher  core.Cipher
	forward *net.Dialer
}

// NewShadowsocks creates a shadowsocks egress dialer for the given server,
// cipher name (e.g. AEAD_CHACHA20_POLY1305) and password.
func NewShadowsocks(server, cipher, password string, timeout time.Duration) (*Shadowsocks, error) {
	c, err := core.PickCipher(cipher, nil, password)
	if err != nil {
		return nil, fmt.Errorf("failed to pick shadowsocks cipher %s: %w", cipher, err)
	}

	return &Shadowsocks{
		Server:  server,
		cipher:  c,
		forward: &net.Dialer{Timeout: timeout},
	}, nil
}

func (s *Shadowsocks) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	target := socks.ParseAddr(address)
	if target == nil {
		return nil, fmt.Errorf("invalid target address %q", address)
	}

	rawConn, err := s.forward.DialContext(ctx, "tcp", s.Server)
	if err != nil {
		return nil, err
	}

	conn := s.cipher.StreamConn(rawConn)
	if _, err := conn.Write(target); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send target address to %s: %w", s.Server, err)
	}

	return conn, nil
}

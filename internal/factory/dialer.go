package factory

import (
	"fmt"

	"github.com/hasirciogluhq/xrelay-proxy/internal/config"
	"github.com/hasirciogluhq/xrelay-proxy/internal/core"
	"github.com/hasirciogluhq/xrelay-proxy/internal/dialer"
	"github.com/hasirciogluhq/xrelay-proxy/internal/logger"
)

// DialerFactory creates the egress dialer used for origin connections
type DialerFactory struct {
	cfg *config.Config
}

// NewDialerFactory creates a new dialer factory
func NewDialerFactory(cfg *config.Config) *DialerFactory {
	return &DialerFactory{cfg: cfg}
}

// Create creates a dialer based on configuration
func (f *DialerFactory) Create() (core.Dialer, error) {
	switch f.cfg.DialMode {
	case config.DialDirect, "":
		logger.Info("Dialing origins directly", "timeout", f.cfg.ConnectTimeout)
		return dialer.NewDirect(f.cfg.ConnectTimeout), nil

	case config.DialSOCKS5:
		logger.Info("Dialing origins through SOCKS5", "address", f.cfg.SOCKS5Address)
		d, err := dialer.NewSOCKS5(f.cfg.SOCKS5Address, f.cfg.SOCKS5Username, f.cfg.SOCKS5Password, f.cfg.ConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create socks5 dialer: %w", err)
		}
		return d, nil

	case config.DialShadowsocks:
		logger.Info("Dialing origins through shadowsocks",
			"server", f.cfg.ShadowsocksServer,
			"cipher", f.cfg.ShadowsocksCipher)
		d, err := dialer.NewShadowsocks(f.cfg.ShadowsocksServer, f.cfg.ShadowsocksCipher, f.cfg.ShadowsocksPassword, f.cfg.ConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create shadowsocks dialer: %w", err)
		}
		return d, nil

	default:
		return nil, fmt.Errorf("unknown dial mode: %s", f.cfg.DialMode)
	}
}

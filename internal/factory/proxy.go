package factory

import (
	"github.com/hasirciogluhq/xrelay-proxy/internal/config"
	"github.com/hasirciogluhq/xrelay-proxy/internal/core"
	"github.com/hasirciogluhq/xrelay-proxy/internal/fetch"
	"github.com/hasirciogluhq/xrelay-proxy/internal/logger"
	"github.com/hasirciogluhq/xrelay-proxy/internal/relay"
)

// ProxyFactory creates the per-connection relay handler
type ProxyFactory struct {
	cfg *config.Config
}

// NewProxyFactory creates a new proxy factory
func NewProxyFactory(cfg *config.Config) *ProxyFactory {
	return &ProxyFactory{cfg: cfg}
}

// Create wires a relay around a fetcher using resolver and dialer.
func (f *ProxyFactory) Create(resolver core.OriginResolver, d core.Dialer) *relay.Relay {
	logger.Info("Creating Relay Handler",
		"fetch_mode", f.cfg.FetchMode,
		"path_fallback", f.cfg.PathFallback,
		"io_timeout", f.cfg.IOTimeout)

	if f.cfg.FetchMode == config.FetchModeStream {
		logger.Warn("Stream mode forwards raw origin responses without length and filename lines; the bundled client cannot read them")
	}

	return &relay.Relay{
		Fetcher: &fetch.Fetcher{
			Resolver:  resolver,
			Dialer:    d,
			Mode:      f.cfg.FetchMode,
			IOTimeout: f.cfg.IOTimeout,
		},
		DefaultPath:  f.cfg.PathFallback.DefaultPath(),
		MaxLineBytes: f.cfg.MaxRequestLineBytes,
	}
}

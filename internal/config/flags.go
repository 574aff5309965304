package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// ClientConfig holds the client's settings.
type ClientConfig struct {
	Host        string
	Port        string
	Mode        ClientMode
	OutputDir   string
	DialTimeout time.Duration
}

// LoadClientFromEnv loads client settings from environment variables.
func LoadClientFromEnv() (*ClientConfig, error) {
	cfg := &ClientConfig{
		OutputDir:   getEnv("OUTPUT_DIR", "."),
		DialTimeout: getEnvDuration("CONNECT_TIMEOUT", 10*time.Second),
	}
	if err := cfg.Mode.Set(getEnv("CLIENT_MODE", string(ClientModeDisplay))); err != nil {
		return nil, fmt.Errorf("CLIENT_MODE: %w", err)
	}
	return cfg, nil
}

// Validate ensures the client configuration is usable.
func (c *ClientConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	if err := validatePort("port", c.Port); err != nil {
		return err
	}
	if c.Mode == ClientModeSave && c.OutputDir == "" {
		return fmt.Errorf("output directory must be set in save mode")
	}
	return nil
}

// BindServerFlags registers flags that override env-derived server settings.
func BindServerFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json")
	fs.StringVar(&cfg.HealthServerPort, "health-port", cfg.HealthServerPort, "health server port (empty disables it)")
	fs.Var(&cfg.PathFallback, "path-fallback", "path used when a request names only a host: root or index")
	fs.Var(&cfg.FetchMode, "fetch-mode", "downstream relay mode: framed or stream")
	fs.StringVar(&cfg.OriginPort, "origin-port", cfg.OriginPort, "port dialed on origin hosts")
	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "origin dial timeout")
	fs.DurationVar(&cfg.IOTimeout, "io-timeout", cfg.IOTimeout, "origin read/write deadline (0 disables)")
	fs.IntVar(&cfg.MaxConnections, "max-connections", cfg.MaxConnections, "concurrent client cap (0 is unbounded)")
	fs.IntVar(&cfg.MaxPending, "max-pending", cfg.MaxPending, "clients allowed to wait when the cap is reached")
	fs.Var(&cfg.DiscoveryMode, "discovery", "origin discovery: dns, static or kubernetes")
	fs.StringVar(&cfg.StaticOrigins, "static-origins", cfg.StaticOrigins, "static origin map host=addr[:port],...")
	fs.Var(&cfg.DialMode, "dial", "egress: direct, socks5 or shadowsocks")
}

// BindClientFlags registers flags that override env-derived client settings.
func BindClientFlags(fs *pflag.FlagSet, cfg *ClientConfig) {
	fs.Var(&cfg.Mode, "mode", "what to do with bodies: display or save")
	fs.StringVarP(&cfg.OutputDir, "output-dir", "o", cfg.OutputDir, "directory for saved files")
	fs.DurationVar(&cfg.DialTimeout, "connect-timeout", cfg.DialTimeout, "server dial timeout")
}

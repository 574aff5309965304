package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all proxy configuration.
type Config struct {
	// Core
	Debug     bool
	LogFormat string // text, json

	// Server
	ListenPort       string
	HealthServerPort string // empty disables the health server

	// Relay
	PathFallback        PathFallback
	FetchMode           FetchMode
	OriginPort          string
	ConnectTimeout      time.Duration
	IOTimeout           time.Duration // 0 disables the downstream deadline
	MaxRequestLineBytes int

	// Admission
	MaxConnections int // 0 means unbounded
	MaxPending     int

	// Origin Discovery
	DiscoveryMode  DiscoveryMode
	StaticOrigins  string
	KubeConfigPath string
	KubeContext    string
	Namespace      string

	// Egress
	DialMode            DialMode
	SOCKS5Address       string
	SOCKS5Username      string
	SOCKS5Password      string
	ShadowsocksServer   string
	ShadowsocksCipher   string
	ShadowsocksPassword string
}

// LoadFromEnv loads configuration from environment variables. Flags and the
// positional port are applied on top of it by the caller, which then calls
// Validate.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Core
		Debug:     getEnvBool("DEBUG", false),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		// Server
		HealthServerPort: getEnv("HEALTH_SERVER_PORT", ""),

		// Relay
		OriginPort:          getEnv("ORIGIN_PORT", "80"),
		ConnectTimeout:      getEnvDuration("CONNECT_TIMEOUT", 10*time.Second),
		IOTimeout:           getEnvDuration("IO_TIMEOUT", 30*time.Second),
		MaxRequestLineBytes: getEnvInt("MAX_REQUEST_LINE_BYTES", 64*1024),

		// Admission
		MaxConnections: getEnvInt("MAX_CONNECTIONS", 0),
		MaxPending:     getEnvInt("MAX_PENDING", 64),

		// Origin Discovery
		StaticOrigins:  getEnv("STATIC_ORIGINS", ""),
		KubeConfigPath: getEnv("KUBECONFIG", ""),
		KubeContext:    getEnv("KUBE_CONTEXT", ""),
		Namespace:      determineNamespace(),

		// Egress
		SOCKS5Address:       getEnv("SOCKS5_ADDRESS", ""),
		SOCKS5Username:      getEnv("SOCKS5_USERNAME", ""),
		SOCKS5Password:      getEnv("SOCKS5_PASSWORD", ""),
		ShadowsocksServer:   getEnv("SHADOWSOCKS_SERVER", ""),
		ShadowsocksCipher:   getEnv("SHADOWSOCKS_CIPHER", "AEAD_CHACHA20_POLY1305"),
		ShadowsocksPassword: getEnv("SHADOWSOCKS_PASSWORD", ""),
	}

	if err := cfg.PathFallback.Set(getEnv("PATH_FALLBACK", string(PathFallbackRoot))); err != nil {
		return nil, fmt.Errorf("PATH_FALLBACK: %w", err)
	}
	if err := cfg.FetchMode.Set(getEnv("FETCH_MODE", string(FetchModeFramed))); err != nil {
		return nil, fmt.Errorf("FETCH_MODE: %w", err)
	}
	if err := cfg.DiscoveryMode.Set(determineDiscoveryMode()); err != nil {
		return nil, fmt.Errorf("DISCOVERY_MODE: %w", err)
	}
	if err := cfg.DialMode.Set(determineDialMode()); err != nil {
		return nil, fmt.Errorf("DIAL_MODE: %w", err)
	}

	return cfg, nil
}

// Validate ensures configuration is coherent
func (c *Config) Validate() error {
	if err := validatePort("listen port", c.ListenPort); err != nil {
		return err
	}
	if c.HealthServerPort != "" {
		if err := validatePort("HEALTH_SERVER_PORT", c.HealthServerPort); err != nil {
			return err
		}
	}
	if err := validatePort("ORIGIN_PORT", c.OriginPort); err != nil {
		return err
	}

	if c.MaxConnections < 0 {
		return fmt.Errorf("MAX_CONNECTIONS must not be negative: %d", c.MaxConnections)
	}
	if c.MaxRequestLineBytes <= 0 {
		return fmt.Errorf("MAX_REQUEST_LINE_BYTES must be positive: %d", c.MaxRequestLineBytes)
	}
	if c.ConnectTimeout < 0 || c.IOTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}

	if c.DiscoveryMode == DiscoveryStatic && c.StaticOrigins == "" {
		return fmt.Errorf("STATIC_ORIGINS must be set when using static discovery")
	}

	switch c.DialMode {
	case DialSOCKS5:
		if c.SOCKS5Address == "" {
			return fmt.Errorf("SOCKS5_ADDRESS must be set when DIAL_MODE=socks5")
		}
	case DialShadowsocks:
		if c.ShadowsocksServer == "" || c.ShadowsocksPassword == "" {
			return fmt.Errorf("SHADOWSOCKS_SERVER and SHADOWSOCKS_PASSWORD must be set when DIAL_MODE=shadowsocks")
		}
	}

	return nil
}

func validatePort(name, value string) error {
	port, err := strconv.Atoi(value)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("invalid %s: %q", name, value)
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func determineNamespace() string {
	if ns := os.Getenv("NAMESPACE"); ns != "" {
		return ns
	}

	// Kubernetes downward API
	if ns := os.Getenv("POD_NAMESPACE"); ns != "" {
		return ns
	}

	// Read from service account (in-cluster)
	if data, err := os.ReadFile("/var/run/secrets/kubernetes.io/serviceaccount/namespace"); err == nil {
		return strings.TrimSpace(string(data))
	}

	// Watch every namespace
	return ""
}

func determineDiscoveryMode() string {
	if mode := os.Getenv("DISCOVERY_MODE"); mode != "" {
		return mode
	}

	// Auto-detect: Static if STATIC_ORIGINS is set
	if os.Getenv("STATIC_ORIGINS") != "" {
		return string(DiscoveryStatic)
	}

	return string(DiscoveryDNS)
}

func determineDialMode() string {
	if mode := os.Getenv("DIAL_MODE"); mode != "" {
		return mode
	}
	if os.Getenv("SOCKS5_ADDRESS") != "" {
		return string(DialSOCKS5)
	}
	if os.Getenv("SHADOWSOCKS_SERVER") != "" {
		return string(DialShadowsocks)
	}
	return string(DialDirect)
}

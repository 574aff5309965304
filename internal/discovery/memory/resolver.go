package memory

import (
	"context"
	"fmt"
	"net"
	"strings"
)

// Resolver serves a fixed host-to-address table. Hosts that are not in the
// table are not reachable.
type Resolver struct {
	origins map[string]string
}

// NewResolver creates a new memory resolver from a comma-separated string
// Format: "host=addr[:port],..."
// Example: "example.com=127.0.0.1:8080,docs.local=10.0.0.7"
// Entries without a port get defaultPort.
func NewResolver(mappingStr, defaultPort string) (*Resolver, error) {
	origins := make(map[string]string)
	if mappingStr == "" {
		return &Resolver{origins: origins}, nil
	}

	pairs := strings.Split(mappingStr, ",")
	for _, pair := range pairs {
		parts := strings.Split(strings.TrimSpace(pair), "=")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid mapping format: %s", pair)
		}
		host := strings.ToLower(strings.TrimSpace(parts[0]))
		addr := strings.TrimSpace(parts[1])
		if host == "" || addr == "" {
			return nil, fmt.Errorf("invalid mapping format: %s", pair)
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			addr = net.JoinHostPort(addr, defaultPort)
		}
		origins[host] = addr
	}

	return &Resolver{origins: origins}, nil
}

func (r *Resolver) Resolve(ctx context.Context, host string) (string, error) {
	addr, ok := r.origins[strings.ToLower(host)]

	if !ok {
		return "", fmt.Errorf("origin not found for host: %s", host)
	}
	return addr, nil
}

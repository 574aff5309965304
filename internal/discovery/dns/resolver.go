package dns

import (
	"context"
	"net"
)

// Resolver sends every host straight to host:Port. Name resolution itself
// happens when the dialer connects, so an unknown host surfaces there.
type Resolver struct {
	Port string
}

// NewResolver creates a pass-through resolver for the given origin port.
func NewResolver(port string) *Resolver {
	return &Resolver{Port: port}
}

func (r *Resolver) Resolve(ctx context.Context, host string) (string, error) {
	return net.JoinHostPort(host, r.Port), nil
}

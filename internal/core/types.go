package core

import (
	"context"
	"net"
)

// Request is one parsed client request line.
type Request struct {
	Method string
	Host   string
	Path   string
}

// ConnectionHandler takes full ownership of an accepted connection,
// including closing it.
type ConnectionHandler interface {
	HandleConnection(conn net.Conn)
}

// ConnectionRejecter is implemented by handlers that want to tell a client
// why it was turned away before closing the connection.
type ConnectionRejecter interface {
	RejectConnection(conn net.Conn, reason error)
}

// OriginResolver maps a requested host to the address that should be dialed.
// It is purely a lookup mechanism and knows nothing about the network.
type OriginResolver interface {
	Resolve(ctx context.Context, host string) (string, error)
}

// Dialer opens outbound connections to origins.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

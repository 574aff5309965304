package core

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/hasirciogluhq/xrelay-proxy/internal/logger"
)

// Server is the generic line-protocol TCP server.
// It depends ONLY on interfaces, not concrete implementations.
//
// With a nil Limiter every accepted connection gets its own goroutine
// immediately and the number of workers is unbounded.
type Server struct {
	Listener          net.Listener
	ConnectionHandler ConnectionHandler
	Limiter           *Limiter

	active atomic.Int64
}

// Serve accepts connections until the listener fails or is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.Listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConnection(conn)
	}
}

// Active reports the number of connections currently owned by a worker.
func (s *Server) Active() int64 {
	return s.active.Load()
}

func (s *Server) handleConnection(clientConn net.Conn) {
	if s.Limiter != nil {
		release, err := s.Limiter.Acquire(context.Background())
		if err != nil {
			logger.Warn("Connection rejected", "remote_addr", clientConn.RemoteAddr(), "error", err)
			s.reject(clientConn, err)
			return
		}
		defer release()
	}

	s.active.Add(1)
	defer s.active.Add(-1)

	// Delegate the entire lifecycle to the handler
	s.ConnectionHandler.HandleConnection(clientConn)
}

func (s *Server) reject(conn net.Conn, reason error) {
	if r, ok := s.ConnectionHandler.(ConnectionRejecter); ok {
		r.RejectConnection(conn, reason)
		return
	}
	conn.Close()
}

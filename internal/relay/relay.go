package relay

import (
	"bufio"
	"context"
	"errors"
	"net"

	"github.com/hasirciogluhq/xrelay-proxy/internal/core"
	relayerrors "github.com/hasirciogluhq/xrelay-proxy/internal/errors"
	"github.com/hasirciogluhq/xrelay-proxy/internal/logger"
	"github.com/hasirciogluhq/xrelay-proxy/internal/protocol"
)

// DefaultMaxLineBytes bounds a request line when Relay.MaxLineBytes is unset.
const DefaultMaxLineBytes = bufio.MaxScanTokenSize

// Fetcher retrieves one request from its origin onto the client writer.
type Fetcher interface {
	Fetch(ctx context.Context, req core.Request, w *protocol.Writer) error
}

// Relay is the per-connection worker. It serves request lines one after
// another until the client goes away or its socket fails.
type Relay struct {
	Fetcher      Fetcher
	DefaultPath  string // path used for "GET host"
	MaxLineBytes int
}

// HandleConnection implements core.ConnectionHandler.
// It takes full ownership of the connection lifecycle.
func (r *Relay) HandleConnection(clientConn net.Conn) {
	defer clientConn.Close()

	log := logger.With("remote_addr", clientConn.RemoteAddr().String())
	log.Info("Connection made")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	maxLine := r.MaxLineBytes
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	scanner := bufio.NewScanner(clientConn)
	// Scanner tokens may grow to cap(buf) even when that exceeds maxLine.
	scanner.Buffer(make([]byte, 0, min(4096, maxLine)), maxLine)

	w := protocol.NewWriter(clientConn)
	defaultPath := r.DefaultPath
	if defaultPath == "" {
		defaultPath = "/"
	}

	for scanner.Scan() {
		line := scanner.Text()

		req, err := protocol.ParseRequest(line, defaultPath)
		if err != nil {
			log.Debug("Rejected request line", "line", line, "error", err)
			if werr := w.WriteError(relayerrors.ClientMessage(err)); werr != nil {
				log.Warn("Client write failed", "error", werr)
				return
			}
			continue
		}

		log.Debug("Request received", "host", req.Host, "path", req.Path)

		if err := r.Fetcher.Fetch(ctx, req, w); err != nil {
			if errors.Is(err, relayerrors.ClientIO) {
				log.Warn("Client write failed", "error", err)
				return
			}
			if errors.Is(err, relayerrors.TruncatedBody) {
				// The client expects more body bytes than will ever come.
				log.Warn("Closing client after a truncated body", "error", err)
				w.Flush()
				return
			}
			if werr := w.WriteError(relayerrors.ClientMessage(err)); werr != nil {
				log.Warn("Client write failed", "error", werr)
				return
			}
			continue
		}

		if err := w.Flush(); err != nil {
			log.Warn("Client write failed", "error", err)
			return
		}
	}

	if err := scanner.Err(); err != nil {
		log.Warn("Client read failed", "error", err)
		return
	}
	log.Info("Client disconnected")
}

// RejectConnection implements core.ConnectionRejecter: the client gets one
// error line and the connection is closed.
func (r *Relay) RejectConnection(conn net.Conn, reason error) {
	defer conn.Close()
	if err := protocol.NewWriter(conn).WriteError(relayerrors.ClientMessage(reason)); err != nil {
		logger.Debug("Failed to send rejection", "remote_addr", conn.RemoteAddr().String(), "error", err)
	}
}

// Package fetch performs the downstream HTTP/1.1 request for one client
// request and relays the response onto the client connection.
package fetch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hasirciogluhq/xrelay-proxy/internal/config"
	"github.com/hasirciogluhq/xrelay-proxy/internal/core"
	"github.com/hasirciogluhq/xrelay-proxy/internal/dialer"
	relayerrors "github.com/hasirciogluhq/xrelay-proxy/internal/errors"
	"github.com/hasirciogluhq/xrelay-proxy/internal/logger"
	"github.com/hasirciogluhq/xrelay-proxy/internal/protocol"
)

const contentLengthPrefix = "Content-Length"

// Fetcher opens a new origin connection for every request and never reuses
// it.
type Fetcher struct {
	Resolver  core.OriginResolver
	Dialer    core.Dialer
	Mode      config.FetchMode
	IOTimeout time.Duration // longest origin silence; 0 disables it
}

// Fetch retrieves req from its origin and writes the response to w.
//
// Errors of kind UnknownHost, DownstreamIO, MissingContentLength and
// InvalidContentLength mean nothing has been written to w yet and the caller
// should report them to the client. ClientIO errors mean w is unusable.
// TruncatedBody means a frame header was sent but its body came up short;
// the client connection can no longer be trusted to be in sync.
func (f *Fetcher) Fetch(ctx context.Context, req core.Request, w *protocol.Writer) error {
	log := logger.With("host", req.Host, "path", req.Path)

	addr, err := f.Resolver.Resolve(ctx, req.Host)
	if err != nil {
		log.Warn("Origin resolution failed", "error", err)
		return relayerrors.New(relayerrors.UnknownHost, req.Host, err)
	}

	conn, err := f.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		log.Warn("Dial failed", "addr", addr, "reason", dialer.FailureReason(err), "error", err)
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return relayerrors.New(relayerrors.UnknownHost, req.Host, err)
		}
		return relayerrors.New(relayerrors.DownstreamIO, req.Host, err)
	}
	defer conn.Close()

	origin := &idleConn{Conn: conn, timeout: f.IOTimeout}
	if f.Mode == config.FetchModeStream {
		return f.stream(log, origin, req, w)
	}
	return f.framed(log, origin, req, w)
}

func (f *Fetcher) framed(log *slog.Logger, conn net.Conn, req core.Request, w *protocol.Writer) error {
	if _, err := io.WriteString(conn, buildRequest(req, false)); err != nil {
		return relayerrors.New(relayerrors.DownstreamIO, req.Host, err)
	}

	br := bufio.NewReader(conn)
	length, err := readContentLength(br)
	if err != nil {
		if kind, ok := relayerrors.KindOf(err); ok {
			return relayerrors.New(kind, req.Host, nil)
		}
		return relayerrors.New(relayerrors.DownstreamIO, req.Host, err)
	}

	filename := protocol.Filename(req.Path)
	if err := w.WriteHeader(length, filename); err != nil {
		return err
	}

	n, err := w.RelayBody(br, length)
	if err != nil && errors.Is(err, relayerrors.ClientIO) {
		return err
	}
	if err != nil || n < length {
		cause := downstreamCause(err)
		if cause == nil {
			cause = io.ErrUnexpectedEOF
		}
		log.Warn("Origin delivered a short body", "relayed", n, "content_length", length, "error", cause)
		return relayerrors.New(relayerrors.TruncatedBody, req.Host, cause)
	}

	log.Debug("Relayed response", "content_length", length, "filename", filename)
	return nil
}

func (f *Fetcher) stream(log *slog.Logger, conn net.Conn, req core.Request, w *protocol.Writer) error {
	if _, err := io.WriteString(conn, buildRequest(req, true)); err != nil {
		return relayerrors.New(relayerrors.DownstreamIO, req.Host, err)
	}

	n, err := w.RelayBody(conn, -1)
	if err != nil {
		if errors.Is(err, relayerrors.ClientIO) {
			return err
		}
		if n == 0 {
			return relayerrors.New(relayerrors.DownstreamIO, req.Host, downstreamCause(err))
		}
		// Unframed output has no length to violate; end of stream is the end.
		log.Warn("Origin failed mid-stream", "relayed", n, "error", downstreamCause(err))
		return nil
	}
	if n == 0 {
		return relayerrors.New(relayerrors.DownstreamIO, req.Host, io.ErrUnexpectedEOF)
	}

	log.Debug("Streamed raw response", "bytes", n)
	return nil
}

// downstreamCause strips the host-less DownstreamIO wrapper that
// protocol.Writer puts around origin read errors.
func downstreamCause(err error) error {
	var e *relayerrors.Error
	if errors.As(err, &e) && e.Kind == relayerrors.DownstreamIO {
		return e.Unwrap()
	}
	return err
}

// idleConn pushes the deadline forward before every read and write, so
// timeout bounds how long the origin may stay silent rather than how long
// the whole response may take.
type idleConn struct {
	net.Conn
	timeout time.Duration // 0 disables the deadline
}

func (c *idleConn) Read(p []byte) (int, error) {
	if c.timeout > 0 {
		c.Conn.SetReadDeadline(time.Now().Add(c.timeout))
	}
	return c.Conn.Read(p)
}

func (c *idleConn) Write(p []byte) (int, error) {
	if c.timeout > 0 {
		c.Conn.SetWriteDeadline(time.Now().Add(c.timeout))
	}
	return c.Conn.Write(p)
}

// buildRequest renders the origin request. Stream mode asks the origin to
// close the connection since the end of the response is the end of stream.
func buildRequest(req core.Request, closeAfter bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\nHost: %s\r\n", req.Path, req.Host)
	if closeAfter {
		b.WriteString("Connection: close\r\n")
	}
	b.WriteString("\r\n")
	return b.String()
}

// readContentLength consumes the status line and headers up to the blank
// line and returns the Content-Length value. Header names are matched
// case-sensitively; the value is whatever follows ": ".
func readContentLength(br *bufio.Reader) (int64, error) {
	length := int64(-1)
	invalid := false

	for {
		line, err := br.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if err == nil || errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}

		if strings.HasPrefix(line, contentLengthPrefix) {
			_, value, found := strings.Cut(line, ": ")
			n, perr := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if !found || perr != nil || n < 0 {
				invalid = true
			} else {
				length, invalid = n, false
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
	}

	switch {
	case invalid:
		return 0, relayerrors.InvalidContentLength
	case length < 0:
		return 0, relayerrors.MissingContentLength
	}
	return length, nil
}

// Package client implements the interactive side of the relay protocol: it
// forwards request lines to a server and consumes one response per line.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hasirciogluhq/xrelay-proxy/internal/config"
	relayerrors "github.com/hasirciogluhq/xrelay-proxy/internal/errors"
	"github.com/hasirciogluhq/xrelay-proxy/internal/logger"
	"github.com/hasirciogluhq/xrelay-proxy/internal/protocol"
)

// Options configures a Client.
type Options struct {
	Mode      config.ClientMode
	OutputDir string
	Output    io.Writer // defaults to os.Stdout
}

// Client talks to a relay (or any line-echoing server) over conn.
type Client struct {
	conn      io.Writer
	reader    *protocol.Reader
	out       io.Writer
	mode      config.ClientMode
	outputDir string
}

// New wraps an established connection.
func New(conn io.ReadWriter, opts Options) *Client {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	mode := opts.Mode
	if mode == "" {
		mode = config.ClientModeDisplay
	}
	return &Client{
		conn:      conn,
		reader:    protocol.NewReader(conn),
		out:       out,
		mode:      mode,
		outputDir: opts.OutputDir,
	}
}

// Dial connects to the server. Name resolution failures come back as
// UnknownHost, everything else as DownstreamIO.
func Dial(ctx context.Context, host, port string, timeout time.Duration) (net.Conn, error) {
	d := &net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return nil, relayerrors.New(relayerrors.UnknownHost, host, err)
		}
		return nil, relayerrors.New(relayerrors.DownstreamIO, host, err)
	}
	return conn, nil
}

// Run sends every line of input and handles the response to each. It
// returns nil when input is exhausted.
func (c *Client) Run(ctx context.Context, input io.Reader) error {
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.Exchange(scanner.Text()); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Exchange sends one request line and consumes exactly one response.
func (c *Client) Exchange(line string) error {
	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	frame, err := c.reader.ReadFrame()
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if frame.Failed {
		fmt.Fprintln(c.out, frame.Message)
		return nil
	}

	fmt.Fprintln(c.out, "---Downloading---")
	fmt.Fprintf(c.out, "Content-Length: %d\n", frame.ContentLength)
	fmt.Fprintf(c.out, "Filename: %s\n", frame.Filename)

	if c.mode == config.ClientModeSave {
		if err := c.save(frame); err != nil {
			return err
		}
	} else {
		if err := c.display(frame); err != nil {
			return err
		}
	}

	fmt.Fprintln(c.out, "Done!")
	return nil
}

func (c *Client) display(frame *protocol.Frame) error {
	tw := &trailingWriter{w: c.out}
	n, err := c.reader.CopyBody(tw, frame)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if n < frame.ContentLength {
		logger.Debug("Body ended early", "received", n, "content_length", frame.ContentLength)
	}
	if tw.last != '\n' && n > 0 {
		fmt.Fprintln(c.out)
	}
	return nil
}

func (c *Client) save(frame *protocol.Frame) error {
	path := filepath.Join(c.outputDir, safeName(frame.Filename))

	file, err := os.Create(path)
	if err != nil {
		// The body still has to be drained to keep the stream in sync.
		c.reader.CopyBody(io.Discard, frame)
		fmt.Fprintf(c.out, "Unable to create %s: %v\n", path, err)
		return nil
	}
	defer file.Close()

	n, err := c.reader.CopyBody(file, frame)
	if err != nil {
		return fmt.Errorf("failed to save body to %s: %w", path, err)
	}

	fmt.Fprintf(c.out, "Saved %d bytes to %s\n", n, path)
	return nil
}

// safeName keeps a server-provided filename inside the output directory.
func safeName(name string) string {
	base := filepath.Base(name)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "index.html"
	}
	return base
}

// trailingWriter remembers the last byte written.
type trailingWriter struct {
	w    io.Writer
	last byte
}

func (t *trailingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if n > 0 {
		t.last = p[n-1]
	}
	return n, err
}

package fetch

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/hasirciogluhq/xrelay-proxy/internal/config"
	"github.com/hasirciogluhq/xrelay-proxy/internal/core"
	"github.com/hasirciogluhq/xrelay-proxy/internal/discovery/dns"
	"github.com/hasirciogluhq/xrelay-proxy/internal/discovery/memory"
	relayerrors "github.com/hasirciogluhq/xrelay-proxy/internal/errors"
	"github.com/hasirciogluhq/xrelay-proxy/internal/protocol"
)

// setupOrigin starts a one-shot origin that records the request head and
// answers with respond. It returns the origin address and a channel carrying
// the request head.
func setupOrigin(t *testing.T, respond func(net.Conn)) (string, <-chan string) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create origin: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	heads := make(chan string, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var head strings.Builder
		br := bufio.NewReader(conn)
		for {
			line, err := br.ReadString('\n')
			head.WriteString(line)
			if err != nil || line == "\r\n" {
				break
			}
		}
		heads <- head.String()
		respond(conn)
	}()

	return listener.Addr().String(), heads
}

func reply(raw string) func(net.Conn) {
	return func(conn net.Conn) {
		conn.Write([]byte(raw))
	}
}

func newFetcher(t *testing.T, originAddr string, mode config.FetchMode) *Fetcher {
	t.Helper()
	resolver, err := memory.NewResolver("example.com="+originAddr, "80")
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	return &Fetcher{
		Resolver:  resolver,
		Dialer:    &net.Dialer{Timeout: time.Second},
		Mode:      mode,
		IOTimeout: 2 * time.Second,
	}
}

func TestFetch_FramedHelloWorld(t *testing.T) {
	addr, heads := setupOrigin(t, reply("HTTP/1.1 200 OK\r\nContent-Type: text/html\r\nContent-Length: 13\r\n\r\nHello, world!"))
	f := newFetcher(t, addr, config.FetchModeFramed)

	var wire bytes.Buffer
	req := core.Request{Method: "GET", Host: "example.com", Path: "/index.html"}
	if err := f.Fetch(context.Background(), req, protocol.NewWriter(&wire)); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if head := <-heads; head != "GET /index.html HTTP/1.1\r\nHost: example.com\r\n\r\n" {
		t.Errorf("origin received %q", head)
	}
	if got := wire.String(); got != "13\nindex.html\nHello, world!" {
		t.Errorf("client received %q", got)
	}
}

func TestFetch_FilenameFallsBackToIndex(t *testing.T) {
	addr, _ := setupOrigin(t, reply("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nhi"))
	f := newFetcher(t, addr, config.FetchModeFramed)

	var wire bytes.Buffer
	req := core.Request{Method: "GET", Host: "example.com", Path: "/"}
	if err := f.Fetch(context.Background(), req, protocol.NewWriter(&wire)); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got := wire.String(); got != "2\nindex.html\nhi" {
		t.Errorf("client received %q", got)
	}
}

func TestFetch_HeaderFailures(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     relayerrors.Kind
	}{
		{"missing", "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\n\r\nbody", relayerrors.MissingContentLength},
		{"lowercase name", "HTTP/1.1 200 OK\r\ncontent-length: 4\r\n\r\nbody", relayerrors.MissingContentLength},
		{"closed during headers", "HTTP/1.1 200 OK\r\nServer: x\r\n", relayerrors.MissingContentLength},
		{"not a number", "HTTP/1.1 200 OK\r\nContent-Length: lots\r\n\r\nbody", relayerrors.InvalidContentLength},
		{"negative", "HTTP/1.1 200 OK\r\nContent-Length: -1\r\n\r\n", relayerrors.InvalidContentLength},
		{"no separator", "HTTP/1.1 200 OK\r\nContent-Length:4\r\n\r\nbody", relayerrors.InvalidContentLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, _ := setupOrigin(t, reply(tt.response))
			f := newFetcher(t, addr, config.FetchModeFramed)

			var wire bytes.Buffer
			err := f.Fetch(context.Background(), core.Request{Method: "GET", Host: "example.com", Path: "/"}, protocol.NewWriter(&wire))
			if !errors.Is(err, tt.want) {
				t.Fatalf("Fetch error = %v, want kind %v", err, tt.want)
			}
			if wire.Len() != 0 {
				t.Errorf("nothing should reach the client, got %q", wire.String())
			}
		})
	}
}

func TestFetch_ShortBodyIsTruncated(t *testing.T) {
	addr, _ := setupOrigin(t, reply("HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\nshort"))
	f := newFetcher(t, addr, config.FetchModeFramed)

	var wire bytes.Buffer
	err := f.Fetch(context.Background(), core.Request{Method: "GET", Host: "example.com", Path: "/a.html"}, protocol.NewWriter(&wire))
	if !errors.Is(err, relayerrors.TruncatedBody) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Fetch error = %v, want TruncatedBody wrapping io.ErrUnexpectedEOF", err)
	}
	if got := wire.String(); got != "100\na.html\nshort" {
		t.Errorf("client received %q", got)
	}
}

func TestFetch_OriginStallsMidBody(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	addr, _ := setupOrigin(t, func(conn net.Conn) {
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\nabc"))
		<-hold
	})

	f := newFetcher(t, addr, config.FetchModeFramed)
	f.IOTimeout = 50 * time.Millisecond

	var wire bytes.Buffer
	err := f.Fetch(context.Background(), core.Request{Method: "GET", Host: "example.com", Path: "/"}, protocol.NewWriter(&wire))
	if !errors.Is(err, relayerrors.TruncatedBody) {
		t.Fatalf("Fetch error = %v, want TruncatedBody", err)
	}

	var relayErr *relayerrors.Error
	if !errors.As(err, &relayErr) || relayErr.Host != "example.com" {
		t.Errorf("error %v should name the origin host", err)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Errorf("error %v should wrap the read timeout", err)
	}
	if strings.Contains(err.Error(), `host: ""`) {
		t.Errorf("error %q carries an empty host", err)
	}
	if got := wire.String(); got != "10\nindex.html\nabc" {
		t.Errorf("client received %q", got)
	}
}

func TestFetch_SlowButSteadyOriginIsNotCutOff(t *testing.T) {
	body := "0123456789"
	addr, _ := setupOrigin(t, func(conn net.Conn) {
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\n"))
		for i := range body {
			time.Sleep(30 * time.Millisecond)
			conn.Write([]byte{body[i]})
		}
	})

	f := newFetcher(t, addr, config.FetchModeFramed)
	f.IOTimeout = 100 * time.Millisecond // well under the ~300ms the body takes

	var wire bytes.Buffer
	err := f.Fetch(context.Background(), core.Request{Method: "GET", Host: "example.com", Path: "/"}, protocol.NewWriter(&wire))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got := wire.String(); got != "10\nindex.html\n"+body {
		t.Errorf("client received %q", got)
	}
}

func TestFetch_BodyArrivingInPiecesIsLossless(t *testing.T) {
	body := bytes.Repeat([]byte("<p>chunk</p>\n"), 500)
	addr, _ := setupOrigin(t, func(conn net.Conn) {
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: "))
		conn.Write([]byte(strconv.Itoa(len(body)) + "\r\n\r\n"))
		for rest := body; len(rest) > 0; {
			n := 37
			if n > len(rest) {
				n = len(rest)
			}
			conn.Write(rest[:n])
			rest = rest[n:]
		}
	})
	f := newFetcher(t, addr, config.FetchModeFramed)

	var wire bytes.Buffer
	if err := f.Fetch(context.Background(), core.Request{Method: "GET", Host: "example.com", Path: "/"}, protocol.NewWriter(&wire)); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	r := protocol.NewReader(&wire)
	frame, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	var got bytes.Buffer
	r.CopyBody(&got, frame)
	if !bytes.Equal(got.Bytes(), body) {
		t.Errorf("body mismatch: got %d bytes, want %d", got.Len(), len(body))
	}
}

func TestFetch_StreamModeForwardsRawResponse(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\nno length here"
	addr, heads := setupOrigin(t, reply(raw))
	f := newFetcher(t, addr, config.FetchModeStream)

	var wire bytes.Buffer
	if err := f.Fetch(context.Background(), core.Request{Method: "GET", Host: "example.com", Path: "/x"}, protocol.NewWriter(&wire)); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if head := <-heads; head != "GET /x HTTP/1.1\r\nHost: example.com\r\nConnection: close\r\n\r\n" {
		t.Errorf("origin received %q", head)
	}
	if wire.String() != raw {
		t.Errorf("client received %q", wire.String())
	}
}

func TestFetch_StreamModeEmptyResponse(t *testing.T) {
	addr, _ := setupOrigin(t, func(net.Conn) {})
	f := newFetcher(t, addr, config.FetchModeStream)

	err := f.Fetch(context.Background(), core.Request{Method: "GET", Host: "example.com", Path: "/"}, protocol.NewWriter(&bytes.Buffer{}))
	if !errors.Is(err, relayerrors.DownstreamIO) {
		t.Errorf("Fetch error = %v, want DownstreamIO", err)
	}
}

func TestFetch_UnknownHost(t *testing.T) {
	f := newFetcher(t, "127.0.0.1:1", config.FetchModeFramed)

	err := f.Fetch(context.Background(), core.Request{Method: "GET", Host: "unmapped.example", Path: "/"}, protocol.NewWriter(&bytes.Buffer{}))
	if !errors.Is(err, relayerrors.UnknownHost) {
		t.Fatalf("Fetch error = %v, want UnknownHost", err)
	}
	if msg := relayerrors.ClientMessage(err); msg != "Unable to find host unmapped.example" {
		t.Errorf("client message = %q", msg)
	}
}

func TestFetch_UnresolvableHost(t *testing.T) {
	f := &Fetcher{
		Resolver: dns.NewResolver("80"),
		Dialer:   &net.Dialer{Timeout: 2 * time.Second},
	}

	err := f.Fetch(context.Background(), core.Request{Method: "GET", Host: "this-is-not-a-real-domain.invalid", Path: "/"}, protocol.NewWriter(&bytes.Buffer{}))
	if !errors.Is(err, relayerrors.UnknownHost) {
		t.Errorf("Fetch error = %v, want UnknownHost", err)
	}
}

func TestFetch_ConnectionRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	f := newFetcher(t, addr, config.FetchModeFramed)
	err = f.Fetch(context.Background(), core.Request{Method: "GET", Host: "example.com", Path: "/"}, protocol.NewWriter(&bytes.Buffer{}))
	if !errors.Is(err, relayerrors.DownstreamIO) {
		t.Fatalf("Fetch error = %v, want DownstreamIO", err)
	}
	if msg := relayerrors.ClientMessage(err); msg != "Couldn't get I/O for the connection to example.com" {
		t.Errorf("client message = %q", msg)
	}
}

func TestFetch_IOTimeout(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	addr, _ := setupOrigin(t, func(net.Conn) { <-hold })

	f := newFetcher(t, addr, config.FetchModeFramed)
	f.IOTimeout = 50 * time.Millisecond

	err := f.Fetch(context.Background(), core.Request{Method: "GET", Host: "example.com", Path: "/"}, protocol.NewWriter(&bytes.Buffer{}))
	if !errors.Is(err, relayerrors.DownstreamIO) {
		t.Errorf("Fetch error = %v, want DownstreamIO", err)
	}
}

func TestFetch_ClientWriteFailure(t *testing.T) {
	addr, _ := setupOrigin(t, reply("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"))
	f := newFetcher(t, addr, config.FetchModeFramed)

	client, peer := net.Pipe()
	peer.Close()
	client.Close()

	err := f.Fetch(context.Background(), core.Request{Method: "GET", Host: "example.com", Path: "/"}, protocol.NewWriter(client))
	if !errors.Is(err, relayerrors.ClientIO) {
		t.Errorf("Fetch error = %v, want ClientIO", err)
	}
}

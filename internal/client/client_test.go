package client

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hasirciogluhq/xrelay-proxy/internal/config"
	relayerrors "github.com/hasirciogluhq/xrelay-proxy/internal/errors"
)

// fakeServer answers each request line with respond(line); an empty answer
// closes the connection.
func fakeServer(t *testing.T, respond func(line string) string) net.Conn {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close() })

	go func() {
		defer server.Close()
		br := bufio.NewReader(server)
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			answer := respond(strings.TrimRight(line, "\n"))
			if answer == "" {
				return
			}
			if _, err := server.Write([]byte(answer)); err != nil {
				return
			}
		}
	}()

	client.SetDeadline(time.Now().Add(5 * time.Second))
	return client
}

func TestRun_DisplaysFrames(t *testing.T) {
	conn := fakeServer(t, func(line string) string {
		switch line {
		case "GET example.com/index.html":
			return "13\nindex.html\nHello, world!"
		case "POST example.com/a":
			return "Error: Only GET requests are supported.\n"
		default:
			return "5\nindex.html\nline\n"
		}
	})

	var out bytes.Buffer
	c := New(conn, Options{Output: &out})

	input := "GET example.com/index.html\nPOST example.com/a\nGET example.com\n"
	if err := c.Run(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := "---Downloading---\n" +
		"Content-Length: 13\n" +
		"Filename: index.html\n" +
		"Hello, world!\n" +
		"Done!\n" +
		"Error: Only GET requests are supported.\n" +
		"---Downloading---\n" +
		"Content-Length: 5\n" +
		"Filename: index.html\n" +
		"line\n" +
		"Done!\n"
	if out.String() != want {
		t.Errorf("output mismatch\ngot:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestRun_SavesBodies(t *testing.T) {
	dir := t.TempDir()
	conn := fakeServer(t, func(line string) string {
		if strings.HasSuffix(line, "evil") {
			return "4\n../../escape.html\nnope"
		}
		return "9\npage.html\n<p>hi</p>"
	})

	var out bytes.Buffer
	c := New(conn, Options{Mode: config.ClientModeSave, OutputDir: dir, Output: &out})

	if err := c.Run(context.Background(), strings.NewReader("GET example.com/page.html\nGET example.com/evil\n")); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "page.html"))
	if err != nil {
		t.Fatalf("saved file missing: %v", err)
	}
	if string(data) != "<p>hi</p>" {
		t.Errorf("saved body = %q", data)
	}

	if _, err := os.Stat(filepath.Join(dir, "escape.html")); err != nil {
		t.Errorf("server filename should be confined to the output dir: %v", err)
	}
	if !strings.Contains(out.String(), "Saved 9 bytes to "+filepath.Join(dir, "page.html")) {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestRun_EchoServerLinesArePrinted(t *testing.T) {
	conn := fakeServer(t, func(line string) string { return line + "\n" })

	var out bytes.Buffer
	if err := New(conn, Options{Output: &out}).Run(context.Background(), strings.NewReader("hello\nGET example.com\n")); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.String() != "hello\nGET example.com\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestRun_ShortBodyThenServerGone(t *testing.T) {
	conn, server := net.Pipe()
	defer conn.Close()
	go func() {
		defer server.Close()
		if _, err := bufio.NewReader(server).ReadString('\n'); err != nil {
			return
		}
		server.Write([]byte("100\nindex.html\nshort"))
	}()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	var out bytes.Buffer
	c := New(conn, Options{Output: &out})

	// The body ends early because the server goes away after "short"; the
	// next exchange then fails.
	err := c.Run(context.Background(), strings.NewReader("GET a\nGET b\n"))
	if err == nil {
		t.Fatal("expected an error once the server is gone")
	}
	if !strings.Contains(out.String(), "short\nDone!\n") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRun_StopsOnCancelledContext(t *testing.T) {
	conn := fakeServer(t, func(string) string { return "x\n" })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := New(conn, Options{Output: &bytes.Buffer{}}).Run(ctx, strings.NewReader("GET a\n")); !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}

func TestDial(t *testing.T) {
	_, err := Dial(context.Background(), "this-is-not-a-real-domain.invalid", "80", 2*time.Second)
	if !errors.Is(err, relayerrors.UnknownHost) {
		t.Errorf("Dial error = %v, want UnknownHost", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	_, port, _ := net.SplitHostPort(listener.Addr().String())
	listener.Close()

	_, err = Dial(context.Background(), "127.0.0.1", port, time.Second)
	if !errors.Is(err, relayerrors.DownstreamIO) {
		t.Errorf("Dial error = %v, want DownstreamIO", err)
	}
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"index.html":       "index.html",
		"../../etc/x.html": "x.html",
		"..":               "index.html",
		"":                 "index.html",
		"/":                "index.html",
	}
	for in, want := range tests {
		if got := safeName(in); got != want {
			t.Errorf("safeName(%q) = %q, want %q", in, got, want)
		}
	}
}

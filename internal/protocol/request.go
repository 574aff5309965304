// Package protocol implements the line-oriented wire format spoken between
// the relay and its clients.
//
// A client sends one request per line:
//
//	GET <host>[/<path>]
//
// The relay answers with either a single error line, or a frame:
//
//	<content length>\n
//	<filename>\n
//	<content length bytes of body>
//
// Clients tell the two apart by whether the first line parses as an integer.
package protocol

import (
	"strings"

	"github.com/hasirciogluhq/xrelay-proxy/internal/core"
	relayerrors "github.com/hasirciogluhq/xrelay-proxy/internal/errors"
)

// MethodGet is the only supported request method.
const MethodGet = "GET"

// ParseRequest parses one request line. defaultPath is used when the URL
// token names only a host.
func ParseRequest(line, defaultPath string) (core.Request, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return core.Request{}, relayerrors.New(relayerrors.MalformedRequest, "", nil)
	}
	if fields[0] != MethodGet {
		return core.Request{}, relayerrors.New(relayerrors.UnsupportedMethod, "", nil)
	}

	host, rest, hasPath := strings.Cut(fields[1], "/")
	if host == "" {
		return core.Request{}, relayerrors.New(relayerrors.InvalidURL, "", nil)
	}

	path := defaultPath
	if hasPath {
		path = "/" + rest
	}
	if path == "" {
		path = "/"
	}

	return core.Request{Method: MethodGet, Host: host, Path: path}, nil
}

// Filename derives the name a client should store the body under: the last
// path segment when it ends in ".html", otherwise "index.html". Trailing
// slashes are ignored.
func Filename(path string) string {
	segments := strings.Split(path, "/")
	for len(segments) > 0 && segments[len(segments)-1] == "" {
		segments = segments[:len(segments)-1]
	}
	if len(segments) > 0 {
		if last := segments[len(segments)-1]; strings.HasSuffix(last, ".html") {
			return last
		}
	}
	return "index.html"
}

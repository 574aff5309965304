package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure that happened while serving one request line.
type Kind int

const (
	MalformedRequest Kind = iota
	UnsupportedMethod
	InvalidURL
	UnknownHost
	DownstreamIO
	MissingContentLength
	InvalidContentLength
	ServerBusy
	ClientIO
	// TruncatedBody means a frame header went out but the origin delivered
	// fewer bytes than it announced. The client stream is no longer in sync.
	TruncatedBody
)

func (k Kind) Error() string {
	switch k {
	case MalformedRequest:
		return "Requests must be in format: GET <url>"
	case UnsupportedMethod:
		return "Only GET requests are supported."
	case InvalidURL:
		return "Invalid url provided"
	case UnknownHost:
		return "Unknown host"
	case DownstreamIO:
		return "Downstream I/O failed"
	case MissingContentLength:
		return "Unable to find Content-Length header"
	case InvalidContentLength:
		return "Invalid Content-Length header"
	case ServerBusy:
		return "Server is busy"
	case ClientIO:
		return "Client I/O failed"
	case TruncatedBody:
		return "Origin closed before the full body"
	default:
		return fmt.Sprintf("Unknown relay error: %d", int(k))
	}
}

// Error carries a Kind together with the origin host and the cause, if any.
type Error struct {
	Kind       Kind
	Host       string
	underlying error
}

func (e *Error) Error() string {
	if e.underlying != nil {
		return fmt.Sprintf("%s (host: %q, underlying: %v)", e.Kind.Error(), e.Host, e.underlying)
	}
	if e.Host != "" {
		return fmt.Sprintf("%s (host: %q)", e.Kind.Error(), e.Host)
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() error {
	return e.underlying
}

// Is reports whether target is the same Kind, so errors.Is(err, UnknownHost)
// works through wrapping.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// New creates an Error of the given kind.
func New(kind Kind, host string, underlying error) *Error {
	return &Error{
		Kind:       kind,
		Host:       host,
		underlying: underlying,
	}
}

// KindOf extracts the Kind from err. ok is false when err carries none.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	var k Kind
	if stderrors.As(err, &k) {
		return k, true
	}
	return 0, false
}

// ClientMessage renders err as the single line sent back to the client.
// Failures that are about the request itself carry an "Error: " prefix;
// host failures name the host.
func ClientMessage(err error) string {
	var e *Error
	if !stderrors.As(err, &e) {
		if k, ok := KindOf(err); ok {
			e = &Error{Kind: k}
		} else {
			return "Error: " + err.Error()
		}
	}

	switch e.Kind {
	case UnknownHost:
		return "Unable to find host " + e.Host
	case DownstreamIO:
		return "Couldn't get I/O for the connection to " + e.Host
	default:
		return "Error: " + e.Kind.Error()
	}
}

//go:build unix

package dialer

import (
	"context"
	"errors"
	"net"

	"golang.org/x/sys/unix"
)

// FailureReason gives a short, log-friendly cause for a dial failure.
func FailureReason(err error) string {
	var dnsErr *net.DNSError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &dnsErr):
		return "dns lookup failed"
	case errors.Is(err, unix.ECONNREFUSED):
		return "connection refused"
	case errors.Is(err, unix.EHOSTUNREACH):
		return "host unreachable"
	case errors.Is(err, unix.ENETUNREACH):
		return "network unreachable"
	case errors.Is(err, unix.ECONNRESET):
		return "connection reset"
	case errors.Is(err, unix.ETIMEDOUT), errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		return "timed out"
	default:
		return "other"
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

//go:build !unix

package dialer

import (
	"context"
	"errors"
	"net"
)

// FailureReason gives a short, log-friendly cause for a dial failure.
func FailureReason(err error) string {
	var dnsErr *net.DNSError
	var ne net.Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &dnsErr):
		return "dns lookup failed"
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return "timed out"
	default:
		return "other"
	}
}

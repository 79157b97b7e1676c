package reliability

import (
	"context"
	"errors"
	"net"
)

// IsRetryableHTTPStatus classifies transient upstream HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsTransientProviderMessage classifies transient error messages sent by
// streaming speech providers.
func IsTransientProviderMessage(messageType string) bool {
	switch messageType {
	case "rate_limited", "resource_exhausted", "queue_overflow", "server_busy":
		return true
	default:
		return false
	}
}

// Classify maps a port error to the status reported for it.
func Classify(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StatusTimeout
	}
	return StatusError
}

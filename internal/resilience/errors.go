package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError marks a provider failure that is safe to retry: throttling,
// a 5xx answer or a network hiccup.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as transient. statusCode is 0 for network errors.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// ClassifyHTTP wraps err as transient when statusCode is retryable and returns
// it unchanged otherwise.
func ClassifyHTTP(err error, statusCode int) error {
	if err == nil || !IsTransientHTTPStatus(statusCode) {
		return err
	}
	return NewTransientError(err, statusCode)
}

var transientMessages = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"unexpected eof",
}

// IsTransient reports whether err is worth retrying. Cancellation never is. A
// per-attempt deadline counts as a timeout; DoVal stops on its own once the
// caller's context is done.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientMessages {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether an HTTP status signals a temporary
// provider-side condition.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 425, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

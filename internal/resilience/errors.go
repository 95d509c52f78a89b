package resilience

import (
	"errors"
	"net"
	"net/textproto"
	"strings"
	"syscall"
)

// TransientError wraps an error that is safe to retry, such as an FTP 4xx
// reply or a dropped connection.
type TransientError struct {
	Err  error
	Code int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional reply code.
func NewTransientError(err error, code int) *TransientError {
	return &TransientError{Err: err, Code: code}
}

// IsTransient reports whether err (or any error in its chain) is worth
// retrying: an explicit TransientError, an FTP transient-negative reply
// (4xx), a network timeout, or a reset/refused connection.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var reply *textproto.Error
	if errors.As(err, &reply) {
		return IsTransientFTPCode(reply.Code)
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
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"i/o timeout",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientFTPCode reports whether an FTP reply code is a transient
// negative completion (RFC 959 4yz). 5yz replies are permanent.
func IsTransientFTPCode(code int) bool {
	return code >= 400 && code < 500
}

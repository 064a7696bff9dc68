package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// NetworkError reports a transport failure where no response was received:
// refused or reset connections, DNS failures and timeouts.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline or client timeout.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// RemoteError reports a well-formed error from the backend: a non-2xx HTTP
// status or a GraphQL errors payload.
type RemoteError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Code != "":
		return fmt.Sprintf("%s failed (%d %s): %s", e.Op, e.StatusCode, e.Code, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s failed (%d): %s", e.Op, e.StatusCode, e.Message)
	case e.Code != "":
		return fmt.Sprintf("%s failed (%s): %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}

// Common validation failures, detected before any request is sent.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidFolder = errors.New("invalid folder")
	ErrNotAuthorized = errors.New("not authorized")
)

// IsNetworkError reports whether err (or any error in its chain) is a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsRemoteError reports whether err (or any error in its chain) is a RemoteError.
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// IsRetryable reports whether re-invoking the failed action may succeed.
// Network failures and 429/5xx responses are retryable; the session never
// retries on its own.
func IsRetryable(err error) bool {
	if IsNetworkError(err) {
		return true
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.StatusCode == 429 || re.StatusCode >= 500
	}
	return false
}

// Transport wraps err as a NetworkError when it stems from the transport
// (url.Error, net.Error, context cancellation). Other errors are returned
// unchanged.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsNetworkError(err) || IsRemoteError(err) {
		return err
	}
	var ue *url.Error
	var ne net.Error
	if errors.As(err, &ue) || errors.As(err, &ne) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &NetworkError{Op: op, Err: err}
	}
	return err
}

// Package errors provides the page-level failure taxonomy for the crawler.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorType categorizes a page fetch failure.
type ErrorType int

const (
	// Unknown is an uncategorized error.
	Unknown ErrorType = iota
	// Network represents network-related errors (DNS, connection).
	Network
	// Timeout represents timeout errors.
	Timeout
	// Status represents a non-2xx HTTP response.
	Status
	// ContentType represents a missing or non-HTML content type.
	ContentType
	// Parse represents body decoding or markup errors.
	Parse
	// Cancelled represents context cancellation.
	Cancelled
)

// String returns the string representation of ErrorType.
func (t ErrorType) String() string {
	switch t {
	case Network:
		return "network"
	case Timeout:
		return "timeout"
	case Status:
		return "status"
	case ContentType:
		return "content_type"
	case Parse:
		return "parse"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// FetchError represents a categorized FETCH_FAILURE for one page.
type FetchError struct {
	Type       ErrorType
	URL        string
	Operation  string
	Message    string
	Cause      error
	StatusCode int
	Retryable  bool
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error during %s on %s: %s (caused by: %v)",
			e.Type, e.Operation, e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error during %s on %s: %s",
		e.Type, e.Operation, e.URL, e.Message)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Is matches another FetchError of the same type.
func (e *FetchError) Is(target error) bool {
	t, ok := target.(*FetchError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewFetchError creates a new FetchError.
func NewFetchError(errType ErrorType, url, operation, message string, cause error) *FetchError {
	return &FetchError{
		Type:      errType,
		URL:       url,
		Operation: operation,
		Message:   message,
		Cause:     cause,
		Retryable: errType == Network || errType == Timeout,
	}
}

// NewNetworkError creates a network error.
func NewNetworkError(url, operation string, cause error) *FetchError {
	return NewFetchError(Network, url, operation, "network failure", cause)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(url, operation string, cause error) *FetchError {
	return NewFetchError(Timeout, url, operation, "request timed out", cause)
}

// NewStatusError creates an error for a non-2xx response. Server errors and
// 429 are retryable.
func NewStatusError(url string, statusCode int, statusText string) *FetchError {
	msg := fmt.Sprintf("server returned %d", statusCode)
	if statusText != "" {
		msg = fmt.Sprintf("server returned %d %s", statusCode, statusText)
	}
	err := NewFetchError(Status, url, "request", msg, nil)
	err.StatusCode = statusCode
	err.Retryable = statusCode >= 500 || statusCode == 429
	return err
}

// NewContentTypeError creates an error for a response that is not HTML.
func NewContentTypeError(url, contentType string) *FetchError {
	msg := "missing content type"
	if contentType != "" {
		msg = fmt.Sprintf("unsupported content type %q", contentType)
	}
	return NewFetchError(ContentType, url, "request", msg, nil)
}

// NewParseError creates a parse error.
func NewParseError(url, operation string, cause error) *FetchError {
	return NewFetchError(Parse, url, operation, "parsing failed", cause)
}

// NewCancelledError creates a cancelled error.
func NewCancelledError(url, operation string) *FetchError {
	return NewFetchError(Cancelled, url, operation, "operation cancelled", nil)
}

// Categorize determines the error type from a generic transport error.
func Categorize(err error, url string) *FetchError {
	if err == nil {
		return nil
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr
	}

	if errors.Is(err, context.Canceled) {
		return NewCancelledError(url, "request")
	}

	if isTimeout(err) {
		return NewTimeoutError(url, "request", err)
	}

	if isNetworkError(err) {
		return NewNetworkError(url, "request", err)
	}

	return NewFetchError(Unknown, url, "request", err.Error(), err)
}

// CategorizeHTTPStatus returns a Status error for any non-2xx code, nil otherwise.
func CategorizeHTTPStatus(statusCode int, statusText, url string) *FetchError {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	return NewStatusError(url, statusCode, statusText)
}

// isTimeout checks if an error is a timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// isNetworkError checks if an error is network-related.
func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "dial tcp")
}

// IsRetryable checks if an error should be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Retryable
	}

	return isTimeout(err) || isNetworkError(err)
}

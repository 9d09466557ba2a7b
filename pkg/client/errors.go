package client

import "fmt"

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx upstream responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx upstream responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassTimeout represents deadline-exceeded fetches.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassNetwork represents connection-level failures.
	ErrorClassNetwork ErrorClass = "network"
)

// TransportError represents a failed upstream fetch: a network error,
// a timeout, or a non-2xx status. The orchestrator recovers it via
// offline fallback when a cached entry exists and offline support is
// enabled; otherwise it reaches the caller unchanged.
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error (%s %s): %v",
			e.Class, e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("upstream %s error (%s %s): status %d: %s",
		e.Class, e.Method, e.URL, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline hit.
func (e *TransportError) Timeout() bool {
	return e.Class == ErrorClassTimeout
}

// classifyStatus categorizes a non-2xx upstream status.
func classifyStatus(status int) ErrorClass {
	if status >= 500 {
		return ErrorClassServer
	}
	return ErrorClassClient
}

// shouldRetry determines if a fetch failure is worth retrying.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx responses repeat deterministically, retrying wastes time
		return false
	case ErrorClassServer, ErrorClassTimeout, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

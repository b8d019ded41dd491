package rpc

import (
	"errors"
	"fmt"
	"net/http"
)

// maxErrorBody bounds how much of an error response is kept for logging.
const maxErrorBody = 512

// HTTPError is a non-2xx response from the node.
type HTTPError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("node returned %d %s for %s: %s",
		e.StatusCode, http.StatusText(e.StatusCode), e.Path, e.Body)
}

// Temporary reports whether the status is worth retrying.
func (e *HTTPError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// IsNotFound reports whether err is a 404 from the node, e.g. a level above its head.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

package gateway

import (
	"errors"
	"fmt"
)

// HTTPError is a homeserver response outside the 2xx range, carrying the
// status code and whatever error text the body held.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("homeserver returned %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err wraps an HTTPError with the given status
// code. Callers use it to distinguish auth failures from transport faults.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

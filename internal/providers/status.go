package providers

import (
	"errors"
	"fmt"
)

// BackendStatus is the per-backend outcome reported back to clients.
// Status is 0 when no HTTP response was received.
type BackendStatus struct {
	OK     bool   `json:"ok"`
	Status int    `json:"status"`
	Body   string `json:"body,omitempty"`
}

// BackendCallError is returned by the upstream client for non-2xx responses.
type BackendCallError struct {
	Status int
	Body   string
}

func (e *BackendCallError) Error() string {
	return fmt.Sprintf("upstream http %d", e.Status)
}

// StatusFromError converts a failed call into a status record.
func StatusFromError(err error) BackendStatus {
	var bce *BackendCallError
	if errors.As(err, &bce) {
		return BackendStatus{OK: false, Status: bce.Status, Body: bce.Body}
	}
	return BackendStatus{OK: false, Status: 0, Body: err.Error()}
}

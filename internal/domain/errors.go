package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamAPI marks failures reported by the signed AliExpress API.
	ErrUpstreamAPI = errors.New("aliexpress: upstream api error")
	// ErrPersistence marks a failed best-effort token backup write.
	ErrPersistence = errors.New("aliexpress: token persistence failed")
)

// UpstreamAPIError is returned when the signed call answered with a non-2xx
// status or an error_response payload. Body is the upstream payload verbatim.
type UpstreamAPIError struct {
	Method  string
	Status  int
	Code    string
	Message string
	Body    []byte
}

func (e *UpstreamAPIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("aliexpress: %s failed: status=%d code=%s msg=%s", e.Method, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("aliexpress: %s failed: status=%d", e.Method, e.Status)
}

func (e *UpstreamAPIError) Unwrap() error {
	return ErrUpstreamAPI
}

// PersistenceWarning wraps a backup write failure. It is logged, never returned to callers.
type PersistenceWarning struct {
	Backend string
	Err     error
}

func (w *PersistenceWarning) Error() string {
	return fmt.Sprintf("persist token to %s: %v", w.Backend, w.Err)
}

func (w *PersistenceWarning) Is(target error) bool {
	return target == ErrPersistence
}

func (w *PersistenceWarning) Unwrap() error {
	return w.Err
}

package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized means the server bounced the request to its login page.
	ErrUnauthorized = errors.New("not logged in")
	// ErrNotFound is a 404 from the server.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is a 403, usually a rejected CSRF token.
	ErrForbidden = errors.New("forbidden")
	// ErrCSRF means no CSRF token is known for a mutating call.
	ErrCSRF = errors.New("csrf token missing")
	// ErrInvalidCredentials is returned by Login when the form comes back.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Error is the single failure shape of every call: which operation, the HTTP
// status if one arrived, and whatever message the server sent back.
type Error struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: server returned %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": request failed"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func statusError(op string, status int, message string) *Error {
	apiErr := &Error{Op: op, Status: status, Message: message}
	switch status {
	case http.StatusUnauthorized:
		apiErr.Err = ErrUnauthorized
	case http.StatusForbidden:
		apiErr.Err = ErrForbidden
	case http.StatusNotFound:
		apiErr.Err = ErrNotFound
	}
	return apiErr
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

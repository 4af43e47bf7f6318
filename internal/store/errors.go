package store

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound matches a 404 from the store and lookups that found nothing.
	ErrNotFound              = errors.New("not found")
	ErrDuplicateRegistration = errors.New("phone number already registered")
	ErrDuplicateContact      = errors.New("contact already exists")
	ErrSelfContact           = errors.New("cannot add yourself as a contact")
	ErrSelfBlock             = errors.New("cannot block yourself")
	ErrCreatorAdmin          = errors.New("group creator keeps admin rights")
	ErrNotLoggedIn           = errors.New("user not logged in")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("store %s %s: HTTP %d - %s", e.Method, e.Path, e.Status, e.Body)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

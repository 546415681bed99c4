// Package apperr defines the error taxonomy shared by the API and the seeding tools.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError is a bad request shape or range (400).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError is a missing entity (404).
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// UpstreamError wraps a store or external API failure. Clients only ever see a
// generic message; Op and Err are for logs.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ConfigurationError is raised at startup when a required file or credential is missing.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

func Validation(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

func Upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}

func Configuration(format string, args ...any) error {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// StatusCode maps an error to the HTTP status the API answers with.
func StatusCode(err error) int {
	var (
		ve *ValidationError
		nf *NotFoundError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &nf):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message that is safe to send to clients.
// Upstream and unknown errors collapse to a generic text.
func PublicMessage(err error) string {
	var (
		ve *ValidationError
		nf *NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.As(err, &nf):
		return nf.Message
	default:
		return "Internal Server Error"
	}
}

// statusCarrier is implemented by store errors that carry an HTTP-like status.
type statusCarrier interface {
	HTTPStatus() int
}

// FromStore translates a store failure into the domain taxonomy: a 404 from
// the store becomes notFound, everything else an UpstreamError for op.
func FromStore(op string, err error, notFound string) error {
	if err == nil {
		return nil
	}
	var sc statusCarrier
	if errors.As(err, &sc) && sc.HTTPStatus() == http.StatusNotFound {
		return &NotFoundError{Message: notFound}
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return err
	}
	return Upstream(op, err)
}

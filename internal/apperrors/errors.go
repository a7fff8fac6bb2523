// Package apperrors holds the error taxonomy shared by every service and the
// mapping of those errors onto HTTP responses.
package apperrors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrInvalidCredentials    = errors.New("invalid username or password")
	ErrDuplicateUsername     = errors.New("username already exists")
	ErrDuplicateInstituteID  = errors.New("institute id already exists")
	ErrDuplicateEnrollmentNo = errors.New("enrollment number already exists")
	ErrDuplicateCode         = errors.New("code already exists")
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrForbidden             = errors.New("forbidden")
	ErrNotFound              = errors.New("not found")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrConflict              = errors.New("conflict")
	ErrValidation            = errors.New("validation failed")
)

// DeniedMessage is the single body used for every access denial so that a
// caller cannot tell a missing record from an inaccessible one.
const DeniedMessage = "not allowed"

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries the rejected fields and unwraps to ErrValidation.
type ValidationError struct {
	Fields []FieldError
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError with a single free form reason.
func Invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Status returns the HTTP status an error maps to.
func Status(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrDuplicateUsername),
		errors.Is(err, ErrDuplicateInstituteID),
		errors.Is(err, ErrDuplicateEnrollmentNo),
		errors.Is(err, ErrDuplicateCode),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, ErrValidation):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// HTTP converts a service error into a *fiber.Error. Errors outside the
// taxonomy are returned unchanged so the server's ErrorHandler logs them and
// answers with a generic 500.
func HTTP(err error) error {
	if err == nil {
		return nil
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}
	status := Status(err)
	switch status {
	case fiber.StatusInternalServerError:
		return err
	case fiber.StatusUnauthorized:
		if errors.Is(err, ErrInvalidCredentials) {
			return fiber.NewError(status, ErrInvalidCredentials.Error())
		}
		return fiber.NewError(status, DeniedMessage)
	case fiber.StatusForbidden:
		return fiber.NewError(status, DeniedMessage)
	case fiber.StatusBadRequest:
		var ve *ValidationError
		if errors.As(err, &ve) {
			return fiber.NewError(status, ve.Error())
		}
		return fiber.NewError(status, ErrValidation.Error())
	}
	return fiber.NewError(status, rootMessage(err))
}

// rootMessage returns the message of the taxonomy sentinel wrapped by err
// without the service context prefixes.
func rootMessage(err error) string {
	for _, sentinel := range []error{
		ErrNotFound, ErrDuplicateUsername, ErrDuplicateInstituteID,
		ErrDuplicateEnrollmentNo, ErrDuplicateCode, ErrInvalidTransition,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

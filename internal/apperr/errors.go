package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation")
	ErrDelivery        = errors.New("delivery failed")
)

// Status maps an error chain to the HTTP status sent to the client.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrDelivery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Message(err error) string {
	switch Status(err) {
	case http.StatusUnauthorized:
		if errors.Is(err, ErrUnauthenticated) {
			return "authentication required"
		}
		return "unauthorized"
	case http.StatusForbidden:
		return "you do not have permission to change this member"
	case http.StatusConflict:
		return "email already in use"
	case http.StatusNotFound:
		return "not found"
	case http.StatusBadRequest:
		return err.Error()
	case http.StatusBadGateway:
		return "could not deliver verification code"
	default:
		return "internal server error"
	}
}

package api

import (
	"errors"
	"net/http"

	"idsync/internal/domain"
)

// httpStatusFromDomainError maps domain error types to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	switch {
	case errors.As(err, new(*domain.NotFoundError)):
		return http.StatusNotFound
	case errors.As(err, new(*domain.ValidationError)):
		return http.StatusBadRequest
	case errors.As(err, new(*domain.ConflictError)):
		return http.StatusConflict
	case errors.As(err, new(*domain.AmbiguousMatchError)):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

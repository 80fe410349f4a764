package gallery

import (
	"errors"
	"net/http"
)

// Validation errors are client mistakes: they map to 4xx and are never
// retried.
var (
	// ErrMissingFile is returned when the request carries no single file part.
	ErrMissingFile = errors.New("missing file field")
	// ErrUnsupportedType is returned when the declared content type is not an
	// accepted image type.
	ErrUnsupportedType = errors.New("invalid file type, must be an image")
	// ErrTooLarge is returned when the payload exceeds the size ceiling.
	ErrTooLarge = errors.New("file too large")
)

// Storage errors are server-side and map to 500.
var (
	// ErrStorageFailure wraps any failure to persist an upload.
	ErrStorageFailure = errors.New("storage failure")
	// ErrListFailure wraps any failure to enumerate the container.
	ErrListFailure = errors.New("list failure")
)

// StatusCode maps a pipeline or reader error onto an HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMissingFile):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether err is a validation failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingFile) ||
		errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrTooLarge)
}

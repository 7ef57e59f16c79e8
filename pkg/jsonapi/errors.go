package jsonapi

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidArgument is the sentinel every chain validation error unwraps to.
var ErrInvalidArgument = errors.New("invalid argument")

// Common static errors that can be wrapped with context.
var (
	ErrTransportRequired     = errors.New("transport is required")
	ErrResourceTypeRequired  = errors.New("resource type is required")
	ErrConfigRequired        = errors.New("config is required")
	ErrAPIEndpointRequired   = errors.New("API endpoint is required")
	ErrEmptyDocument         = errors.New("document has no primary data")
	ErrNotSingleResource     = errors.New("primary data is not a single resource")
	ErrNotResourceCollection = errors.New("primary data is not a resource collection")
	ErrNoMorePages           = errors.New("no more pages")
	ErrCacheMiss             = errors.New("key not found")
	ErrCacheEntryExpired     = errors.New("entry expired")
	ErrCacheDisabled         = errors.New("cache disabled")
	ErrInvalidCacheConfig    = errors.New("invalid cache configuration")
	ErrNATSConfigRequired    = errors.New("NATS configuration required for NATS cache")
	ErrUnsupportedCacheType  = errors.New("unsupported cache type")
)

// InvalidSortDirectionError is returned when a sort direction is neither
// "asc" nor "desc".
type InvalidSortDirectionError struct {
	Direction string
}

// Error implements the error interface.
func (e *InvalidSortDirectionError) Error() string {
	return fmt.Sprintf("Invalid sort direction: %q. Allowed only %q or %q.", e.Direction, "asc", "desc")
}

// Unwrap lets errors.Is match ErrInvalidArgument.
func (e *InvalidSortDirectionError) Unwrap() error {
	return ErrInvalidArgument
}

// InvalidFieldsError is returned when a sparse fieldset argument is neither a
// list of field names nor a mapping of resource type to field names.
type InvalidFieldsError struct {
	Value interface{}
}

// Error implements the error interface.
func (e *InvalidFieldsError) Error() string {
	return "Invalid fields list."
}

// Unwrap lets errors.Is match ErrInvalidArgument.
func (e *InvalidFieldsError) Unwrap() error {
	return ErrInvalidArgument
}

// HTTPError is returned by transports for non-2xx responses.
type HTTPError struct {
	StatusCode int
	Status     string
	Method     string
	URL        string
	Body       []byte
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
}

// IsNotFound checks if the error is a 404 response.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized checks if the error is a 401 response.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsForbidden checks if the error is a 403 response.
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

func hasStatus(err error, code int) bool {
	httpErr := &HTTPError{}
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}

	return false
}

package constants

import "errors"

// API and configuration errors.
var (
	ErrNoAPIConfigured     = errors.New("no API endpoint configured, use --api or 'jsonapi config set api <url>'")
	ErrUnknownConfigKey    = errors.New("unknown configuration key")
	ErrSavedQueryNotFound  = errors.New("saved query not found")
	ErrInvalidSavedQuery   = errors.New("invalid saved query")
	ErrUnsupportedFormat   = errors.New("unsupported output format")
	ErrInvalidFieldsFlag   = errors.New("invalid --fields value, expected type=a,b or a,b")
	ErrInvalidWhereFlag    = errors.New("invalid --where value, expected key=value or group.key=value")
	ErrPageSizeRequired    = errors.New("--page-size is required with --page-number")
	ErrIDWithAllPages      = errors.New("--all-pages cannot be combined with a resource ID")
	ErrPageNumberAllPages  = errors.New("--all-pages starts at the first page and cannot be combined with --page-number")
	ErrTooManyPages        = errors.New("page limit reached")
	ErrNotRegularFile      = errors.New("path is not a regular file")
	ErrInvalidCacheBackend = errors.New("invalid cache backend")
)

package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// Configuration file locations.
const (
	// ConfigDirName is the directory under the user's home holding the config.
	ConfigDirName = ".jsonapi"

	// ConfigFileName is the base name of the config file.
	ConfigFileName = "config"

	// ConfigFileType is the format of the config file.
	ConfigFileType = "yml"

	// EnvPrefix prefixes environment variables that override config keys.
	EnvPrefix = "JSONAPI"
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations such as token requests.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits.
const (
	// DefaultRetryMax is the default maximum number of retries.
	DefaultRetryMax = 3

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// Concurrency limits.
const (
	// DefaultConcurrencyLimit limits concurrent batch lookups.
	DefaultConcurrencyLimit = 5
)

// Pagination limits.
const (
	// DefaultPageSize is the page size used when walking every page.
	DefaultPageSize = 50

	// MaxPages bounds how many pages --all-pages follows.
	MaxPages = 1000
)

// Cache defaults.
const (
	// DefaultCacheTTL is how long a cached response is served without revalidation.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultCacheCleanupInterval is how often expired memory entries are dropped.
	DefaultCacheCleanupInterval = time.Minute
)

// HTTP header values.
const (
	// DefaultUserAgent identifies the client to servers.
	DefaultUserAgent = "jsonapi-client/1.0"
)

// UI and display constants.
const (
	// NotAvailable is shown for missing values.
	NotAvailable = "N/A"

	// MaskedSecret replaces secrets in displayed configuration.
	MaskedSecret = "***"

	// StringTruncationLimit is the number of characters kept of a masked secret.
	StringTruncationLimit = 4

	// MaxCellWidth truncates long attribute values in tables.
	MaxCellWidth = 60
)

// Format constants.
const (
	// FormatTable is the default terminal output format.
	FormatTable = "table"

	// FormatJSON output format.
	FormatJSON = "json"

	// FormatYAML output format.
	FormatYAML = "yaml"
)

package jsonapi

import (
	"time"
)

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Config represents client configuration for building an apiclient.Client.
//
// # Authentication precedence
//
//  1. AccessToken: used directly as a static Bearer token.
//  2. ClientID/ClientSecret: OAuth2 client_credentials grant against TokenURL.
//  3. No credentials: requests are sent without authentication.
//
// # Timeouts, retries, and caching
//
// Per-request timeouts should be controlled via the context passed to
// terminal calls. Retry behavior is a transport concern tuned via RetryMax,
// DisableRetries, RetryWaitMin and RetryWaitMax; the query builder itself
// never retries.
// Cache, when set, serves repeated GET requests from the selected backend.
type Config struct {
	// APIEndpoint: base URL of the JSON:API server (e.g.,
	// "https://example.com/api"). apiclient.New trims a trailing slash and
	// adds "https://" if no scheme is present.
	APIEndpoint string

	// AccessToken: if set, used directly as a Bearer token.
	AccessToken string
	// ClientID: OAuth2 client ID for the client_credentials grant.
	ClientID string
	// ClientSecret: OAuth2 client secret used with ClientID.
	ClientSecret string
	// TokenURL: full OAuth2 token endpoint. Defaults to
	// APIEndpoint + "/oauth/token".
	TokenURL string
	// Scopes: optional OAuth2 scopes.
	Scopes []string

	// HTTPTimeout: overall timeout of a single HTTP attempt.
	HTTPTimeout time.Duration
	// RetryMax: maximum number of transport retries for transient failures
	// (>=500, 429, and connection errors). Zero selects the default.
	RetryMax int
	// DisableRetries: send every request exactly once, ignoring RetryMax.
	DisableRetries bool
	// RetryWaitMin: minimum backoff between retries.
	RetryWaitMin time.Duration
	// RetryWaitMax: maximum backoff between retries.
	RetryWaitMax time.Duration
	// Debug: enables request/response logging when a Logger is provided.
	Debug bool
	// Logger: optional structured logger used by the HTTP layer and builders.
	Logger Logger
	// UserAgent: overrides the default User-Agent header.
	UserAgent string
	// Cache: optional response cache configuration. Nil disables caching.
	Cache *CacheConfig
	// Headers: extra headers added to every request.
	Headers map[string]string
}

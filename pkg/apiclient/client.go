package apiclient

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fivetwenty-io/jsonapi-client/internal/auth"
	"github.com/fivetwenty-io/jsonapi-client/internal/constants"
	"github.com/fivetwenty-io/jsonapi-client/internal/http"
	"github.com/fivetwenty-io/jsonapi-client/pkg/jsonapi"
)

// Client hands out query builders that share one authenticated, retrying,
// optionally caching transport.
type Client struct {
	endpoint     string
	transport    *http.Client
	tokenManager auth.TokenManager
	cache        *jsonapi.CacheManager
	backend      jsonapi.Cache
	metrics      *jsonapi.MetricsCollector
	logger       jsonapi.Logger

	stopJanitor chan struct{}
	closeOnce   sync.Once
}

// New creates a client from config. The endpoint is normalized: a trailing
// slash is dropped and "https://" is assumed when no scheme is given.
func New(ctx context.Context, config *jsonapi.Config) (*Client, error) {
	return NewWithTokenManager(ctx, config, nil)
}

// NewWithTokenManager creates a client that authenticates through
// tokenManager. A nil tokenManager falls back to the credentials in config.
func NewWithTokenManager(ctx context.Context, config *jsonapi.Config, tokenManager auth.TokenManager) (*Client, error) {
	if config == nil {
		return nil, jsonapi.ErrConfigRequired
	}

	if config.APIEndpoint == "" {
		return nil, jsonapi.ErrAPIEndpointRequired
	}

	endpoint := NormalizeEndpoint(config.APIEndpoint)

	if tokenManager == nil {
		tokenManager = createTokenManager(config, endpoint)
	}

	client := &Client{
		endpoint:     endpoint,
		tokenManager: tokenManager,
		metrics:      jsonapi.NewMetricsCollector(),
		logger:       config.Logger,
	}

	err := client.setupCache(config.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to set up cache: %w", err)
	}

	client.transport = http.NewClient(endpoint, client.tokenManager, client.httpOptions(config)...)

	return client, nil
}

// NewWithEndpoint creates a client with just an API endpoint (no auth).
func NewWithEndpoint(ctx context.Context, endpoint string) (*Client, error) {
	return New(ctx, &jsonapi.Config{
		APIEndpoint: endpoint,
	})
}

// NewWithToken creates a client with an API endpoint and access token.
func NewWithToken(ctx context.Context, endpoint, token string) (*Client, error) {
	return New(ctx, &jsonapi.Config{
		APIEndpoint: endpoint,
		AccessToken: token,
	})
}

// NewWithClientCredentials creates a client using OAuth2 client credentials.
func NewWithClientCredentials(ctx context.Context, endpoint, clientID, clientSecret string) (*Client, error) {
	return New(ctx, &jsonapi.Config{
		APIEndpoint:  endpoint,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
}

// NormalizeEndpoint trims a trailing slash and defaults the scheme to https.
func NormalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSuffix(strings.TrimSpace(endpoint), "/")
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	return endpoint
}

// Endpoint returns the normalized API endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Resource returns a builder for a resource type.
func (c *Client) Resource(resourceType string) (*jsonapi.Builder, error) {
	var opts []jsonapi.BuilderOption
	if c.logger != nil {
		opts = append(opts, jsonapi.WithBuilderLogger(c.logger))
	}

	return jsonapi.NewBuilder(c.endpoint, resourceType, c.transport, opts...)
}

// Transport returns the shared transport.
func (c *Client) Transport() jsonapi.Transport {
	return c.transport
}

// TokenManager returns the token manager, or nil without credentials.
func (c *Client) TokenManager() auth.TokenManager {
	return c.tokenManager
}

// Metrics returns the per-endpoint request metrics.
func (c *Client) Metrics() *jsonapi.MetricsCollector {
	return c.metrics
}

// CacheStats returns cache statistics; ok is false when caching is off.
func (c *Client) CacheStats() (stats jsonapi.CacheStats, ok bool) {
	if c.cache == nil {
		return jsonapi.CacheStats{}, false
	}

	return c.cache.GetStats(), true
}

// ClearCache drops every cached response.
func (c *Client) ClearCache(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}

	return c.cache.Clear(ctx)
}

// Close stops background cache maintenance and closes the cache backend.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.stopJanitor != nil {
			close(c.stopJanitor)
		}

		if closer, ok := c.backend.(interface{ Close() }); ok {
			closer.Close()
		}
	})
}

// createTokenManager picks the token manager by credential precedence.
func createTokenManager(config *jsonapi.Config, endpoint string) auth.TokenManager {
	if config.AccessToken != "" {
		return auth.NewStaticTokenManager(config.AccessToken)
	}

	if config.ClientID != "" {
		tokenURL := config.TokenURL
		if tokenURL == "" {
			tokenURL = auth.DefaultTokenURL(endpoint)
		}

		return auth.NewOAuth2TokenManager(&auth.OAuth2Config{
			TokenURL:     tokenURL,
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Scopes:       config.Scopes,
		})
	}

	return nil
}

// httpOptions builds HTTP client options from config.
func (c *Client) httpOptions(config *jsonapi.Config) []http.Option {
	chain := jsonapi.NewInterceptorChain()

	var httpOpts []http.Option

	if config.Logger != nil {
		httpOpts = append(httpOpts, http.WithLogger(config.Logger))

		if config.Debug {
			chain.AddRequestInterceptor(jsonapi.LoggingInterceptor(config.Logger))
			chain.AddResponseInterceptor(jsonapi.LoggingResponseInterceptor(config.Logger))
		}
	}

	if config.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.UserAgent))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, http.WithHTTPTimeout(config.HTTPTimeout))
	}

	httpOpts = append(httpOpts, retryOption(config))

	if len(config.Headers) > 0 {
		chain.AddRequestInterceptor(jsonapi.HeaderInterceptor(config.Headers))
	}

	chain.AddRequestInterceptor(jsonapi.MetricsRequestInterceptor(c.metrics))
	chain.AddResponseInterceptor(jsonapi.MetricsResponseInterceptor(c.metrics))

	httpOpts = append(httpOpts, http.WithInterceptors(chain))

	if c.cache != nil {
		httpOpts = append(httpOpts, http.WithCache(c.cache, jsonapi.DefaultCachingPolicy()))
	}

	return httpOpts
}

func (c *Client) setupCache(config *jsonapi.CacheConfig) error {
	if config == nil || config.Type == jsonapi.CacheTypeNone {
		return nil
	}

	backend, err := jsonapi.NewCacheFromConfig(config)
	if err != nil {
		return err
	}

	c.backend = backend
	c.cache = jsonapi.NewCacheManager(backend, config.CacheOptions())

	if cleaner, ok := backend.(cleaner); ok && config.CleanupInterval > 0 {
		c.stopJanitor = make(chan struct{})
		go runJanitor(cleaner, config.CleanupInterval, c.stopJanitor)
	}

	return nil
}

// cleaner is a backend that can drop its expired entries.
type cleaner interface {
	Cleanup()
}

func runJanitor(cache cleaner, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cache.Cleanup()
		case <-stop:
			return
		}
	}
}

// retryOption resolves the retry budget: DisableRetries wins, RetryMax
// zero keeps the default.
func retryOption(config *jsonapi.Config) http.Option {
	retryMax := constants.DefaultRetryMax
	retryWaitMin := constants.DefaultRetryWaitMin
	retryWaitMax := constants.DefaultRetryWaitMax

	if config.RetryMax > 0 {
		retryMax = config.RetryMax
	}

	if config.DisableRetries {
		retryMax = 0
	}

	if config.RetryWaitMin > 0 {
		retryWaitMin = config.RetryWaitMin
	}

	if config.RetryWaitMax > 0 {
		retryWaitMax = config.RetryWaitMax
	}

	return http.WithRetryConfig(retryMax, retryWaitMin, retryWaitMax)
}

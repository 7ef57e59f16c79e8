package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fivetwenty-io/jsonapi-client/internal/auth"
	"github.com/fivetwenty-io/jsonapi-client/internal/constants"
	"github.com/fivetwenty-io/jsonapi-client/pkg/jsonapi"
	"github.com/hashicorp/go-retryablehttp"
)

// Static errors for err113 compliance.
var (
	ErrMethodNotAllowed = errors.New("only GET requests are supported")
)

// Logger is the structured logger used by the client.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Request is a request relative to the client's base URL. Path may also be
// an absolute URL.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
}

// Response is a completed HTTP exchange.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Cached     bool
}

// Client sends JSON:API read requests with retries, bearer authentication,
// interceptors and an optional response cache.
type Client struct {
	baseURL      string
	httpClient   *retryablehttp.Client
	tokenManager auth.TokenManager
	logger       Logger
	debug        bool
	userAgent    string
	cache        *jsonapi.CacheManager
	policy       *jsonapi.CachingPolicy
	interceptors *jsonapi.InterceptorChain
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
		c.httpClient.Logger = &leveledLogger{logger: logger}
	}
}

// WithDebug enables request and response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRetryConfig sets the retry budget and backoff bounds.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = retryMax
		c.httpClient.RetryWaitMin = waitMin
		c.httpClient.RetryWaitMax = waitMax
	}
}

// WithHTTPTimeout sets the timeout of a single attempt.
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient.Timeout = timeout
	}
}

// WithCache enables response caching. A nil policy caches every successful
// GET.
func WithCache(cache *jsonapi.CacheManager, policy *jsonapi.CachingPolicy) Option {
	return func(c *Client) {
		if policy == nil {
			policy = jsonapi.DefaultCachingPolicy()
		}

		c.cache = cache
		c.policy = policy
	}
}

// WithInterceptors runs the chain around every request.
func WithInterceptors(chain *jsonapi.InterceptorChain) Option {
	return func(c *Client) {
		c.interceptors = chain
	}
}

// NewClient creates a client for baseURL. tokenManager may be nil for
// unauthenticated APIs.
func NewClient(baseURL string, tokenManager auth.TokenManager, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil
	retryClient.RetryMax = constants.DefaultRetryMax
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   retryClient,
		tokenManager: tokenManager,
		userAgent:    constants.DefaultUserAgent,
		interceptors: jsonapi.NewInterceptorChain(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Do performs a request.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	target := req.Path
	if !strings.Contains(target, "://") {
		target = c.baseURL + "/" + strings.TrimPrefix(target, "/")
	}

	if len(req.Query) > 0 {
		separator := "?"
		if strings.Contains(target, "?") {
			separator = "&"
		}

		target += separator + req.Query.Encode()
	}

	header := make(http.Header)
	header.Set("Accept", jsonapi.MediaType)

	for key, value := range req.Headers {
		header.Set(key, value)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	return c.send(ctx, &jsonapi.Request{Method: method, URL: target, Header: header})
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	})
}

// Send implements jsonapi.Transport.
func (c *Client) Send(ctx context.Context, req jsonapi.Request) (*jsonapi.Document, error) {
	clone := req.Clone()

	resp, err := c.send(ctx, &clone)
	if err != nil {
		return nil, err
	}

	return jsonapi.ParseDocument(resp.Body)
}

func (c *Client) send(ctx context.Context, req *jsonapi.Request) (*Response, error) {
	if req.Method != http.MethodGet {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotAllowed, req.Method)
	}

	if req.Header == nil {
		req.Header = make(http.Header)
	}

	err := c.interceptors.ExecuteRequestInterceptors(ctx, req)
	if err != nil {
		return nil, err
	}

	cacheKey, cached := c.lookup(ctx, req)
	if cached != nil && !cached.Stale() {
		resp := &Response{StatusCode: http.StatusOK, Headers: make(http.Header), Body: cached.Data, Cached: true}

		return resp, c.afterResponse(ctx, req, resp, nil)
	}

	if cached != nil && cached.ETag != "" {
		req.Header.Set("If-None-Match", cached.ETag)
	}

	resp, err := c.roundTrip(ctx, req)
	if err == nil && resp.StatusCode == http.StatusUnauthorized && c.tokenManager != nil {
		if refreshErr := c.tokenManager.RefreshToken(ctx); refreshErr == nil {
			req.Header.Del("Authorization")
			resp, err = c.roundTrip(ctx, req)
		}
	}

	if err != nil {
		return nil, c.afterResponse(ctx, req, &Response{}, err)
	}

	if resp.StatusCode == http.StatusNotModified && cached != nil {
		resp.StatusCode = http.StatusOK
		resp.Body = cached.Data
		resp.Cached = true

		c.store(ctx, cacheKey, req, resp, cached.ETag)

		return resp, c.afterResponse(ctx, req, resp, nil)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		httpErr := &jsonapi.HTTPError{
			StatusCode: resp.StatusCode,
			Status:     fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			Method:     req.Method,
			URL:        req.URL,
			Body:       resp.Body,
		}

		return resp, c.afterResponse(ctx, req, resp, httpErr)
	}

	c.store(ctx, cacheKey, req, resp, resp.Headers.Get("ETag"))

	return resp, c.afterResponse(ctx, req, resp, nil)
}

// roundTrip performs one logical exchange; retries happen inside.
func (c *Client) roundTrip(ctx context.Context, req *jsonapi.Request) (*Response, error) {
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	if c.tokenManager != nil && httpReq.Header.Get("Authorization") == "" {
		token, err := c.tokenManager.GetToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get token: %w", err)
		}

		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method": req.Method,
			"url":    req.URL,
		})
	}

	start := time.Now()

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"status":   httpResp.StatusCode,
			"url":      req.URL,
			"duration": time.Since(start).String(),
			"bytes":    len(body),
		})
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
	}, nil
}

func (c *Client) lookup(ctx context.Context, req *jsonapi.Request) (string, *jsonapi.CacheEntry) {
	if c.cache == nil || !c.policy.ShouldCache(req.Method, req.URL, http.StatusOK) {
		return "", nil
	}

	key := c.cache.GetCacheKey(req.Method, req.URL, nil)

	entry, err := c.cache.GetEntry(ctx, key)
	if err != nil {
		return key, nil
	}

	return key, entry
}

func (c *Client) store(ctx context.Context, key string, req *jsonapi.Request, resp *Response, etag string) {
	if key == "" || !c.policy.ShouldCache(req.Method, req.URL, resp.StatusCode) {
		return
	}

	if !c.cache.Options().EnableETags {
		etag = ""
	}

	err := c.cache.SetWithETag(ctx, key, resp.Body, etag, 0)
	if err != nil && c.logger != nil {
		c.logger.Warn("Failed to cache response", map[string]interface{}{
			"url":   req.URL,
			"error": err.Error(),
		})
	}
}

// afterResponse runs the response interceptors and returns the request
// error, or the first interceptor error when the request succeeded.
func (c *Client) afterResponse(ctx context.Context, req *jsonapi.Request, resp *Response, reqErr error) error {
	interceptorErr := c.interceptors.ExecuteResponseInterceptors(ctx, req, &jsonapi.Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
		Error:      reqErr,
		Cached:     resp.Cached,
	})

	if reqErr != nil {
		return reqErr
	}

	return interceptorErr
}

// leveledLogger adapts Logger to retryablehttp.LeveledLogger. Debug and
// Info are dropped: the client logs every exchange itself.
type leveledLogger struct {
	logger Logger
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, toFields(keysAndValues))
}

func (l *leveledLogger) Info(string, ...interface{}) {}

func (l *leveledLogger) Debug(string, ...interface{}) {}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, toFields(keysAndValues))
}

func toFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}

	return fields
}

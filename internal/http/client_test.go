package http_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apihttp "github.com/fivetwenty-io/jsonapi-client/internal/http"
	"github.com/fivetwenty-io/jsonapi-client/pkg/jsonapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockTokenManager for testing.
type MockTokenManager struct {
	mu        sync.Mutex
	token     string
	err       error
	refreshed int
	onRefresh string
}

func (m *MockTokenManager) GetToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.token, m.err
}

func (m *MockTokenManager) RefreshToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refreshed++

	if m.onRefresh != "" {
		m.token = m.onRefresh
	}

	return nil
}

// MockLogger for testing.
type MockLogger struct {
	mu   sync.Mutex
	logs []map[string]interface{}
}

func (l *MockLogger) log(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logs = append(l.logs, map[string]interface{}{"level": level, "msg": msg, "fields": fields})
}

func (l *MockLogger) Debug(msg string, fields map[string]interface{}) { l.log("debug", msg, fields) }
func (l *MockLogger) Info(msg string, fields map[string]interface{})  { l.log("info", msg, fields) }
func (l *MockLogger) Warn(msg string, fields map[string]interface{})  { l.log("warn", msg, fields) }
func (l *MockLogger) Error(msg string, fields map[string]interface{}) { l.log("error", msg, fields) }

const postsBody = `{"data":[{"type":"posts","id":"1","attributes":{"title":"Hello"}}]}`

func fastRetries() apihttp.Option {
	return apihttp.WithRetryConfig(3, 10*time.Millisecond, 100*time.Millisecond)
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_Do(t *testing.T) {
	t.Parallel()
	t.Run("successful request", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/api/posts/", request.URL.Path)
			assert.Equal(t, "GET", request.Method)
			assert.Equal(t, "Bearer test-token", request.Header.Get("Authorization"))
			assert.Equal(t, jsonapi.MediaType, request.Header.Get("Accept"))
			assert.Equal(t, "jsonapi-client/1.0", request.Header.Get("User-Agent"))

			writer.Header().Set("Content-Type", jsonapi.MediaType)
			_, _ = writer.Write([]byte(postsBody))
		}))
		defer server.Close()

		tokenManager := &MockTokenManager{token: "test-token"}
		client := apihttp.NewClient(server.URL+"/api", tokenManager)

		resp, err := client.Do(context.Background(), &apihttp.Request{
			Method: "GET",
			Path:   "/posts/",
		})
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.JSONEq(t, postsBody, string(resp.Body))
		assert.False(t, resp.Cached)
	})

	t.Run("request with query parameters", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/posts/", request.URL.Path)
			assert.Equal(t, "page%5Bnumber%5D=2", request.URL.RawQuery)
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := apihttp.NewClient(server.URL, nil)

		resp, err := client.Get(context.Background(), "/posts/", url.Values{"page[number]": []string{"2"}})
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})

	t.Run("error response", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusNotFound)
			_, _ = writer.Write([]byte(`{"errors":[{"status":"404","title":"Not Found"}]}`))
		}))
		defer server.Close()

		client := apihttp.NewClient(server.URL, nil)

		resp, err := client.Get(context.Background(), "/posts/invalid", nil)
		require.Error(t, err)
		assert.Equal(t, 404, resp.StatusCode)

		httpErr := &jsonapi.HTTPError{}
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, "404 Not Found", httpErr.Status)
		assert.Equal(t, server.URL+"/posts/invalid", httpErr.URL)
		assert.Contains(t, string(httpErr.Body), "Not Found")
		assert.True(t, jsonapi.IsNotFound(err))
	})

	t.Run("custom headers", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "custom-value", request.Header.Get("X-Custom-Header"))
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := apihttp.NewClient(server.URL, nil, apihttp.WithUserAgent("custom-agent"))

		resp, err := client.Do(context.Background(), &apihttp.Request{
			Path: "/posts/",
			Headers: map[string]string{
				"X-Custom-Header": "custom-value",
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})

	t.Run("with debug logging", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			_, _ = writer.Write([]byte(postsBody))
		}))
		defer server.Close()

		logger := &MockLogger{}
		client := apihttp.NewClient(server.URL, nil, apihttp.WithLogger(logger), apihttp.WithDebug(true))

		_, err := client.Get(context.Background(), "/posts/", nil)
		require.NoError(t, err)

		assert.Len(t, logger.logs, 2)
		assert.Equal(t, "HTTP Request", logger.logs[0]["msg"])
		assert.Equal(t, "HTTP Response", logger.logs[1]["msg"])
	})

	t.Run("rejects write methods", func(t *testing.T) {
		t.Parallel()

		client := apihttp.NewClient("https://example.com", nil)

		_, err := client.Do(context.Background(), &apihttp.Request{Method: "POST", Path: "/posts/"})
		require.ErrorIs(t, err, apihttp.ErrMethodNotAllowed)
	})

	t.Run("token errors are returned", func(t *testing.T) {
		t.Parallel()

		client := apihttp.NewClient("https://example.com", &MockTokenManager{err: errors.New("expired")})

		_, err := client.Get(context.Background(), "/posts/", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get token")
	})
}

func TestClient_Send(t *testing.T) {
	t.Parallel()

	var gotURL string

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		gotURL = request.URL.String()

		_, _ = writer.Write([]byte(postsBody))
	}))
	defer server.Close()

	client := apihttp.NewClient(server.URL, nil)

	builder, err := jsonapi.NewBuilder(server.URL+"/api", "posts", client)
	require.NoError(t, err)

	doc, err := builder.With("author").OrderByDesc("published_at").All(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/api/posts/?include=author&sort=-published_at", gotURL)

	resources, err := doc.Resources()
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "Hello", resources[0].Attributes["title"])
}

func TestClient_RefreshesTokenOnUnauthorized(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Header.Get("Authorization") != "Bearer fresh" {
			writer.WriteHeader(http.StatusUnauthorized)

			return
		}

		_, _ = writer.Write([]byte(postsBody))
	}))
	defer server.Close()

	tokenManager := &MockTokenManager{token: "stale", onRefresh: "fresh"}
	client := apihttp.NewClient(server.URL, tokenManager)

	resp, err := client.Get(context.Background(), "/posts/", nil)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1, tokenManager.refreshed)
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_RetryLogic(t *testing.T) {
	t.Parallel()
	t.Run("retries on 5xx errors", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if attempts.Add(1) < 3 {
				writer.WriteHeader(http.StatusInternalServerError)
			} else {
				writer.WriteHeader(http.StatusOK)
			}
		}))
		defer server.Close()

		client := apihttp.NewClient(server.URL, nil, fastRetries())

		resp, err := client.Get(context.Background(), "/test", nil)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, int32(3), attempts.Load())
	})

	t.Run("retries on rate limiting", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if attempts.Add(1) < 2 {
				writer.WriteHeader(http.StatusTooManyRequests)
			} else {
				writer.WriteHeader(http.StatusOK)
			}
		}))
		defer server.Close()

		client := apihttp.NewClient(server.URL, nil, fastRetries())

		resp, err := client.Get(context.Background(), "/test", nil)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, int32(2), attempts.Load())
	})

	t.Run("does not retry on client errors", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			attempts.Add(1)

			writer.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		client := apihttp.NewClient(server.URL, nil, fastRetries())

		resp, err := client.Get(context.Background(), "/test", nil)
		require.Error(t, err)
		assert.Equal(t, 400, resp.StatusCode)
		assert.Equal(t, int32(1), attempts.Load())
	})

	t.Run("returns the last response when retries run out", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := apihttp.NewClient(server.URL, nil, apihttp.WithRetryConfig(1, time.Millisecond, 5*time.Millisecond))

		resp, err := client.Get(context.Background(), "/test", nil)
		require.Error(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_Cache(t *testing.T) {
	t.Parallel()

	t.Run("serves fresh entries without a request", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			hits.Add(1)

			_, _ = writer.Write([]byte(postsBody))
		}))
		defer server.Close()

		manager := jsonapi.NewCacheManager(nil, nil)
		client := apihttp.NewClient(server.URL, nil, apihttp.WithCache(manager, nil))

		first, err := client.Get(context.Background(), "/posts/", nil)
		require.NoError(t, err)
		assert.False(t, first.Cached)

		second, err := client.Get(context.Background(), "/posts/", nil)
		require.NoError(t, err)
		assert.True(t, second.Cached)
		assert.Equal(t, first.Body, second.Body)

		assert.Equal(t, int32(1), hits.Load())
		assert.Equal(t, int64(1), manager.GetStats().Hits)
	})

	t.Run("revalidates stale entries with their etag", func(t *testing.T) {
		t.Parallel()

		var (
			hits        atomic.Int32
			ifNoneMatch atomic.Value
		)

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			hits.Add(1)

			if tag := request.Header.Get("If-None-Match"); tag != "" {
				ifNoneMatch.Store(tag)
				writer.WriteHeader(http.StatusNotModified)

				return
			}

			writer.Header().Set("ETag", `"v1"`)
			_, _ = writer.Write([]byte(postsBody))
		}))
		defer server.Close()

		manager := jsonapi.NewCacheManager(jsonapi.NewMemoryCache(10), &jsonapi.CacheOptions{
			TTL:         50 * time.Millisecond,
			MaxSize:     10,
			EnableETags: true,
		})
		client := apihttp.NewClient(server.URL, nil, apihttp.WithCache(manager, nil))

		_, err := client.Get(context.Background(), "/posts/", nil)
		require.NoError(t, err)

		time.Sleep(60 * time.Millisecond)

		resp, err := client.Get(context.Background(), "/posts/", nil)
		require.NoError(t, err)
		assert.True(t, resp.Cached)
		assert.Equal(t, 200, resp.StatusCode)
		assert.JSONEq(t, postsBody, string(resp.Body))
		assert.Equal(t, `"v1"`, ifNoneMatch.Load())
		assert.Equal(t, int32(2), hits.Load())
	})

	t.Run("does not cache errors", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			hits.Add(1)
			writer.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := apihttp.NewClient(server.URL, nil, apihttp.WithCache(jsonapi.NewCacheManager(nil, nil), nil))

		for range 2 {
			_, err := client.Get(context.Background(), "/posts/1", nil)
			require.Error(t, err)
		}

		assert.Equal(t, int32(2), hits.Load())
	})
}

func TestClient_Interceptors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "acme", request.Header.Get("X-Tenant"))
		assert.Equal(t, "Bearer from-header", request.Header.Get("Authorization"))

		_, _ = writer.Write([]byte(postsBody))
	}))
	defer server.Close()

	collector := jsonapi.NewMetricsCollector()
	chain := jsonapi.NewInterceptorChain()
	chain.AddRequestInterceptor(jsonapi.HeaderInterceptor(map[string]string{
		"X-Tenant":      "acme",
		"Authorization": "Bearer from-header",
	}))
	chain.AddRequestInterceptor(jsonapi.MetricsRequestInterceptor(collector))
	chain.AddResponseInterceptor(jsonapi.MetricsResponseInterceptor(collector))

	client := apihttp.NewClient(server.URL, &MockTokenManager{token: "ignored"}, apihttp.WithInterceptors(chain))

	for i := range 3 {
		_, err := client.Get(context.Background(), fmt.Sprintf("/posts/?page[number]=%d", i), nil)
		require.NoError(t, err)
	}

	metrics, ok := collector.GetMetrics("GET " + server.URL + "/posts/")
	require.True(t, ok)
	assert.Equal(t, int64(3), metrics.TotalRequests)
	assert.Equal(t, int64(0), metrics.TotalErrors)
}

func TestClient_RequestInterceptorErrorStopsRequest(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	chain := jsonapi.NewInterceptorChain()
	chain.AddRequestInterceptor(func(context.Context, *jsonapi.Request) error {
		return errors.New("denied")
	})

	client := apihttp.NewClient(server.URL, nil, apihttp.WithInterceptors(chain))

	_, err := client.Get(context.Background(), "/posts/", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
	assert.Equal(t, int32(0), hits.Load())
}

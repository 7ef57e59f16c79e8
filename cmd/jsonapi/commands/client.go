package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fivetwenty-io/jsonapi-client/internal/auth"
	"github.com/fivetwenty-io/jsonapi-client/internal/constants"
	"github.com/fivetwenty-io/jsonapi-client/pkg/apiclient"
	"github.com/fivetwenty-io/jsonapi-client/pkg/jsonapi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const natsCacheBucket = "jsonapi-cli-cache"

// newClient builds an API client from the loaded configuration.
func newClient(ctx context.Context, cmd *cobra.Command) (*apiclient.Client, error) {
	config := loadConfig()
	if config.API == "" {
		return nil, constants.ErrNoAPIConfigured
	}

	verbose := viper.GetBool("verbose")

	clientConfig := &jsonapi.Config{
		APIEndpoint: config.API,
		Logger:      newStderrLogger(cmd.ErrOrStderr(), verbose),
		Debug:       verbose,
		RetryMax:    constants.DefaultRetryMax,
	}

	cacheConfig, err := cliCacheConfig(config)
	if err != nil {
		return nil, err
	}

	clientConfig.Cache = cacheConfig

	if config.ClientID == "" {
		clientConfig.AccessToken = config.Token

		return apiclient.New(ctx, clientConfig)
	}

	tokenURL := config.TokenURL
	if tokenURL == "" {
		tokenURL = auth.DefaultTokenURL(apiclient.NormalizeEndpoint(config.API))
	}

	var expiresAt time.Time
	if config.TokenExpiresAt != "" {
		expiresAt, err = time.Parse(time.RFC3339, config.TokenExpiresAt)
		if err != nil {
			// An unreadable expiry forces a fresh token.
			config.Token = ""
		}
	}

	tokenManager := auth.NewConfigTokenManager(&auth.OAuth2Config{
		TokenURL:     tokenURL,
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RefreshToken: config.RefreshToken,
		HTTPClient:   &http.Client{Timeout: constants.ShortHTTPTimeout},
	}, NewConfigPersister(), config.Token, expiresAt)

	return apiclient.NewWithTokenManager(ctx, clientConfig, tokenManager)
}

func cliCacheConfig(config *Config) (*jsonapi.CacheConfig, error) {
	cacheConfig := jsonapi.DefaultCacheConfig()
	cacheConfig.TTL = constants.DefaultCacheTTL
	cacheConfig.CleanupInterval = constants.DefaultCacheCleanupInterval

	switch jsonapi.CacheType(config.Cache) {
	case "", jsonapi.CacheTypeNone:
		return nil, nil
	case jsonapi.CacheTypeMemory:
		return cacheConfig, nil
	case jsonapi.CacheTypeNATS:
		cacheConfig.Type = jsonapi.CacheTypeNATS
		cacheConfig.NATS = &jsonapi.NATSKVConfig{
			URL:    config.NATSURL,
			Bucket: natsCacheBucket,
			Name:   "jsonapi-cli",
		}

		return cacheConfig, nil
	default:
		return nil, fmt.Errorf("%w: %s", constants.ErrInvalidCacheBackend, config.Cache)
	}
}

// stderrLogger writes log lines to stderr. Debug lines need --verbose.
type stderrLogger struct {
	out     io.Writer
	verbose bool
}

func newStderrLogger(out io.Writer, verbose bool) *stderrLogger {
	return &stderrLogger{out: out, verbose: verbose}
}

func (l *stderrLogger) Debug(msg string, fields map[string]interface{}) {
	if l.verbose {
		l.write("DEBUG", msg, fields)
	}
}

func (l *stderrLogger) Info(msg string, fields map[string]interface{}) {
	if l.verbose {
		l.write("INFO", msg, fields)
	}
}

func (l *stderrLogger) Warn(msg string, fields map[string]interface{}) {
	l.write("WARN", msg, fields)
}

func (l *stderrLogger) Error(msg string, fields map[string]interface{}) {
	l.write("ERROR", msg, fields)
}

func (l *stderrLogger) write(level, msg string, fields map[string]interface{}) {
	var line strings.Builder

	line.WriteString(level)
	line.WriteString(" ")
	line.WriteString(msg)

	for _, key := range sortedKeys(fields) {
		_, _ = fmt.Fprintf(&line, " %s=%v", key, fields[key])
	}

	line.WriteString("\n")

	_, _ = io.WriteString(l.out, line.String())
}

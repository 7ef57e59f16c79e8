package jsonapi

import (
	"fmt"
	"time"
)

// CacheType names a response cache backend.
type CacheType string

// Cache backends.
const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeNATS   CacheType = "nats"
	CacheTypeNone   CacheType = "none"
)

// CacheConfig selects a cache backend and the freshness rules applied to
// every response stored through it.
type CacheConfig struct {
	Type CacheType

	// MaxEntries bounds the in-process tier. Zero means DefaultCacheSize.
	MaxEntries int

	// TTL is how long a response is served before it is refetched or
	// revalidated. Zero means DefaultCacheTTL.
	TTL time.Duration

	// DisableETags stops tagged responses from outliving TTL for
	// conditional revalidation.
	DisableETags bool

	// CleanupInterval drops expired in-process entries on a timer. Zero
	// leaves them until they are read or evicted.
	CleanupInterval time.Duration

	// NATS configures the shared tier of CacheTypeNATS. A bounded memory
	// tier always sits in front of it.
	NATS *NATSKVConfig
}

// DefaultCacheConfig is an in-process cache with default freshness.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Type:            CacheTypeMemory,
		MaxEntries:      DefaultCacheSize,
		TTL:             DefaultCacheTTL,
		CleanupInterval: DefaultCacheCleanupInterval,
	}
}

// CacheOptions resolves the settings a CacheManager applies for this config.
func (c *CacheConfig) CacheOptions() *CacheOptions {
	options := DefaultCacheOptions()

	if c.MaxEntries > 0 {
		options.MaxSize = c.MaxEntries
	}

	if c.TTL > 0 {
		options.TTL = c.TTL
	}

	options.EnableETags = !c.DisableETags

	return options
}

// NewCacheFromConfig builds the backend named by config. A nil config
// selects DefaultCacheConfig.
func NewCacheFromConfig(config *CacheConfig) (Cache, error) {
	if config == nil {
		config = DefaultCacheConfig()
	}

	if config.TTL < 0 || config.CleanupInterval < 0 || config.MaxEntries < 0 {
		return nil, fmt.Errorf("%w: negative size or duration", ErrInvalidCacheConfig)
	}

	options := config.CacheOptions()

	switch config.Type {
	case CacheTypeMemory, "":
		return NewMemoryCache(options.MaxSize), nil

	case CacheTypeNATS:
		if config.NATS == nil {
			return nil, ErrNATSConfigRequired
		}

		natsConfig := *config.NATS
		if natsConfig.TTL <= 0 {
			natsConfig.TTL = 2 * options.TTL
		}

		shared, err := NewNATSKVCache(&natsConfig)
		if err != nil {
			return nil, err
		}

		return NewCacheChain(NewMemoryCache(options.MaxSize), shared), nil

	case CacheTypeNone:
		return NoOpCache{}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCacheType, config.Type)
	}
}

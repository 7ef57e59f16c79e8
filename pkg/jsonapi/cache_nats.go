package jsonapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Default NATS KV settings.
const (
	DefaultNATSBucket         = "jsonapi_responses"
	DefaultNATSConnectTimeout = 5 * time.Second
)

// NATSKVConfig configures the NATS JetStream key-value cache.
type NATSKVConfig struct {
	// URL of the NATS server, e.g. "nats://127.0.0.1:4222".
	URL string
	// Bucket is the KV bucket name; created when missing.
	Bucket string
	// TTL bounds how long the bucket keeps any value.
	TTL time.Duration
	// Replicas for a newly created bucket.
	Replicas int
	// ConnectTimeout for the initial connection.
	ConnectTimeout time.Duration
	// Name identifies the connection to the server.
	Name string
}

// NATSKVCache stores cache entries in a NATS JetStream KV bucket. Keys are
// hashed because KV keys cannot hold URL characters.
type NATSKVCache struct {
	conn *nats.Conn
	kv   jetstream.KeyValue
}

// NewNATSKVCache connects to NATS and binds (or creates) the bucket.
func NewNATSKVCache(config *NATSKVConfig) (*NATSKVCache, error) {
	if config == nil {
		return nil, ErrNATSConfigRequired
	}

	url := config.URL
	if url == "" {
		url = nats.DefaultURL
	}

	timeout := config.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultNATSConnectTimeout
	}

	opts := []nats.Option{nats.Timeout(timeout)}
	if config.Name != "" {
		opts = append(opts, nats.Name(config.Name))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	kv, err := bindBucket(ctx, conn, config)
	if err != nil {
		conn.Close()

		return nil, err
	}

	return NewNATSKVCacheFromKeyValue(conn, kv), nil
}

// NewNATSKVCacheFromKeyValue wraps an existing bucket. conn may be nil when
// the caller owns the connection.
func NewNATSKVCacheFromKeyValue(conn *nats.Conn, kv jetstream.KeyValue) *NATSKVCache {
	return &NATSKVCache{conn: conn, kv: kv}
}

func bindBucket(ctx context.Context, conn *nats.Conn, config *NATSKVConfig) (jetstream.KeyValue, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	bucket := config.Bucket
	if bucket == "" {
		bucket = DefaultNATSBucket
	}

	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}

	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("binding KV bucket %s: %w", bucket, err)
	}

	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "JSON:API response cache",
		TTL:         config.TTL,
		Replicas:    config.Replicas,
	})
	if err != nil {
		return nil, fmt.Errorf("creating KV bucket %s: %w", bucket, err)
	}

	return kv, nil
}

// Get returns a live entry.
func (c *NATSKVCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	kvEntry, err := c.kv.Get(ctx, natsKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
		}

		return nil, fmt.Errorf("reading %s from NATS KV: %w", key, err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(kvEntry.Value(), &entry); err != nil {
		return nil, fmt.Errorf("decoding cache entry %s: %w", key, err)
	}

	if entry.Expired() {
		_ = c.kv.Delete(ctx, natsKey(key))

		return nil, fmt.Errorf("%w: %s", ErrCacheEntryExpired, key)
	}

	return &entry, nil
}

// Set stores an entry.
func (c *NATSKVCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry %s: %w", key, err)
	}

	if _, err := c.kv.Put(ctx, natsKey(key), data); err != nil {
		return fmt.Errorf("writing %s to NATS KV: %w", key, err)
	}

	return nil
}

// Delete removes an entry.
func (c *NATSKVCache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, natsKey(key))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("deleting %s from NATS KV: %w", key, err)
	}

	return nil
}

// Clear purges every key of the bucket.
func (c *NATSKVCache) Clear(ctx context.Context) error {
	lister, err := c.kv.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("listing NATS KV keys: %w", err)
	}

	defer func() { _ = lister.Stop() }()

	for key := range lister.Keys() {
		if err := c.kv.Purge(ctx, key); err != nil {
			return fmt.Errorf("purging %s from NATS KV: %w", key, err)
		}
	}

	return nil
}

// Has reports whether a live entry exists.
func (c *NATSKVCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// Close closes the owned connection.
func (c *NATSKVCache) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

func natsKey(key string) string {
	sum := sha256.Sum256([]byte(key))

	return hex.EncodeToString(sum[:])
}

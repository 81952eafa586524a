// Package cache provides a Redis read-through decorator for types.DocumentStore.
// Buyer profiles are read on every direct-notified order but change rarely;
// caching them keeps bursts of orders from one buyer off the document store.
// Farmer profiles are not cached: their device tokens change outside this
// service and a stale token means a lost notification.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ordernotify/internal/types"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultTTL       = 5 * time.Minute
	DefaultKeyPrefix = "ordernotify:profile:"
)

// Options configures a CachedStore.
type Options struct {
	TTL       time.Duration
	KeyPrefix string
	// Collections lists the collections whose reads are cached. Reads from
	// any other collection go straight to the backing store.
	Collections []string
}

// CachedStore caches Get results for selected collections in Redis. Redis
// failures are logged and fall through to the backing store; the cache never
// fails a read that the store would have served.
type CachedStore struct {
	next        types.DocumentStore
	rdb         redis.UniversalClient
	ttl         time.Duration
	prefix      string
	collections map[string]bool
	logger      types.Logger
}

var _ types.DocumentStore = (*CachedStore)(nil)

// NewCachedStore wraps next with a Redis cache.
func NewCachedStore(next types.DocumentStore, rdb redis.UniversalClient, opts Options, logger types.Logger) *CachedStore {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	cols := make(map[string]bool, len(opts.Collections))
	for _, c := range opts.Collections {
		cols[c] = true
	}
	return &CachedStore{
		next:        next,
		rdb:         rdb,
		ttl:         opts.TTL,
		prefix:      opts.KeyPrefix,
		collections: cols,
		logger:      logger,
	}
}

// NewClient parses a redis:// URL into a client.
func NewClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (s *CachedStore) key(collection, id string) string {
	return s.prefix + collection + ":" + id
}

// Get serves cached documents when present, otherwise reads through and
// caches the result. Missing documents are not cached.
func (s *CachedStore) Get(ctx context.Context, collection, id string) (types.Document, bool, error) {
	if !s.collections[collection] {
		return s.next.Get(ctx, collection, id)
	}

	key := s.key(collection, id)
	raw, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var doc types.Document
		if jsonErr := json.Unmarshal(raw, &doc); jsonErr == nil {
			return doc, true, nil
		}
		s.logger.Warn("discarding undecodable cache entry", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		s.logger.Warn("cache read failed, reading through", "key", key, "error", err.Error())
	}

	doc, found, err := s.next.Get(ctx, collection, id)
	if err != nil || !found {
		return doc, found, err
	}

	if raw, err := json.Marshal(doc); err != nil {
		s.logger.Warn("document not cacheable", "key", key, "error", err.Error())
	} else if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err.Error())
	}
	return doc, true, nil
}

// Update writes through to the backing store and evicts the cached copy.
func (s *CachedStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := s.next.Update(ctx, collection, id, fields); err != nil {
		return err
	}
	if s.collections[collection] {
		if err := s.rdb.Del(ctx, s.key(collection, id)).Err(); err != nil {
			s.logger.Warn("cache eviction failed", "key", s.key(collection, id), "error", err.Error())
		}
	}
	return nil
}

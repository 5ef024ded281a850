// Package session resolves opaque secret tokens to sessions.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/okian/wearsense/internal/adapters/repository"
	"github.com/okian/wearsense/internal/domain/model"
	"github.com/okian/wearsense/pkg/logger"
	"github.com/okian/wearsense/pkg/metrics"
)

const defaultCacheTTL = 5 * time.Minute

// Registry maps tokens to sessions. Sessions are never deleted, so a cached
// entry can only be stale by expiring.
type Registry struct {
	store repository.Store
	cache *cache.Cache
	group singleflight.Group
	log   logger.Logger
	ttl   time.Duration
}

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithCacheTTL sets how long resolved sessions stay cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithLogger sets a custom logger for the registry.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRegistry creates a Registry backed by store.
func NewRegistry(store repository.Store, opts ...Option) *Registry {
	r := &Registry{store: store, ttl: defaultCacheTTL, log: logger.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	r.cache = cache.New(r.ttl, r.ttl*2)
	return r
}

// ResolveOrCreate returns the session for token, creating it on first use.
// Concurrent first calls for one token share a single store round trip.
func (r *Registry) ResolveOrCreate(ctx context.Context, token string) (model.Session, error) {
	if token == "" {
		return model.Session{}, ErrEmptyToken
	}
	if sess, ok := r.cached(token); ok {
		return sess, nil
	}

	v, err, _ := r.group.Do(token, func() (any, error) {
		// Detached so one caller giving up does not fail the others.
		sess, created, err := r.store.UpsertSession(context.WithoutCancel(ctx), token)
		if err != nil {
			return model.Session{}, err
		}
		if created {
			metrics.RecordSessionCreated()
			r.log.Debug(ctx, "session created", logger.String("session", sess.ID))
		}
		r.cache.Set(token, sess, cache.DefaultExpiration)
		return sess, nil
	})
	if err != nil {
		return model.Session{}, fmt.Errorf("resolve session: %w", err)
	}
	return v.(model.Session), nil
}

// Lookup returns the session for an already registered token or
// ErrSessionNotFound.
func (r *Registry) Lookup(ctx context.Context, token string) (model.Session, error) {
	if token == "" {
		return model.Session{}, ErrEmptyToken
	}
	if sess, ok := r.cached(token); ok {
		return sess, nil
	}
	sess, err := r.store.SessionBySecret(ctx, token)
	if err != nil {
		return model.Session{}, err
	}
	r.cache.Set(token, sess, cache.DefaultExpiration)
	return sess, nil
}

func (r *Registry) cached(token string) (model.Session, bool) {
	v, ok := r.cache.Get(token)
	if !ok {
		return model.Session{}, false
	}
	metrics.RecordSessionCacheHit()
	return v.(model.Session), true
}

// CachedCount reports the number of cached sessions.
func (r *Registry) CachedCount() int {
	return r.cache.ItemCount()
}

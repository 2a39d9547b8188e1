// Package ratelimit implements sliding-window request limiting with
// per-endpoint configuration carried in huma operation metadata.
package ratelimit

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// MetadataKey is the operation metadata key endpoint configs are stored under.
const MetadataKey = "rateLimit"

// Store records requests and reports the count inside the current window.
type Store interface {
	// Record registers a request under key and returns how many requests
	// fall within the window, pruning expired entries.
	Record(ctx context.Context, key string, window time.Duration) (count int64, err error)
}

// LimitConfig is one window/ceiling pair.
type LimitConfig struct {
	Window time.Duration
	Max    int64
}

// EndpointConfig overrides the default limits for a single operation.
type EndpointConfig struct {
	// Limits replaces the default limits when non-empty.
	Limits []LimitConfig

	// Disabled skips rate limiting for this endpoint entirely.
	Disabled bool
}

// Exceeded describes which limit a rejected request hit.
type Exceeded struct {
	Config LimitConfig
	Count  int64
}

// Limiter applies a set of sliding-window limits per client key.
type Limiter struct {
	store    Store
	defaults []LimitConfig
}

// NewLimiter creates a limiter with the given default limits. Endpoints can
// override them through EndpointConfig metadata.
func NewLimiter(store Store, defaults []LimitConfig) *Limiter {
	return &Limiter{
		store:    store,
		defaults: defaults,
	}
}

// Allow records the request against each limit in limits (or the defaults
// when limits is empty) and reports the first limit exceeded, if any. The
// scope keeps counters for different endpoints independent.
func (l *Limiter) Allow(ctx context.Context, clientKey, scope string, limits []LimitConfig) (bool, *Exceeded, error) {
	if len(limits) == 0 {
		limits = l.defaults
	}

	for _, limit := range limits {
		key := clientKey + ":" + scope + ":" + limit.Window.String()

		count, err := l.store.Record(ctx, key, limit.Window)
		if err != nil {
			return false, nil, err
		}

		if count > limit.Max {
			return false, &Exceeded{Config: limit, Count: count}, nil
		}
	}

	return true, nil, nil
}

// ConfigFor extracts the endpoint config from operation metadata, if any.
func ConfigFor(ctx huma.Context) *EndpointConfig {
	op := ctx.Operation()
	if op == nil || op.Metadata == nil {
		return nil
	}

	cfg, ok := op.Metadata[MetadataKey].(EndpointConfig)
	if !ok {
		return nil
	}

	return &cfg
}

package store

import (
	"context"
	"strconv"
	"time"

	"github.com/quicklink/quicklink/internal/link"
	"github.com/redis/go-redis/v9"
)

// RedisCacheStore wraps a link.Repository with a Redis read cache for the
// redirect hot path (lookup by short code). Writes go through to the inner
// store; cache entries carry a TTL so counter staleness is bounded.
//
// Deactivation must take effect promptly, so SetActive evicts the entry
// instead of waiting for the TTL.
type RedisCacheStore struct {
	link.Repository

	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCacheStore creates a caching decorator over the given repository.
func NewRedisCacheStore(inner link.Repository, client *redis.Client, ttl time.Duration) *RedisCacheStore {
	return &RedisCacheStore{
		Repository: inner,
		client:     client,
		prefix:     "link:",
		ttl:        ttl,
	}
}

// Insert stores the link and warms the cache.
func (r *RedisCacheStore) Insert(ctx context.Context, l *link.Link) error {
	if err := r.Repository.Insert(ctx, l); err != nil {
		return err
	}

	r.cacheLink(ctx, l)

	return nil
}

// GetByCode checks the cache before falling back to the inner store.
func (r *RedisCacheStore) GetByCode(ctx context.Context, shortCode string) (*link.Link, error) {
	if l, err := r.getFromCache(ctx, shortCode); err == nil {
		return l, nil
	}

	l, err := r.Repository.GetByCode(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	r.cacheLink(ctx, l)

	return l, nil
}

// SetActive updates the inner store and evicts the cached entry so the
// redirect path sees the change immediately.
func (r *RedisCacheStore) SetActive(ctx context.Context, id string, active bool) error {
	if err := r.Repository.SetActive(ctx, id, active); err != nil {
		return err
	}

	if l, err := r.Repository.GetByID(ctx, id); err == nil {
		_ = r.client.Del(ctx, r.prefix+l.ShortCode).Err()
	}

	return nil
}

func (r *RedisCacheStore) getFromCache(ctx context.Context, shortCode string) (*link.Link, error) {
	result, err := r.client.HGetAll(ctx, r.prefix+shortCode).Result()
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, link.ErrNotFound
	}

	l := &link.Link{
		ID:          result["id"],
		ShortCode:   result["short_code"],
		OriginalURL: result["original_url"],
		Title:       result["title"],
	}

	l.IsAffiliate, _ = strconv.ParseBool(result["is_affiliate"])
	l.IsActive, _ = strconv.ParseBool(result["is_active"])
	l.RedirectDelay, _ = strconv.Atoi(result["redirect_delay"])
	l.TotalClicks, _ = strconv.ParseInt(result["total_clicks"], 10, 64)
	l.EstimatedRevenue, _ = strconv.ParseFloat(result["estimated_revenue"], 64)

	if nanos, err := strconv.ParseInt(result["created_at"], 10, 64); err == nil {
		l.CreatedAt = time.Unix(0, nanos)
	}

	return l, nil
}

func (r *RedisCacheStore) cacheLink(ctx context.Context, l *link.Link) {
	key := r.prefix + l.ShortCode

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"id":                l.ID,
		"short_code":        l.ShortCode,
		"original_url":      l.OriginalURL,
		"title":             l.Title,
		"is_affiliate":      strconv.FormatBool(l.IsAffiliate),
		"is_active":         strconv.FormatBool(l.IsActive),
		"redirect_delay":    strconv.Itoa(l.RedirectDelay),
		"total_clicks":      strconv.FormatInt(l.TotalClicks, 10),
		"estimated_revenue": strconv.FormatFloat(l.EstimatedRevenue, 'f', -1, 64),
		"created_at":        strconv.FormatInt(l.CreatedAt.UnixNano(), 10),
	})

	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}

	_, _ = pipe.Exec(ctx)
}

// Compile-time check.
var _ link.Repository = (*RedisCacheStore)(nil)

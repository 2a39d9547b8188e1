package handlers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jaevor/go-nanoid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/quicklink/quicklink/internal/analytics"
	"github.com/quicklink/quicklink/internal/handlers"
	"github.com/quicklink/quicklink/internal/link"
	"github.com/quicklink/quicklink/internal/messaging"
	"github.com/quicklink/quicklink/internal/metrics"
	"github.com/quicklink/quicklink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testBaseURL = "http://localhost:8888"

// noopPublish returns a publish function that always succeeds.
func noopPublish[T any]() messaging.Publish[T] {
	return func(_ *T) error { return nil }
}

// errorPublish returns a publish function that always fails.
func errorPublish[T any](err error) messaging.Publish[T] {
	return func(_ *T) error { return err }
}

func newLinkHandler(t *testing.T, s link.Repository) *handlers.LinkHandler {
	t.Helper()

	gen, err := nanoid.CustomASCII(link.CodeAlphabet, link.CodeLength)
	require.NoError(t, err)

	return handlers.NewLinkHandler(
		s,
		link.NewAllocator(s, link.CodeGenerator(gen)),
		link.NewLedger(s, zap.NewNop()),
		testBaseURL,
		noopPublish[analytics.LinkCreatedEvent](),
		noopPublish[analytics.LinkVisitedEvent](),
		zap.NewNop(),
		metrics.New(prometheus.NewRegistry()),
	)
}

func createLink(t *testing.T, h *handlers.LinkHandler, spec handlers.NewLinkSpec) handlers.LinkPayload {
	t.Helper()

	req := &handlers.CreateLinkRequest{Body: spec}

	resp, err := h.CreateLink(context.Background(), req)
	require.NoError(t, err)

	return resp.Body
}

func TestCreateLink(t *testing.T) {
	t.Run("creates a link with a generated code", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newLinkHandler(t, memStore)

		payload := createLink(t, handler, handlers.NewLinkSpec{URL: "https://example.com/long/path"})

		assert.Len(t, payload.ShortCode, link.CodeLength)
		assert.Equal(t, "https://example.com/long/path", payload.OriginalURL)
		assert.Equal(t, testBaseURL+"/"+payload.ShortCode, payload.ShortURL)
		assert.Equal(t, 3, payload.RedirectDelay)
		assert.True(t, payload.IsActive)
		assert.Zero(t, payload.TotalClicks)
	})

	t.Run("honors a free custom code", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newLinkHandler(t, memStore)

		payload := createLink(t, handler, handlers.NewLinkSpec{
			URL:        "https://example.com",
			CustomCode: "mylink",
		})

		assert.Equal(t, "mylink", payload.ShortCode)
	})

	t.Run("rejects a taken custom code with 409", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newLinkHandler(t, memStore)

		createLink(t, handler, handlers.NewLinkSpec{URL: "https://example.com", CustomCode: "mylink"})

		req := &handlers.CreateLinkRequest{}
		req.Body.URL = "https://example.org"
		req.Body.CustomCode = "mylink"

		_, err := handler.CreateLink(context.Background(), req)

		var statusErr huma.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, 409, statusErr.GetStatus())
	})

	t.Run("rejects a non-alphanumeric custom code with 422", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newLinkHandler(t, memStore)

		req := &handlers.CreateLinkRequest{}
		req.Body.URL = "https://example.com"
		req.Body.CustomCode = "my-link"

		_, err := handler.CreateLink(context.Background(), req)

		var statusErr huma.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, 422, statusErr.GetStatus())
	})

	t.Run("rejects urls without an http scheme", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newLinkHandler(t, memStore)

		for _, url := range []string{"", "ftp://example.com", "example.com", "javascript:alert(1)"} {
			req := &handlers.CreateLinkRequest{}
			req.Body.URL = url

			_, err := handler.CreateLink(context.Background(), req)

			var statusErr huma.StatusError
			require.ErrorAs(t, err, &statusErr, url)
			assert.Equal(t, 422, statusErr.GetStatus(), url)
		}
	})

	t.Run("sets the Location header to the short url", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newLinkHandler(t, memStore)

		req := &handlers.CreateLinkRequest{}
		req.Body.URL = "https://example.com"

		resp, err := handler.CreateLink(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, resp.Body.ShortURL, resp.Headers.Location)
	})

	t.Run("publish failure does not fail creation", func(t *testing.T) {
		memStore := store.NewMemoryStore()

		gen, err := nanoid.CustomASCII(link.CodeAlphabet, link.CodeLength)
		require.NoError(t, err)

		handler := handlers.NewLinkHandler(
			memStore,
			link.NewAllocator(memStore, link.CodeGenerator(gen)),
			link.NewLedger(memStore, zap.NewNop()),
			testBaseURL,
			errorPublish[analytics.LinkCreatedEvent](errors.New("broker down")),
			errorPublish[analytics.LinkVisitedEvent](errors.New("broker down")),
			zap.NewNop(),
			metrics.New(prometheus.NewRegistry()),
		)

		req := &handlers.CreateLinkRequest{}
		req.Body.URL = "https://example.com"

		resp, err := handler.CreateLink(context.Background(), req)

		require.NoError(t, err)
		assert.NotEmpty(t, resp.Body.ShortCode)
	})
}

func TestBulkCreateLinks(t *testing.T) {
	t.Run("reports per-item outcomes", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newLinkHandler(t, memStore)

		createLink(t, handler, handlers.NewLinkSpec{URL: "https://example.com", CustomCode: "taken1"})

		req := &handlers.BulkCreateLinksRequest{}
		req.Body.Links = []handlers.NewLinkSpec{
			{URL: "https://example.com/a"},
			{URL: "not-a-url"},
			{URL: "https://example.com/b", CustomCode: "taken1"},
			{URL: "https://example.com/c", CustomCode: "fresh1"},
		}

		resp, err := handler.BulkCreateLinks(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, 2, resp.Body.Created)
		assert.Equal(t, 2, resp.Body.Failed)
		require.Len(t, resp.Body.Errors, 2)
		assert.Equal(t, 1, resp.Body.Errors[0].Index)
		assert.Equal(t, 2, resp.Body.Errors[1].Index)
		require.Len(t, resp.Body.Links, 2)
		assert.Equal(t, "fresh1", resp.Body.Links[1].ShortCode)
	})
}

func TestResolve(t *testing.T) {
	t.Run("returns the interstitial payload and records the visit", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newLinkHandler(t, memStore)

		payload := createLink(t, handler, handlers.NewLinkSpec{
			URL:         "https://example.com/dest",
			IsAffiliate: true,
		})

		ctx := handlers.ContextWithRequestMeta(context.Background(), handlers.RequestMeta{
			UserAgent: "Mozilla/5.0 (iPhone) Mobile",
			Referrer:  "https://twitter.com",
		})

		resp, err := handler.Resolve(ctx, &handlers.ResolveRequest{Code: payload.ShortCode})

		require.NoError(t, err)
		assert.Equal(t, "https://example.com/dest", resp.Body.OriginalURL)
		assert.Equal(t, 3, resp.Body.RedirectDelay)
		assert.True(t, resp.Body.IsAffiliate)
		assert.Equal(t, int64(1), resp.Body.TotalClicks)

		l, err := memStore.GetByID(context.Background(), payload.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), l.TotalClicks)
		assert.InDelta(t, link.RateAffiliate, l.EstimatedRevenue, 1e-9)

		clicks, err := memStore.ListClicks(context.Background(), payload.ID, 10)
		require.NoError(t, err)
		require.Len(t, clicks, 1)
		assert.Equal(t, link.DeviceMobile, clicks[0].DeviceType)
		assert.Equal(t, "https://twitter.com", clicks[0].Referrer)
	})

	t.Run("returns 404 for an unknown code", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newLinkHandler(t, memStore)

		_, err := handler.Resolve(context.Background(), &handlers.ResolveRequest{Code: "nothere"})

		var statusErr huma.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, 404, statusErr.GetStatus())
	})

	t.Run("returns 404 for a deactivated link", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newLinkHandler(t, memStore)

		payload := createLink(t, handler, handlers.NewLinkSpec{URL: "https://example.com"})

		_, err := handler.DeactivateLink(context.Background(), &handlers.DeactivateLinkRequest{ID: payload.ID})
		require.NoError(t, err)

		_, err = handler.Resolve(context.Background(), &handlers.ResolveRequest{Code: payload.ShortCode})

		var statusErr huma.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, 404, statusErr.GetStatus())

		l, err := memStore.GetByID(context.Background(), payload.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), l.TotalClicks, "visits to deactivated links accrue nothing")
	})

	t.Run("still resolves when the visit cannot be recorded", func(t *testing.T) {
		inner := store.NewMemoryStore()
		broken := &failingLinkStore{Repository: inner, insertClickErr: errors.New("db down")}
		handler := newLinkHandler(t, broken)

		payload := createLink(t, handler, handlers.NewLinkSpec{URL: "https://example.com"})

		resp, err := handler.Resolve(context.Background(), &handlers.ResolveRequest{Code: payload.ShortCode})

		require.NoError(t, err)
		assert.Equal(t, "https://example.com", resp.Body.OriginalURL)
		assert.Equal(t, int64(0), resp.Body.TotalClicks, "count stays stale when accounting fails")
	})
}

func TestListLinksAndClicks(t *testing.T) {
	t.Run("lists links newest first", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newLinkHandler(t, memStore)

		createLink(t, handler, handlers.NewLinkSpec{URL: "https://example.com/1"})
		createLink(t, handler, handlers.NewLinkSpec{URL: "https://example.com/2"})

		resp, err := handler.ListLinks(context.Background(), &struct{}{})

		require.NoError(t, err)
		assert.Len(t, resp.Body.Links, 2)
	})

	t.Run("list failure maps to 500", func(t *testing.T) {
		memStore := &failingLinkStore{Repository: store.NewMemoryStore(), listErr: errors.New("db down")}
		handler := newLinkHandler(t, memStore)

		_, err := handler.ListLinks(context.Background(), &struct{}{})

		var statusErr huma.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, 500, statusErr.GetStatus())
	})

	t.Run("returns clicks for a link", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newLinkHandler(t, memStore)

		payload := createLink(t, handler, handlers.NewLinkSpec{URL: "https://example.com"})

		for i := 0; i < 3; i++ {
			_, err := handler.Resolve(context.Background(), &handlers.ResolveRequest{Code: payload.ShortCode})
			require.NoError(t, err)
		}

		resp, err := handler.LinkClicks(context.Background(), &handlers.LinkClicksRequest{
			Code:  payload.ShortCode,
			Limit: 2,
		})

		require.NoError(t, err)
		assert.Len(t, resp.Body.Clicks, 2)
	})

	t.Run("clicks for an unknown code map to 404", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newLinkHandler(t, memStore)

		_, err := handler.LinkClicks(context.Background(), &handlers.LinkClicksRequest{Code: "nothere", Limit: 10})

		var statusErr huma.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, 404, statusErr.GetStatus())
	})
}

func TestDeactivateLink(t *testing.T) {
	t.Run("unknown id maps to 404", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newLinkHandler(t, memStore)

		_, err := handler.DeactivateLink(context.Background(), &handlers.DeactivateLinkRequest{ID: "missing"})

		var statusErr huma.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, 404, statusErr.GetStatus())
	})
}

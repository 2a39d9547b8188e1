package handlers_test

import (
	"context"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quicklink/quicklink/internal/handlers"
	"github.com/quicklink/quicklink/internal/store"
	"github.com/quicklink/quicklink/internal/story"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newStoryHandler(s story.Repository) *handlers.StoryHandler {
	return handlers.NewStoryHandler(s, zap.NewNop())
}

func createAccount(t *testing.T, h *handlers.StoryHandler) handlers.AccountPayload {
	t.Helper()

	req := &handlers.CreateAccountRequest{}
	req.Body.FacebookUserID = "fb-user"
	req.Body.PageID = "page-9"
	req.Body.PageName = "My Page"
	req.Body.AccessToken = "secret-token"
	req.Body.TokenExpiresAt = time.Now().UTC().Add(24 * time.Hour)

	resp, err := h.CreateAccount(context.Background(), req)
	require.NoError(t, err)

	return resp.Body
}

func scheduleStory(t *testing.T, h *handlers.StoryHandler, accountID string, at time.Time) handlers.StoryPayload {
	t.Helper()

	req := &handlers.CreateStoryRequest{}
	req.Body.AccountID = accountID
	req.Body.MediaURL = "https://cdn.example.com/photo.jpg"
	req.Body.Caption = "hello"
	req.Body.ScheduledTime = at

	resp, err := h.CreateStory(context.Background(), req)
	require.NoError(t, err)

	return resp.Body
}

func assertStatus(t *testing.T, err error, want int) {
	t.Helper()

	var statusErr huma.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, want, statusErr.GetStatus())
}

func TestCreateAccount(t *testing.T) {
	t.Run("creates an active account without echoing the token", func(t *testing.T) {
		handler := newStoryHandler(store.NewMemoryStore())

		payload := createAccount(t, handler)

		assert.NotEmpty(t, payload.ID)
		assert.Equal(t, "fb-user", payload.FacebookUserID)
		assert.Equal(t, "page-9", payload.PageID)
		assert.True(t, payload.IsActive)
	})

	t.Run("requires an access token", func(t *testing.T) {
		handler := newStoryHandler(store.NewMemoryStore())

		req := &handlers.CreateAccountRequest{}
		req.Body.TokenExpiresAt = time.Now().UTC().Add(time.Hour)

		_, err := handler.CreateAccount(context.Background(), req)
		assertStatus(t, err, 422)
	})

	t.Run("requires a token expiry", func(t *testing.T) {
		handler := newStoryHandler(store.NewMemoryStore())

		req := &handlers.CreateAccountRequest{}
		req.Body.AccessToken = "token"

		_, err := handler.CreateAccount(context.Background(), req)
		assertStatus(t, err, 422)
	})

	t.Run("falls back to the page id as the posting identity", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newStoryHandler(memStore)

		req := &handlers.CreateAccountRequest{}
		req.Body.PageID = "page-7"
		req.Body.AccessToken = "token"
		req.Body.TokenExpiresAt = time.Now().UTC().Add(time.Hour)

		resp, err := handler.CreateAccount(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, "page-7", resp.Body.FacebookUserID)
	})
}

func TestDeactivateAccount(t *testing.T) {
	t.Run("deactivates an existing account", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newStoryHandler(memStore)

		payload := createAccount(t, handler)

		_, err := handler.DeactivateAccount(context.Background(), &handlers.DeactivateAccountRequest{ID: payload.ID})
		require.NoError(t, err)

		got, err := memStore.GetAccount(context.Background(), payload.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
	})

	t.Run("unknown account maps to 404", func(t *testing.T) {
		handler := newStoryHandler(store.NewMemoryStore())

		_, err := handler.DeactivateAccount(context.Background(), &handlers.DeactivateAccountRequest{ID: "missing"})
		assertStatus(t, err, 404)
	})
}

func TestCreateStory(t *testing.T) {
	future := time.Now().UTC().Add(time.Hour)

	t.Run("schedules a pending image story", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newStoryHandler(memStore)

		account := createAccount(t, handler)
		payload := scheduleStory(t, handler, account.ID, future)

		assert.Equal(t, string(story.StatusPending), payload.Status)
		assert.Equal(t, story.TypeImage, payload.StoryType)
		assert.Equal(t, 0, payload.RetryCount)
		assert.Empty(t, payload.ExternalPostID)
	})

	t.Run("requires account, media url and schedule", func(t *testing.T) {
		handler := newStoryHandler(store.NewMemoryStore())

		req := &handlers.CreateStoryRequest{}
		req.Body.MediaURL = "https://cdn.example.com/photo.jpg"

		_, err := handler.CreateStory(context.Background(), req)
		assertStatus(t, err, 422)
	})

	t.Run("rejects media urls without an http scheme", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newStoryHandler(memStore)

		account := createAccount(t, handler)

		req := &handlers.CreateStoryRequest{}
		req.Body.AccountID = account.ID
		req.Body.MediaURL = "file:///etc/passwd"
		req.Body.ScheduledTime = future

		_, err := handler.CreateStory(context.Background(), req)
		assertStatus(t, err, 422)
	})

	t.Run("rejects stories for unknown accounts", func(t *testing.T) {
		handler := newStoryHandler(store.NewMemoryStore())

		req := &handlers.CreateStoryRequest{}
		req.Body.AccountID = "missing"
		req.Body.MediaURL = "https://cdn.example.com/photo.jpg"
		req.Body.ScheduledTime = future

		_, err := handler.CreateStory(context.Background(), req)
		assertStatus(t, err, 404)
	})
}

func TestDeleteStory(t *testing.T) {
	t.Run("deletes a pending story", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newStoryHandler(memStore)

		account := createAccount(t, handler)
		payload := scheduleStory(t, handler, account.ID, time.Now().UTC().Add(time.Hour))

		_, err := handler.DeleteStory(context.Background(), &handlers.StoryIDRequest{ID: payload.ID})
		require.NoError(t, err)

		_, err = memStore.GetStory(context.Background(), payload.ID)
		assert.ErrorIs(t, err, story.ErrNotFound)
	})

	t.Run("claimed story maps to 409", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newStoryHandler(memStore)

		account := createAccount(t, handler)
		payload := scheduleStory(t, handler, account.ID, time.Now().UTC().Add(-time.Minute))

		_, err := memStore.ClaimDueStories(context.Background(), time.Now().UTC(), story.BatchSize)
		require.NoError(t, err)

		_, err = handler.DeleteStory(context.Background(), &handlers.StoryIDRequest{ID: payload.ID})
		assertStatus(t, err, 409)
	})

	t.Run("unknown story maps to 404", func(t *testing.T) {
		handler := newStoryHandler(store.NewMemoryStore())

		_, err := handler.DeleteStory(context.Background(), &handlers.StoryIDRequest{ID: "missing"})
		assertStatus(t, err, 404)
	})
}

func TestRequeueStory(t *testing.T) {
	t.Run("requeues a failed story", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newStoryHandler(memStore)

		account := createAccount(t, handler)
		payload := scheduleStory(t, handler, account.ID, time.Now().UTC().Add(-time.Minute))

		require.NoError(t, memStore.UpdateStatus(context.Background(), payload.ID, story.StatusUpdate{
			Status:       story.StatusFailed,
			ErrorMessage: "boom",
			RetryCount:   1,
		}))

		_, err := handler.RequeueStory(context.Background(), &handlers.StoryIDRequest{ID: payload.ID})
		require.NoError(t, err)

		got, err := memStore.GetStory(context.Background(), payload.ID)
		require.NoError(t, err)
		assert.Equal(t, story.StatusPending, got.Status)
	})

	t.Run("pending story maps to 409", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newStoryHandler(memStore)

		account := createAccount(t, handler)
		payload := scheduleStory(t, handler, account.ID, time.Now().UTC().Add(time.Hour))

		_, err := handler.RequeueStory(context.Background(), &handlers.StoryIDRequest{ID: payload.ID})
		assertStatus(t, err, 409)
	})

	t.Run("unknown story maps to 404", func(t *testing.T) {
		handler := newStoryHandler(store.NewMemoryStore())

		_, err := handler.RequeueStory(context.Background(), &handlers.StoryIDRequest{ID: "missing"})
		assertStatus(t, err, 404)
	})
}

func TestListAccountsAndStories(t *testing.T) {
	t.Run("lists accounts filtered by owner", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newStoryHandler(memStore)

		req := &handlers.CreateAccountRequest{}
		req.Body.OwnerID = "owner-1"
		req.Body.AccessToken = "token"
		req.Body.TokenExpiresAt = time.Now().UTC().Add(time.Hour)

		_, err := handler.CreateAccount(context.Background(), req)
		require.NoError(t, err)

		createAccount(t, handler)

		resp, err := handler.ListAccounts(context.Background(), &handlers.ListAccountsRequest{OwnerID: "owner-1"})

		require.NoError(t, err)
		assert.Len(t, resp.Body.Accounts, 1)
	})

	t.Run("lists stories", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		handler := newStoryHandler(memStore)

		account := createAccount(t, handler)
		scheduleStory(t, handler, account.ID, time.Now().UTC().Add(time.Hour))
		scheduleStory(t, handler, account.ID, time.Now().UTC().Add(2*time.Hour))

		resp, err := handler.ListStories(context.Background(), &struct{}{})

		require.NoError(t, err)
		assert.Len(t, resp.Body.Stories, 2)
	})
}

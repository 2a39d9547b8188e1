package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/quicklink/quicklink/internal/story"
	"go.uber.org/zap"
)

// StoryHandler handles Facebook account and scheduled story management.
type StoryHandler struct {
	store  story.Repository
	logger *zap.Logger
}

// NewStoryHandler creates a story handler.
func NewStoryHandler(store story.Repository, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		store:  store,
		logger: logger,
	}
}

// CreateAccount links a Facebook credential for publishing.
func (h *StoryHandler) CreateAccount(ctx context.Context, req *CreateAccountRequest) (*CreateAccountResponse, error) {
	if req.Body.AccessToken == "" {
		return nil, huma.Error422UnprocessableEntity("access token is required")
	}

	if req.Body.TokenExpiresAt.IsZero() {
		return nil, huma.Error422UnprocessableEntity("token expiry is required")
	}

	fbUserID := req.Body.FacebookUserID
	if fbUserID == "" {
		// The UI falls back to the page as the posting identity.
		fbUserID = req.Body.PageID
	}

	if fbUserID == "" {
		fbUserID = "me"
	}

	account := &story.Account{
		ID:             uuid.NewString(),
		OwnerID:        req.Body.OwnerID,
		FacebookUserID: fbUserID,
		PageID:         req.Body.PageID,
		PageName:       req.Body.PageName,
		AccessToken:    req.Body.AccessToken,
		TokenExpiresAt: req.Body.TokenExpiresAt,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}

	if err := h.store.InsertAccount(ctx, account); err != nil {
		return nil, huma.Error500InternalServerError("failed to save account")
	}

	return &CreateAccountResponse{Body: accountPayload(account)}, nil
}

// ListAccounts returns accounts, optionally filtered by owner.
func (h *StoryHandler) ListAccounts(ctx context.Context, req *ListAccountsRequest) (*ListAccountsResponse, error) {
	accounts, err := h.store.ListAccounts(ctx, req.OwnerID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list accounts")
	}

	resp := &ListAccountsResponse{}
	resp.Body.Accounts = make([]AccountPayload, 0, len(accounts))

	for _, a := range accounts {
		resp.Body.Accounts = append(resp.Body.Accounts, accountPayload(a))
	}

	return resp, nil
}

// DeactivateAccount halts all future dispatch for the account's stories.
// History is kept.
func (h *StoryHandler) DeactivateAccount(ctx context.Context, req *DeactivateAccountRequest) (*struct{}, error) {
	if err := h.store.SetAccountActive(ctx, req.ID, false); err != nil {
		if errors.Is(err, story.ErrAccountNotFound) {
			return nil, huma.Error404NotFound("account not found")
		}

		return nil, huma.Error500InternalServerError("failed to deactivate account")
	}

	return &struct{}{}, nil
}

// CreateStory schedules a story in pending state.
func (h *StoryHandler) CreateStory(ctx context.Context, req *CreateStoryRequest) (*CreateStoryResponse, error) {
	if req.Body.AccountID == "" || req.Body.MediaURL == "" || req.Body.ScheduledTime.IsZero() {
		return nil, huma.Error422UnprocessableEntity("accountId, mediaUrl and scheduledTime are required")
	}

	if err := validateDestination(req.Body.MediaURL); err != nil {
		return nil, huma.Error422UnprocessableEntity("image url must start with http:// or https://")
	}

	if _, err := h.store.GetAccount(ctx, req.Body.AccountID); err != nil {
		if errors.Is(err, story.ErrAccountNotFound) {
			return nil, huma.Error404NotFound("account not found")
		}

		return nil, huma.Error500InternalServerError("failed to verify account")
	}

	storyType := req.Body.StoryType
	if storyType == "" {
		storyType = story.TypeImage
	}

	s := &story.ScheduledStory{
		ID:            uuid.NewString(),
		AccountID:     req.Body.AccountID,
		StoryType:     storyType,
		MediaURL:      req.Body.MediaURL,
		Caption:       req.Body.Caption,
		ScheduledTime: req.Body.ScheduledTime.UTC(),
		Status:        story.StatusPending,
		CreatedAt:     time.Now().UTC(),
	}

	if err := h.store.InsertStory(ctx, s); err != nil {
		return nil, huma.Error500InternalServerError("failed to schedule story")
	}

	return &CreateStoryResponse{Body: storyPayload(s)}, nil
}

// ListStories returns all stories, newest schedule first.
func (h *StoryHandler) ListStories(ctx context.Context, _ *struct{}) (*ListStoriesResponse, error) {
	stories, err := h.store.ListStories(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list stories")
	}

	resp := &ListStoriesResponse{}
	resp.Body.Stories = make([]StoryPayload, 0, len(stories))

	for _, s := range stories {
		resp.Body.Stories = append(resp.Body.Stories, storyPayload(s))
	}

	return resp, nil
}

// DeleteStory removes a story that has not been claimed yet. Claimed,
// posted, and failed stories are immutable history.
func (h *StoryHandler) DeleteStory(ctx context.Context, req *StoryIDRequest) (*struct{}, error) {
	err := h.store.DeletePendingStory(ctx, req.ID)

	switch {
	case err == nil:
		return &struct{}{}, nil
	case errors.Is(err, story.ErrNotFound):
		return nil, huma.Error404NotFound("story not found")
	case errors.Is(err, story.ErrNotPending):
		return nil, huma.Error409Conflict("only pending stories can be deleted")
	default:
		return nil, huma.Error500InternalServerError("failed to delete story")
	}
}

// RequeueStory puts a failed story below the retry ceiling back in line
// for the next dispatch cycle.
func (h *StoryHandler) RequeueStory(ctx context.Context, req *StoryIDRequest) (*struct{}, error) {
	err := h.store.RequeueStory(ctx, req.ID)

	switch {
	case err == nil:
		h.logger.Info("story requeued", zap.String("story_id", req.ID))

		return &struct{}{}, nil
	case errors.Is(err, story.ErrNotFound):
		return nil, huma.Error404NotFound("story not found")
	case errors.Is(err, story.ErrNotRequeueable):
		return nil, huma.Error409Conflict("story is not failed or has exhausted its retries")
	default:
		return nil, huma.Error500InternalServerError("failed to requeue story")
	}
}

func accountPayload(a *story.Account) AccountPayload {
	return AccountPayload{
		ID:             a.ID,
		FacebookUserID: a.FacebookUserID,
		PageID:         a.PageID,
		PageName:       a.PageName,
		TokenExpiresAt: a.TokenExpiresAt,
		IsActive:       a.IsActive,
		CreatedAt:      a.CreatedAt,
	}
}

func storyPayload(s *story.ScheduledStory) StoryPayload {
	return StoryPayload{
		ID:             s.ID,
		AccountID:      s.AccountID,
		StoryType:      s.StoryType,
		MediaURL:       s.MediaURL,
		Caption:        s.Caption,
		ScheduledTime:  s.ScheduledTime,
		Status:         string(s.Status),
		PostedAt:       s.PostedAt,
		ErrorMessage:   s.ErrorMessage,
		RetryCount:     s.RetryCount,
		ExternalPostID: s.ExternalPostID,
		CreatedAt:      s.CreatedAt,
	}
}

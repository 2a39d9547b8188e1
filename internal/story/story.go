package story

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a scheduled story.
// Transitions only move forward: pending -> processing -> posted | failed.
// posted is terminal; failed jobs stay failed until an owner requeues them.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPosted     Status = "posted"
	StatusFailed     Status = "failed"
)

const (
	// RetryCeiling is the number of failed publish attempts after which a
	// story is no longer eligible for dispatch.
	RetryCeiling = 3
	// BatchSize caps how many due stories one dispatch cycle claims.
	BatchSize = 10
	// TypeImage is the only supported story media type.
	TypeImage = "image"
)

var (
	// ErrNotFound is returned when no story exists for an id.
	ErrNotFound = errors.New("story not found")
	// ErrAccountNotFound is returned when no account exists for an id.
	ErrAccountNotFound = errors.New("facebook account not found")
	// ErrUnsupportedMediaType is returned for story types the gateway
	// cannot publish. No external call is made.
	ErrUnsupportedMediaType = errors.New("unsupported story media type")
	// ErrNotPending is returned when deleting a story that has already
	// been claimed; only pending stories may be deleted.
	ErrNotPending = errors.New("story is not pending")
	// ErrNotRequeueable is returned when requeueing a story that is not
	// failed or has exhausted its retries.
	ErrNotRequeueable = errors.New("story cannot be requeued")
)

// Account is a Facebook credential used to publish stories.
// A token past TokenExpiresAt must never be used for a publish attempt.
type Account struct {
	ID             string
	OwnerID        string
	FacebookUserID string
	PageID         string
	PageName       string
	AccessToken    string
	TokenExpiresAt time.Time
	IsActive       bool
	CreatedAt      time.Time
}

// TargetID returns the Graph API node the story is published under: the
// page when one is linked, the user otherwise.
func (a *Account) TargetID() string {
	if a.PageID != "" {
		return a.PageID
	}

	return a.FacebookUserID
}

// TokenExpired reports whether the access token is past its expiry at now.
func (a *Account) TokenExpired(now time.Time) bool {
	return a.TokenExpiresAt.Before(now)
}

// ScheduledStory is one unit of deferred publishing work.
// ExternalPostID is set if and only if Status is posted.
type ScheduledStory struct {
	ID             string
	AccountID      string
	StoryType      string
	MediaURL       string
	Caption        string
	ScheduledTime  time.Time
	Status         Status
	PostedAt       *time.Time
	ErrorMessage   string
	RetryCount     int
	ExternalPostID string
	CreatedAt      time.Time
}

// StatusUpdate carries the fields a dispatch outcome writes back.
type StatusUpdate struct {
	Status         Status
	PostedAt       *time.Time
	ExternalPostID string
	ErrorMessage   string
	RetryCount     int
}

// Repository defines the persistence operations for stories and accounts.
// ClaimDueStories must perform the pending->processing transition as a
// conditional update so two concurrent cycles never claim the same story.
type Repository interface {
	InsertStory(ctx context.Context, s *ScheduledStory) error
	GetStory(ctx context.Context, id string) (*ScheduledStory, error)
	ListStories(ctx context.Context) ([]*ScheduledStory, error)

	// DeletePendingStory deletes a story only while it is still pending.
	DeletePendingStory(ctx context.Context, id string) error

	// RequeueStory resets a failed story below the retry ceiling back to
	// pending so a later cycle can claim it again.
	RequeueStory(ctx context.Context, id string) error

	// ClaimDueStories atomically moves up to batchSize pending stories
	// with scheduledTime <= now and retryCount below the ceiling into
	// processing, ordered by scheduledTime ascending, and returns them.
	ClaimDueStories(ctx context.Context, now time.Time, batchSize int) ([]*ScheduledStory, error)

	UpdateStatus(ctx context.Context, id string, update StatusUpdate) error

	InsertAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, id string) (*Account, error)
	ListAccounts(ctx context.Context, ownerID string) ([]*Account, error)
	SetAccountActive(ctx context.Context, id string, active bool) error
}

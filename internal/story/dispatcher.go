package story

import (
	"context"
	"errors"
	"time"

	"github.com/quicklink/quicklink/internal/metrics"
	"go.uber.org/zap"
)

// Failure messages written to ErrorMessage for permanent blocks. These do
// not consume a retry: the condition will not clear on its own.
const (
	msgAccountInactive = "facebook account is inactive"
	msgTokenExpired    = "facebook access token has expired"
)

// JobResult is the outcome of one story within a cycle.
type JobResult struct {
	StoryID string `json:"storyId"`
	Success bool   `json:"success"`
	PostID  string `json:"postId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CycleResult aggregates one dispatch cycle.
type CycleResult struct {
	Processed  int         `json:"processed"`
	Successful int         `json:"successful"`
	Failed     int         `json:"failed"`
	Results    []JobResult `json:"results"`
}

// Dispatcher claims due stories and drives each through the publish state
// machine. One story's failure never aborts the rest of the batch.
type Dispatcher struct {
	store     Repository
	publisher Publisher
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewDispatcher creates a dispatcher over the given store and publisher.
func NewDispatcher(store Repository, publisher Publisher, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// RunCycle claims one batch of due stories and processes them. It returns
// an error only when the claim itself fails; per-story outcomes are
// reported in the result.
func (d *Dispatcher) RunCycle(ctx context.Context) (*CycleResult, error) {
	d.metrics.DispatchCycles.Inc()

	now := d.now().UTC()

	claimed, err := d.store.ClaimDueStories(ctx, now, BatchSize)
	if err != nil {
		return nil, err
	}

	result := &CycleResult{Results: make([]JobResult, 0, len(claimed))}

	for _, s := range claimed {
		jr := d.process(ctx, s)

		result.Processed++
		if jr.Success {
			result.Successful++
		} else {
			result.Failed++
		}

		result.Results = append(result.Results, jr)
	}

	if result.Processed > 0 {
		d.logger.Info("dispatch cycle complete",
			zap.Int("processed", result.Processed),
			zap.Int("successful", result.Successful),
			zap.Int("failed", result.Failed),
		)
	}

	return result, nil
}

// process runs one claimed story through validation and publishing. The
// story is already in processing; every path writes a terminal status.
func (d *Dispatcher) process(ctx context.Context, s *ScheduledStory) JobResult {
	account, err := d.store.GetAccount(ctx, s.AccountID)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		// Store hiccup, not a verdict on the account. Counts as a
		// transient failure and consumes a retry.
		return d.fail(ctx, s, "account lookup failed: "+err.Error(), true)
	}

	if account == nil || !account.IsActive {
		return d.block(ctx, s, msgAccountInactive)
	}

	if account.TokenExpired(d.now()) {
		return d.block(ctx, s, msgTokenExpired)
	}

	postID, err := d.publisher.Publish(ctx, s, account)
	if err != nil {
		return d.fail(ctx, s, err.Error(), true)
	}

	postedAt := d.now().UTC()

	update := StatusUpdate{
		Status:         StatusPosted,
		PostedAt:       &postedAt,
		ExternalPostID: postID,
		RetryCount:     s.RetryCount,
	}

	if err := d.store.UpdateStatus(ctx, s.ID, update); err != nil {
		d.logger.Error("story posted but status write failed",
			zap.String("story_id", s.ID),
			zap.String("post_id", postID),
			zap.Error(err),
		)

		return JobResult{StoryID: s.ID, Success: false, Error: err.Error()}
	}

	d.metrics.StoriesAttempts.WithLabelValues("posted").Inc()

	return JobResult{StoryID: s.ID, Success: true, PostID: postID}
}

// block marks a story failed for a permanent precondition (inactive
// account, expired token) without consuming a retry. The publisher is
// never invoked on this path.
func (d *Dispatcher) block(ctx context.Context, s *ScheduledStory, msg string) JobResult {
	d.metrics.StoriesAttempts.WithLabelValues("blocked").Inc()

	return d.writeFailure(ctx, s, msg, s.RetryCount)
}

// fail marks a story failed for a transient publish error, consuming one
// retry when countRetry is set.
func (d *Dispatcher) fail(ctx context.Context, s *ScheduledStory, msg string, countRetry bool) JobResult {
	d.metrics.StoriesAttempts.WithLabelValues("failed").Inc()

	retries := s.RetryCount
	if countRetry {
		retries++
	}

	return d.writeFailure(ctx, s, msg, retries)
}

func (d *Dispatcher) writeFailure(ctx context.Context, s *ScheduledStory, msg string, retries int) JobResult {
	update := StatusUpdate{
		Status:       StatusFailed,
		ErrorMessage: msg,
		RetryCount:   retries,
	}

	if err := d.store.UpdateStatus(ctx, s.ID, update); err != nil {
		d.logger.Error("failed to write story failure",
			zap.String("story_id", s.ID),
			zap.Error(err),
		)
	}

	d.logger.Warn("story dispatch failed",
		zap.String("story_id", s.ID),
		zap.String("reason", msg),
		zap.Int("retry_count", retries),
	)

	return JobResult{StoryID: s.ID, Success: false, Error: msg}
}

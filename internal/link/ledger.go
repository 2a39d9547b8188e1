package link

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Visit carries the request metadata recorded with a click.
type Visit struct {
	Referrer  string
	UserAgent string
}

// Ledger records visits and keeps the per-link click/revenue counters.
type Ledger struct {
	store  Repository
	logger *zap.Logger
}

// NewLedger creates a click ledger over the given repository.
func NewLedger(store Repository, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger,
	}
}

// RecordVisit appends a Click row for the link and atomically bumps the
// link's TotalClicks and EstimatedRevenue by the tier rate in effect at the
// moment of the call. The two counter bumps are a single store operation so
// concurrent visits never lose an increment.
func (l *Ledger) RecordVisit(ctx context.Context, linkID string, visit Visit) (*Click, error) {
	lnk, err := l.store.GetByID(ctx, linkID)
	if err != nil {
		return nil, err
	}

	if !lnk.IsActive {
		return nil, ErrInactive
	}

	rate := lnk.Rate()

	click := &Click{
		ID:               uuid.NewString(),
		LinkID:           lnk.ID,
		ClickedAt:        time.Now().UTC(),
		Referrer:         visit.Referrer,
		UserAgent:        visit.UserAgent,
		DeviceType:       DetectDevice(visit.UserAgent),
		RevenueGenerated: rate,
	}

	if err := l.store.InsertClick(ctx, click); err != nil {
		return nil, err
	}

	if err := l.store.IncrementStats(ctx, lnk.ID, 1, rate); err != nil {
		// The click row exists but the aggregate failed; surface it so the
		// caller can log the drift instead of silently losing revenue.
		l.logger.Error("ledger increment failed",
			zap.String("link_id", lnk.ID),
			zap.Error(err),
		)

		return nil, err
	}

	return click, nil
}

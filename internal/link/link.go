package link

import (
	"context"
	"errors"
	"time"
)

// Per-click revenue rates in currency units. The rate is fixed at the moment
// a visit is recorded and copied onto the Click row.
const (
	RateRegular   = 0.01
	RateAffiliate = 0.05
)

var (
	// ErrNotFound is returned when no link exists for a code or id.
	ErrNotFound = errors.New("link not found")
	// ErrInactive is returned when a link exists but has been deactivated.
	ErrInactive = errors.New("link is inactive")
	// ErrCodeTaken is returned when a short code is already in use.
	ErrCodeTaken = errors.New("short code already taken")
	// ErrInvalidCode is returned when a requested code has characters
	// outside the alphanumeric alphabet.
	ErrInvalidCode = errors.New("short code must be alphanumeric")
	// ErrAllocationExhausted is returned when code generation keeps colliding.
	ErrAllocationExhausted = errors.New("could not allocate a unique short code")
)

// Link is a short-code-to-destination mapping with its revenue ledger.
// TotalClicks and EstimatedRevenue only ever grow, and grow together.
type Link struct {
	ID               string
	ShortCode        string
	OriginalURL      string
	Title            string
	IsAffiliate      bool
	RedirectDelay    int // seconds shown on the interstitial page
	TotalClicks      int64
	EstimatedRevenue float64
	CreatedAt        time.Time
	IsActive         bool
}

// Rate returns the per-click revenue amount for this link's tier.
func (l *Link) Rate() float64 {
	if l.IsAffiliate {
		return RateAffiliate
	}

	return RateRegular
}

// Click is an immutable visit record. Rows are append-only.
type Click struct {
	ID               string
	LinkID           string
	ClickedAt        time.Time
	Referrer         string
	UserAgent        string
	DeviceType       DeviceType
	RevenueGenerated float64
}

// Repository defines the persistence operations for links and clicks.
// Implementations must enforce a uniqueness constraint on ShortCode and
// perform IncrementStats as a single indivisible update.
type Repository interface {
	Insert(ctx context.Context, l *Link) error
	GetByCode(ctx context.Context, shortCode string) (*Link, error)
	GetByID(ctx context.Context, id string) (*Link, error)
	List(ctx context.Context) ([]*Link, error)
	SetActive(ctx context.Context, id string, active bool) error

	// IncrementStats atomically bumps TotalClicks by clickDelta and
	// EstimatedRevenue by revenueDelta on the given link.
	IncrementStats(ctx context.Context, id string, clickDelta int64, revenueDelta float64) error

	InsertClick(ctx context.Context, c *Click) error
	ListClicks(ctx context.Context, linkID string, limit int) ([]*Click, error)
}

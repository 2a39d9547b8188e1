package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quicklink/quicklink/internal/link"
	"github.com/quicklink/quicklink/internal/story"
)

// MemoryStore is an in-memory implementation of link.Repository and
// story.Repository. The single mutex stands in for the database's
// transactional guarantees: claims and counter bumps happen under it, so
// the store gives the same atomicity the Postgres store provides.
type MemoryStore struct {
	mu       sync.Mutex
	links    map[string]*link.Link // id -> link
	codes    map[string]string     // shortCode -> id
	clicks   []*link.Click
	stories  map[string]*story.ScheduledStory
	accounts map[string]*story.Account
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		links:    make(map[string]*link.Link),
		codes:    make(map[string]string),
		stories:  make(map[string]*story.ScheduledStory),
		accounts: make(map[string]*story.Account),
	}
}

func (m *MemoryStore) Insert(_ context.Context, l *link.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.codes[l.ShortCode]; taken {
		return link.ErrCodeTaken
	}

	clone := *l
	m.links[l.ID] = &clone
	m.codes[l.ShortCode] = l.ID

	return nil
}

func (m *MemoryStore) GetByCode(_ context.Context, shortCode string) (*link.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.codes[shortCode]
	if !ok {
		return nil, link.ErrNotFound
	}

	clone := *m.links[id]

	return &clone, nil
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (*link.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.links[id]
	if !ok {
		return nil, link.ErrNotFound
	}

	clone := *l

	return &clone, nil
}

func (m *MemoryStore) List(_ context.Context) ([]*link.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*link.Link, 0, len(m.links))

	for _, l := range m.links {
		clone := *l
		out = append(out, &clone)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (m *MemoryStore) SetActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.links[id]
	if !ok {
		return link.ErrNotFound
	}

	l.IsActive = active

	return nil
}

func (m *MemoryStore) IncrementStats(_ context.Context, id string, clickDelta int64, revenueDelta float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.links[id]
	if !ok {
		return link.ErrNotFound
	}

	l.TotalClicks += clickDelta
	l.EstimatedRevenue += revenueDelta

	return nil
}

func (m *MemoryStore) InsertClick(_ context.Context, c *link.Click) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *c
	m.clicks = append(m.clicks, &clone)

	return nil
}

func (m *MemoryStore) ListClicks(_ context.Context, linkID string, limit int) ([]*link.Click, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*link.Click, 0, limit)

	for _, c := range m.clicks {
		if c.LinkID == linkID {
			clone := *c
			out = append(out, &clone)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ClickedAt.After(out[j].ClickedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (m *MemoryStore) InsertStory(_ context.Context, s *story.ScheduledStory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *s
	m.stories[s.ID] = &clone

	return nil
}

func (m *MemoryStore) GetStory(_ context.Context, id string) (*story.ScheduledStory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stories[id]
	if !ok {
		return nil, story.ErrNotFound
	}

	clone := *s

	return &clone, nil
}

func (m *MemoryStore) ListStories(_ context.Context) ([]*story.ScheduledStory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*story.ScheduledStory, 0, len(m.stories))

	for _, s := range m.stories {
		clone := *s
		out = append(out, &clone)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledTime.After(out[j].ScheduledTime)
	})

	return out, nil
}

func (m *MemoryStore) DeletePendingStory(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stories[id]
	if !ok {
		return story.ErrNotFound
	}

	if s.Status != story.StatusPending {
		return story.ErrNotPending
	}

	delete(m.stories, id)

	return nil
}

func (m *MemoryStore) RequeueStory(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stories[id]
	if !ok {
		return story.ErrNotFound
	}

	if s.Status != story.StatusFailed || s.RetryCount >= story.RetryCeiling {
		return story.ErrNotRequeueable
	}

	s.Status = story.StatusPending
	s.ErrorMessage = ""

	return nil
}

func (m *MemoryStore) ClaimDueStories(_ context.Context, now time.Time, batchSize int) ([]*story.ScheduledStory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	due := make([]*story.ScheduledStory, 0, batchSize)

	for _, s := range m.stories {
		if s.Status == story.StatusPending && !s.ScheduledTime.After(now) && s.RetryCount < story.RetryCeiling {
			due = append(due, s)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledTime.Before(due[j].ScheduledTime)
	})

	if len(due) > batchSize {
		due = due[:batchSize]
	}

	claimed := make([]*story.ScheduledStory, 0, len(due))

	for _, s := range due {
		s.Status = story.StatusProcessing

		clone := *s
		claimed = append(claimed, &clone)
	}

	return claimed, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id string, update story.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stories[id]
	if !ok {
		return story.ErrNotFound
	}

	s.Status = update.Status
	s.PostedAt = update.PostedAt
	s.ExternalPostID = update.ExternalPostID
	s.ErrorMessage = update.ErrorMessage
	s.RetryCount = update.RetryCount

	return nil
}

func (m *MemoryStore) InsertAccount(_ context.Context, a *story.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *a
	m.accounts[a.ID] = &clone

	return nil
}

func (m *MemoryStore) GetAccount(_ context.Context, id string) (*story.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, story.ErrAccountNotFound
	}

	clone := *a

	return &clone, nil
}

func (m *MemoryStore) ListAccounts(_ context.Context, ownerID string) ([]*story.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*story.Account, 0, len(m.accounts))

	for _, a := range m.accounts {
		if ownerID == "" || a.OwnerID == ownerID {
			clone := *a
			out = append(out, &clone)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (m *MemoryStore) SetAccountActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return story.ErrAccountNotFound
	}

	a.IsActive = active

	return nil
}

// Compile-time checks.
var (
	_ link.Repository  = (*MemoryStore)(nil)
	_ story.Repository = (*MemoryStore)(nil)
)

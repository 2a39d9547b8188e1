package link_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/quicklink/quicklink/internal/link"
	"github.com/quicklink/quicklink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLedger_RecordVisit(t *testing.T) {
	t.Run("records click at the regular rate", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		ledger := link.NewLedger(memStore, zap.NewNop())

		l := insertLink(t, memStore, "abc123")

		click, err := ledger.RecordVisit(context.Background(), l.ID, link.Visit{
			Referrer:  "https://twitter.com",
			UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148",
		})

		require.NoError(t, err)
		assert.Equal(t, l.ID, click.LinkID)
		assert.Equal(t, link.RateRegular, click.RevenueGenerated)
		assert.Equal(t, link.DeviceMobile, click.DeviceType)
		assert.Equal(t, "https://twitter.com", click.Referrer)

		got, err := memStore.GetByID(context.Background(), l.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.TotalClicks)
		assert.InDelta(t, link.RateRegular, got.EstimatedRevenue, 1e-9)
	})

	t.Run("affiliate links accrue the affiliate rate", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		ledger := link.NewLedger(memStore, zap.NewNop())

		l := &link.Link{
			ID:          "aff-id",
			ShortCode:   "affxyz",
			OriginalURL: "https://shop.example.com",
			IsAffiliate: true,
			CreatedAt:   time.Now().UTC(),
			IsActive:    true,
		}
		require.NoError(t, memStore.Insert(context.Background(), l))

		click, err := ledger.RecordVisit(context.Background(), l.ID, link.Visit{})

		require.NoError(t, err)
		assert.Equal(t, link.RateAffiliate, click.RevenueGenerated)

		got, err := memStore.GetByID(context.Background(), l.ID)
		require.NoError(t, err)
		assert.InDelta(t, link.RateAffiliate, got.EstimatedRevenue, 1e-9)
	})

	t.Run("rejects visits to inactive links", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		ledger := link.NewLedger(memStore, zap.NewNop())

		l := insertLink(t, memStore, "gonext")
		require.NoError(t, memStore.SetActive(context.Background(), l.ID, false))

		_, err := ledger.RecordVisit(context.Background(), l.ID, link.Visit{})

		assert.ErrorIs(t, err, link.ErrInactive)

		got, err := memStore.GetByID(context.Background(), l.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.TotalClicks)
	})

	t.Run("returns not found for unknown link", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		ledger := link.NewLedger(memStore, zap.NewNop())

		_, err := ledger.RecordVisit(context.Background(), "missing", link.Visit{})

		assert.ErrorIs(t, err, link.ErrNotFound)
	})

	t.Run("concurrent visits never lose an increment", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		ledger := link.NewLedger(memStore, zap.NewNop())

		l := insertLink(t, memStore, "hotpth")

		const visits = 100

		var wg sync.WaitGroup

		wg.Add(visits)

		for i := 0; i < visits; i++ {
			go func() {
				defer wg.Done()

				_, err := ledger.RecordVisit(context.Background(), l.ID, link.Visit{})
				assert.NoError(t, err)
			}()
		}

		wg.Wait()

		got, err := memStore.GetByID(context.Background(), l.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(visits), got.TotalClicks)
		assert.InDelta(t, visits*link.RateRegular, got.EstimatedRevenue, 1e-6)

		clicks, err := memStore.ListClicks(context.Background(), l.ID, 0)
		require.NoError(t, err)
		assert.Len(t, clicks, visits)
	})
}

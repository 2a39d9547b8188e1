package handlers_test

import (
	"context"

	"github.com/quicklink/quicklink/internal/link"
)

// failingLinkStore wraps a link.Repository and fails selected operations.
type failingLinkStore struct {
	link.Repository

	getByCodeErr   error
	insertErr      error
	insertClickErr error
	listErr        error
}

func (f *failingLinkStore) InsertClick(ctx context.Context, c *link.Click) error {
	if f.insertClickErr != nil {
		return f.insertClickErr
	}

	return f.Repository.InsertClick(ctx, c)
}

func (f *failingLinkStore) GetByCode(ctx context.Context, shortCode string) (*link.Link, error) {
	if f.getByCodeErr != nil {
		return nil, f.getByCodeErr
	}

	return f.Repository.GetByCode(ctx, shortCode)
}

func (f *failingLinkStore) Insert(ctx context.Context, l *link.Link) error {
	if f.insertErr != nil {
		return f.insertErr
	}

	return f.Repository.Insert(ctx, l)
}

func (f *failingLinkStore) List(ctx context.Context) ([]*link.Link, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}

	return f.Repository.List(ctx)
}

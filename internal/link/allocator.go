package link

import (
	"context"
	"errors"
)

const (
	// CodeAlphabet is the 62-character alphabet short codes are drawn from.
	CodeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// CodeLength is the length of generated short codes.
	CodeLength = 6
	// maxAttempts bounds collision retries during generation.
	maxAttempts = 10
)

// CodeGenerator produces candidate short codes.
type CodeGenerator func() string

// Allocator hands out short codes that are free at the time of the check.
// It only reads; the owning Link insert closes the race window through the
// store's uniqueness constraint, so callers must treat ErrCodeTaken from
// Insert as an ordinary retry signal.
type Allocator struct {
	store    Repository
	generate CodeGenerator
}

// NewAllocator creates an allocator backed by the given repository and
// candidate generator.
func NewAllocator(store Repository, generate CodeGenerator) *Allocator {
	return &Allocator{
		store:    store,
		generate: generate,
	}
}

// Allocate returns a free short code. If requested is non-empty it is
// validated and checked for availability; otherwise candidates are generated
// until one is free or attempts run out.
func (a *Allocator) Allocate(ctx context.Context, requested string) (string, error) {
	if requested != "" {
		if !ValidCode(requested) {
			return "", ErrInvalidCode
		}

		free, err := a.isFree(ctx, requested)
		if err != nil {
			return "", err
		}

		if !free {
			return "", ErrCodeTaken
		}

		return requested, nil
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := a.generate()

		free, err := a.isFree(ctx, candidate)
		if err != nil {
			return "", err
		}

		if free {
			return candidate, nil
		}
	}

	return "", ErrAllocationExhausted
}

func (a *Allocator) isFree(ctx context.Context, code string) (bool, error) {
	_, err := a.store.GetByCode(ctx, code)
	if err == nil {
		return false, nil
	}

	if errors.Is(err, ErrNotFound) {
		return true, nil
	}

	return false, err
}

// ValidCode reports whether code is a non-empty alphanumeric token.
func ValidCode(code string) bool {
	if code == "" {
		return false
	}

	for _, r := range code {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}

	return true
}

package ops

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repo interface {
	// Create inserts a new operation; a unique-index conflict with another
	// active operation for the same (item, provider) maps to
	// ErrActiveOperationExists.
	Create(ctx context.Context, op Operation) error
	OperationByID(ctx context.Context, id uuid.UUID) (Operation, error)
	// Pollable returns non-terminal operations that have not been polled in
	// the last minInterval, oldest created first, capped at limit.
	Pollable(ctx context.Context, now time.Time, minInterval time.Duration, limit int) ([]Operation, error)
	// SetProviderOperation records the provider-side operation id once the
	// submission round-trip returns it.
	SetProviderOperation(ctx context.Context, id uuid.UUID, providerOpID string) error
	// MarkPolled bumps last_polled_at and the attempt counter.
	MarkPolled(ctx context.Context, id uuid.UUID, at time.Time) error
	// MarkProcessing moves pending → processing; no-op on any other status.
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	// Finish applies a terminal status conditionally: the update only lands
	// if the row is still non-terminal. Reports whether it did.
	Finish(ctx context.Context, id uuid.UUID, status Status, reason string, listingID *string, at time.Time) (bool, error)
}

type ListingRepo interface {
	// UpsertFromOperation creates or refreshes the local listing row for a
	// completed mutation.
	UpsertFromOperation(ctx context.Context, l Listing) error
	AppendEvent(ctx context.Context, e ListingEvent) error
}

type ConnectionRepo interface {
	// MarkBroken flags the provider account connection so the UI can demand
	// re-authentication; distinct from ordinary poll failures.
	MarkBroken(ctx context.Context, provider, reason string) error
}

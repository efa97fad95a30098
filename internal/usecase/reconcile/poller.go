package reconcileuc

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/ops"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/provider"
)

// Poller drives submitted mutation operations to a terminal state. It is
// the only writer of terminal statuses; every transition goes through a
// conditional update so a repeated poll of an already-terminal operation is
// a no-op.
type Poller struct {
	Ops         ops.Repo
	Listings    ops.ListingRepo
	Connections ops.ConnectionRepo
	Providers   map[string]provider.Client

	// Timeout forces operations with no terminal response to failed,
	// without further provider contact.
	Timeout time.Duration
	// PollInterval is the minimum spacing between polls of one operation.
	PollInterval time.Duration
	BatchSize    int

	Clock  func() time.Time
	Logger *slog.Logger
}

type PollStats struct {
	Processed  int `json:"processed"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	TimedOut   int `json:"timed_out"`
	InProgress int `json:"in_progress"`
}

func (p *Poller) log() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Poller) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now().UTC()
}

func (p *Poller) defaults() {
	if p.Timeout <= 0 {
		p.Timeout = 15 * time.Minute
	}
	if p.PollInterval <= 0 {
		p.PollInterval = 20 * time.Second
	}
	if p.BatchSize <= 0 {
		p.BatchSize = 50
	}
}

// PollPending processes one bounded batch, oldest operation first. A
// failure on one operation never aborts the rest of the batch.
func (p *Poller) PollPending(ctx context.Context) (PollStats, error) {
	p.defaults()
	var stats PollStats

	batch, err := p.Ops.Pollable(ctx, p.now(), p.PollInterval, p.BatchSize)
	if err != nil {
		return stats, err
	}

	for _, op := range batch {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Processed++
		p.pollOne(ctx, op, &stats)
	}

	if stats.Processed > 0 {
		p.log().Info("poll batch done",
			"processed", stats.Processed, "completed", stats.Completed,
			"failed", stats.Failed, "timed_out", stats.TimedOut,
			"in_progress", stats.InProgress)
	}
	return stats, nil
}

func (p *Poller) pollOne(ctx context.Context, op ops.Operation, stats *PollStats) {
	l := p.log().With("op", op.ID, "provider", op.Provider, "kind", op.Kind)
	now := p.now()

	if op.Expired(now, p.Timeout) {
		if done, err := p.Ops.Finish(ctx, op.ID, ops.StatusFailed, ops.ReasonTimeout, nil, now); err != nil {
			l.Error("timeout transition failed", "err", err)
		} else if done {
			l.Warn("operation timed out", "age", now.Sub(op.CreatedAt))
			stats.TimedOut++
			stats.Failed++
		}
		return
	}

	cl, ok := p.Providers[op.Provider]
	if !ok {
		l.Error("no client for provider")
		stats.InProgress++
		return
	}

	if err := p.Ops.MarkPolled(ctx, op.ID, now); err != nil {
		l.Error("mark polled failed", "err", err)
		stats.InProgress++
		return
	}

	st, err := cl.PollOperation(ctx, op.ProviderOperationID)
	if err != nil {
		if provider.IsAuthFailure(err) {
			// broken credentials are a user-visible state, not a retry case
			if cerr := p.Connections.MarkBroken(ctx, op.Provider, err.Error()); cerr != nil {
				l.Error("mark connection broken failed", "err", cerr)
			}
			if done, ferr := p.Ops.Finish(ctx, op.ID, ops.StatusFailed, ops.ReasonAuth, nil, now); ferr != nil {
				l.Error("auth-failure transition failed", "err", ferr)
			} else if done {
				stats.Failed++
			}
			return
		}
		l.Warn("poll failed", "err", err)
		stats.InProgress++
		return
	}

	if !st.Status.Terminal() {
		if st.Status == ops.StatusProcessing && op.Status == ops.StatusPending {
			if err := p.Ops.MarkProcessing(ctx, op.ID); err != nil {
				l.Error("mark processing failed", "err", err)
			}
		}
		stats.InProgress++
		return
	}

	p.applyTerminal(ctx, op, st, now, stats)
}

// applyTerminal writes the outcome of a finished provider operation back to
// local records. The conditional Finish guards against double application.
func (p *Poller) applyTerminal(ctx context.Context, op ops.Operation, st provider.OperationState, now time.Time, stats *PollStats) {
	l := p.log().With("op", op.ID, "provider", op.Provider, "kind", op.Kind)

	status := st.Status
	reason := st.Error
	var listingID *string
	if st.ListingID != "" {
		listingID = &st.ListingID
	}

	if op.Kind == ops.KindCreate && status == ops.StatusCompleted && listingID == nil {
		// a completed create without a listing id cannot be applied; keep
		// enough context for manual recovery
		l.Error("create completed without listing id", "provider_op", op.ProviderOperationID)
		status = ops.StatusFailed
		reason = ops.ReasonMissingListing
	}

	done, err := p.Ops.Finish(ctx, op.ID, status, reason, listingID, now)
	if err != nil {
		l.Error("terminal transition failed", "err", err)
		stats.InProgress++
		return
	}
	if !done {
		// someone else already finished it; nothing to apply twice
		return
	}

	switch status {
	case ops.StatusCompleted, ops.StatusPartialSuccess:
		stats.Completed++
	default:
		stats.Failed++
	}

	if listingID == nil {
		return
	}
	if op.Kind == ops.KindCreate && status == ops.StatusCompleted {
		amount := decimal.Zero
		if op.Amount.Valid {
			amount = op.Amount.Decimal
		}
		if err := p.Listings.UpsertFromOperation(ctx, ops.Listing{
			ProviderListingID: *listingID,
			Provider:          op.Provider,
			CatalogItemID:     op.CatalogItemID,
			Amount:            amount,
			Currency:          op.Currency,
			Active:            true,
		}); err != nil {
			l.Error("listing upsert failed", "listing", *listingID, "err", err)
			return
		}
	}
	if err := p.Listings.AppendEvent(ctx, ops.ListingEvent{
		ProviderListingID: *listingID,
		Provider:          op.Provider,
		OperationID:       op.ID,
		Kind:              op.Kind,
		Status:            status,
		Note:              reason,
		OccurredAt:        now,
	}); err != nil {
		l.Error("listing event append failed", "listing", *listingID, "err", err)
	}
}

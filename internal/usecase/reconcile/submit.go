package reconcileuc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/catalog"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/ops"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/provider"
)

// Submitter creates the local operation row, then submits the mutation to
// the provider. The local insert goes first: the store's partial unique
// index is what serializes racing schedulers, and losing that race is a
// normal outcome (ops.ErrActiveOperationExists), not a bug.
type Submitter struct {
	Ops       ops.Repo
	Variants  catalog.VariantRepo
	Providers map[string]provider.Client
	Poller    *Poller // applies immediately-terminal receipts

	Clock  func() time.Time
	Logger *slog.Logger
}

type SubmitInput struct {
	CatalogItemID int64
	Provider      string
	Kind          ops.Kind
	VariantID     int64  // local variant, required for create
	ListingID     string // provider listing id, required for non-create
	Amount        decimal.Decimal
	Currency      string
}

func (s *Submitter) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}

func (s *Submitter) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Submitter) Submit(ctx context.Context, in SubmitInput) (ops.Operation, error) {
	cl, ok := s.Providers[in.Provider]
	if !ok {
		return ops.Operation{}, fmt.Errorf("no client for provider %q", in.Provider)
	}

	req := provider.MutationRequest{
		Kind: in.Kind, ListingID: in.ListingID,
		Amount: in.Amount, Currency: in.Currency,
	}
	if in.Kind == ops.KindCreate {
		v, err := s.Variants.VariantByID(ctx, in.VariantID)
		if err != nil {
			return ops.Operation{}, err
		}
		if v.ProviderVariantID == nil {
			return ops.Operation{}, fmt.Errorf("variant %d has no %s id", in.VariantID, in.Provider)
		}
		req.VariantID = *v.ProviderVariantID
	}

	now := s.now()
	op := ops.Operation{
		ID:            uuid.New(),
		CatalogItemID: in.CatalogItemID,
		Provider:      in.Provider,
		Kind:          in.Kind,
		Amount:        decimal.NullDecimal{Decimal: in.Amount, Valid: true},
		Currency:      in.Currency,
		Status:        ops.StatusPending,
		CreatedAt:     now,
	}
	if in.ListingID != "" {
		lid := in.ListingID
		op.ListingID = &lid
	}

	// claim the active-operation slot before talking to the provider
	if err := s.Ops.Create(ctx, op); err != nil {
		return ops.Operation{}, err
	}

	receipt, err := cl.SubmitMutation(ctx, req)
	if err != nil {
		// release the slot; the mutation never reached the provider
		if _, ferr := s.Ops.Finish(ctx, op.ID, ops.StatusFailed, err.Error(), nil, s.now()); ferr != nil {
			s.log().Error("submit-failure transition failed", "op", op.ID, "err", ferr)
		}
		return ops.Operation{}, err
	}

	if receipt.OperationID != "" {
		if err := s.Ops.SetProviderOperation(ctx, op.ID, receipt.OperationID); err != nil {
			return ops.Operation{}, err
		}
		op.ProviderOperationID = receipt.OperationID
	}

	if receipt.State.Status.Terminal() && s.Poller != nil {
		// some providers answer synchronously; apply the outcome now so the
		// operation never waits for a poll cycle
		var stats PollStats
		s.Poller.applyTerminal(ctx, op, receipt.State, s.now(), &stats)
		return s.Ops.OperationByID(ctx, op.ID)
	}
	return op, nil
}

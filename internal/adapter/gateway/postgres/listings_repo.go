package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/ops"
)

type ListingsRepo struct {
	db *sql.DB
}

func NewListingsRepo(db *sql.DB) *ListingsRepo { return &ListingsRepo{db: db} }

func (r *ListingsRepo) UpsertFromOperation(ctx context.Context, l ops.Listing) error {
	// variant is often unknown at create time; nil means no reference
	var variant sql.NullInt64
	if l.VariantID != nil {
		variant = sql.NullInt64{Int64: *l.VariantID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO listings
			(provider_listing_id, provider, catalog_item_id, variant_id,
			 amount, currency, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())
		ON CONFLICT (provider, provider_listing_id) DO UPDATE SET
			amount     = EXCLUDED.amount,
			currency   = EXCLUDED.currency,
			active     = EXCLUDED.active,
			updated_at = now()
	`, l.ProviderListingID, l.Provider, l.CatalogItemID, variant,
		l.Amount, l.Currency, l.Active)
	if err != nil {
		return fmt.Errorf("upsert listing: %w", err)
	}
	return nil
}

// AppendEvent writes the immutable transition log entry; listing rows may
// change, their history never does.
func (r *ListingsRepo) AppendEvent(ctx context.Context, e ops.ListingEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO listing_history
			(provider_listing_id, provider, operation_id, kind, status, note, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, e.ProviderListingID, e.Provider, e.OperationID, e.Kind, e.Status, e.Note, e.OccurredAt.UTC())
	if err != nil {
		return fmt.Errorf("append listing event: %w", err)
	}
	return nil
}

type ConnectionsRepo struct {
	db *sql.DB
}

func NewConnectionsRepo(db *sql.DB) *ConnectionsRepo { return &ConnectionsRepo{db: db} }

func (r *ConnectionsRepo) MarkBroken(ctx context.Context, provider, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE account_connections
		SET broken = TRUE, broken_reason = $2, updated_at = now()
		WHERE provider = $1
	`, provider, reason)
	if err != nil {
		return fmt.Errorf("mark connection broken: %w", err)
	}
	return nil
}

var (
	_ ops.ListingRepo    = (*ListingsRepo)(nil)
	_ ops.ConnectionRepo = (*ConnectionsRepo)(nil)
)

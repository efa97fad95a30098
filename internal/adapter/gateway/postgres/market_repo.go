package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/catalog"
)

type MarketRepo struct {
	db *sql.DB
}

func NewMarketRepo(db *sql.DB) *MarketRepo { return &MarketRepo{db: db} }

func (r *MarketRepo) Snapshot(ctx context.Context, variantID int64) (catalog.Snapshot, bool, error) {
	var s catalog.Snapshot
	err := r.db.QueryRowContext(ctx, `
		SELECT variant_id, lowest_ask, highest_bid, last_sale_price, currency,
		       updated_at, expires_at, sales_volume_72h, sales_volume_30d
		FROM market_snapshots WHERE variant_id = $1
	`, variantID).Scan(&s.VariantID, &s.LowestAsk, &s.HighestBid, &s.LastSalePrice,
		&s.Currency, &s.UpdatedAt, &s.ExpiresAt, &s.SalesVolume72h, &s.SalesVolume30d)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Snapshot{}, false, nil
	}
	if err != nil {
		return catalog.Snapshot{}, false, fmt.Errorf("snapshot %d: %w", variantID, err)
	}
	return s, true, nil
}

// UpsertSnapshot replaces the single live row per variant. Volume columns
// are written only on first insert; refreshes leave them for UpdateVolumes,
// so a price refresh never erases enriched volumes.
func (r *MarketRepo) UpsertSnapshot(ctx context.Context, s catalog.Snapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO market_snapshots
			(variant_id, lowest_ask, highest_bid, last_sale_price, currency,
			 updated_at, expires_at, sales_volume_72h, sales_volume_30d)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (variant_id) DO UPDATE SET
			lowest_ask      = EXCLUDED.lowest_ask,
			highest_bid     = EXCLUDED.highest_bid,
			last_sale_price = EXCLUDED.last_sale_price,
			currency        = EXCLUDED.currency,
			updated_at      = EXCLUDED.updated_at,
			expires_at      = EXCLUDED.expires_at
	`, s.VariantID, s.LowestAsk, s.HighestBid, s.LastSalePrice, s.Currency,
		s.UpdatedAt, s.ExpiresAt, s.SalesVolume72h, s.SalesVolume30d)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// AppendHistory never overwrites: the (variant_id, recorded_at) key makes a
// replayed append a no-op.
func (r *MarketRepo) AppendHistory(ctx context.Context, p catalog.PricePoint) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO price_history
			(variant_id, recorded_at, lowest_ask, highest_bid, last_sale_price, currency)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (variant_id, recorded_at) DO NOTHING
	`, p.VariantID, p.RecordedAt, p.LowestAsk, p.HighestBid, p.LastSalePrice, p.Currency)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (r *MarketRepo) UpdateVolumes(ctx context.Context, variantID int64, vol72h, vol30d int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE market_snapshots
		SET sales_volume_72h = $2, sales_volume_30d = $3
		WHERE variant_id = $1
	`, variantID, vol72h, vol30d)
	if err != nil {
		return fmt.Errorf("update volumes: %w", err)
	}
	return nil
}

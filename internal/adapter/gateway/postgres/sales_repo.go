package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/catalog"
)

type SalesRepo struct {
	db *sql.DB
}

func NewSalesRepo(db *sql.DB) *SalesRepo { return &SalesRepo{db: db} }

// InsertSalesIfAbsent bulk-inserts with conflict-ignore semantics on the
// natural key, so re-fetching an overlapping window is a no-op for rows
// already seen. Returns the number of genuinely new rows.
func (r *SalesRepo) InsertSalesIfAbsent(ctx context.Context, sales []catalog.Sale) (int, error) {
	if len(sales) == 0 {
		return 0, nil
	}

	const cols = 6
	vals := make([]string, 0, len(sales))
	args := make([]any, 0, len(sales)*cols)
	for i, s := range sales {
		off := i*cols + 1
		vals = append(vals, fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
			off, off+1, off+2, off+3, off+4, off+5))
		args = append(args, s.CatalogItemID, s.Size, s.Price, s.SoldAt.UTC(), s.Region, s.Consignment)
	}

	q := `
		INSERT INTO sales_history
			(catalog_item_id, size, price, sold_at, region, consignment)
		VALUES ` + strings.Join(vals, ",") + `
		ON CONFLICT (catalog_item_id, size, price, sold_at) DO NOTHING`
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("insert sales: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *SalesRepo) VolumeBySize(ctx context.Context, itemID int64, since time.Time) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT size, COUNT(*)
		FROM sales_history
		WHERE catalog_item_id = $1 AND sold_at >= $2
		GROUP BY size
	`, itemID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("volume by size: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var size string
		var n int
		if err := rows.Scan(&size, &n); err != nil {
			return nil, err
		}
		out[size] = n
	}
	return out, rows.Err()
}

var (
	_ catalog.SalesRepo   = (*SalesRepo)(nil)
	_ catalog.MarketRepo  = (*MarketRepo)(nil)
	_ catalog.ItemRepo    = (*CatalogRepo)(nil)
	_ catalog.VariantRepo = (*CatalogRepo)(nil)
)

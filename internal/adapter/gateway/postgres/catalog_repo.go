package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/catalog"
)

type CatalogRepo struct {
	db *sql.DB
}

func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

func (r *CatalogRepo) ItemByID(ctx context.Context, id int64) (catalog.Item, error) {
	var it catalog.Item
	var sizes pq.StringArray
	err := r.db.QueryRowContext(ctx, `
		SELECT id, brand, name, sku, stockx_product_id, alias_catalog_id,
		       allowed_sizes, created_at, updated_at
		FROM catalog_items WHERE id = $1
	`, id).Scan(&it.ID, &it.Brand, &it.Name, &it.SKU,
		&it.StockXProductID, &it.AliasCatalogID, &sizes, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return catalog.Item{}, fmt.Errorf("item %d: %w", id, err)
	}
	it.AllowedSizes = sizes
	return it, nil
}

// AttachProviderKey only fills an empty key; items are enriched, never
// rewritten.
func (r *CatalogRepo) AttachProviderKey(ctx context.Context, itemID int64, provider, key string) error {
	var col string
	switch provider {
	case "stockx":
		col = "stockx_product_id"
	case "alias":
		col = "alias_catalog_id"
	default:
		return fmt.Errorf("unknown provider %q", provider)
	}
	q := fmt.Sprintf(`
		UPDATE catalog_items
		SET %s = COALESCE(%s, $2), updated_at = now()
		WHERE id = $1
	`, col, col)
	if _, err := r.db.ExecContext(ctx, q, itemID, key); err != nil {
		return fmt.Errorf("attach %s key: %w", provider, err)
	}
	return nil
}

func (r *CatalogRepo) SetAllowedSizes(ctx context.Context, itemID int64, run []string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE catalog_items
		SET allowed_sizes = $2, updated_at = now()
		WHERE id = $1 AND cardinality(allowed_sizes) = 0
	`, itemID, pq.Array(run))
	if err != nil {
		return fmt.Errorf("set allowed sizes: %w", err)
	}
	return nil
}

// StaleItemIDs picks items whose freshest snapshot is older than ttl, or
// that have no snapshots at all, oldest data first.
func (r *CatalogRepo) StaleItemIDs(ctx context.Context, ttl time.Duration, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ci.id
		FROM catalog_items ci
		LEFT JOIN variants v ON v.catalog_item_id = ci.id
		LEFT JOIN market_snapshots ms ON ms.variant_id = v.id
		GROUP BY ci.id
		HAVING COALESCE(MAX(ms.updated_at), 'epoch'::timestamptz) < $1
		ORDER BY MAX(ms.updated_at) NULLS FIRST
		LIMIT $2
	`, time.Now().UTC().Add(-ttl), limit)
	if err != nil {
		return nil, fmt.Errorf("stale items: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// EnsureVariant upserts by the identity tuple. An existing row keeps its id
// and only ever gains a provider variant id.
func (r *CatalogRepo) EnsureVariant(ctx context.Context, v catalog.Variant) (catalog.Variant, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO variants
			(catalog_item_id, size, size_unit, condition, region, consignment, provider, provider_variant_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (catalog_item_id, size, size_unit, condition, region, consignment, provider)
		DO UPDATE SET provider_variant_id = COALESCE(variants.provider_variant_id, EXCLUDED.provider_variant_id)
		RETURNING id, provider_variant_id
	`, v.CatalogItemID, v.Size, v.SizeUnit, v.Condition, v.Region, v.Consignment,
		v.Provider, v.ProviderVariantID,
	).Scan(&v.ID, &v.ProviderVariantID)
	if err != nil {
		return catalog.Variant{}, fmt.Errorf("ensure variant: %w", err)
	}
	return v, nil
}

func (r *CatalogRepo) VariantsByItem(ctx context.Context, itemID int64, provider string) ([]catalog.Variant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, catalog_item_id, size, size_unit, condition, region, consignment, provider, provider_variant_id
		FROM variants
		WHERE catalog_item_id = $1 AND provider = $2
		ORDER BY region, condition, size
	`, itemID, provider)
	if err != nil {
		return nil, fmt.Errorf("variants by item: %w", err)
	}
	defer rows.Close()
	return scanVariants(rows)
}

func (r *CatalogRepo) VariantByID(ctx context.Context, id int64) (catalog.Variant, error) {
	var v catalog.Variant
	err := r.db.QueryRowContext(ctx, `
		SELECT id, catalog_item_id, size, size_unit, condition, region, consignment, provider, provider_variant_id
		FROM variants WHERE id = $1
	`, id).Scan(&v.ID, &v.CatalogItemID, &v.Size, &v.SizeUnit, &v.Condition,
		&v.Region, &v.Consignment, &v.Provider, &v.ProviderVariantID)
	if err != nil {
		return catalog.Variant{}, fmt.Errorf("variant %d: %w", id, err)
	}
	return v, nil
}

func scanVariants(rows *sql.Rows) ([]catalog.Variant, error) {
	var out []catalog.Variant
	for rows.Next() {
		var v catalog.Variant
		if err := rows.Scan(&v.ID, &v.CatalogItemID, &v.Size, &v.SizeUnit, &v.Condition,
			&v.Region, &v.Consignment, &v.Provider, &v.ProviderVariantID); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

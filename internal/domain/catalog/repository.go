package catalog

import (
	"context"
	"time"
)

type ItemRepo interface {
	ItemByID(ctx context.Context, id int64) (Item, error)
	// AttachProviderKey fills a provider product key if still empty.
	AttachProviderKey(ctx context.Context, itemID int64, provider, key string) error
	// SetAllowedSizes records the declared size run; no-op if already set.
	SetAllowedSizes(ctx context.Context, itemID int64, sizes []string) error
	// StaleItemIDs returns items whose market data is missing or older than
	// ttl, oldest first, capped at limit.
	StaleItemIDs(ctx context.Context, ttl time.Duration, limit int) ([]int64, error)
}

type VariantRepo interface {
	// EnsureVariant upserts by the identity tuple and returns the stored row.
	// An existing row only ever gains a provider variant id, never loses one.
	EnsureVariant(ctx context.Context, v Variant) (Variant, error)
	VariantsByItem(ctx context.Context, itemID int64, provider string) ([]Variant, error)
	VariantByID(ctx context.Context, id int64) (Variant, error)
}

type MarketRepo interface {
	Snapshot(ctx context.Context, variantID int64) (Snapshot, bool, error)
	// UpsertSnapshot replaces the live row for the variant.
	UpsertSnapshot(ctx context.Context, s Snapshot) error
	// AppendHistory is insert-only; re-appending the same
	// (variant_id, recorded_at) is a no-op.
	AppendHistory(ctx context.Context, p PricePoint) error
	UpdateVolumes(ctx context.Context, variantID int64, vol72h, vol30d int) error
}

type SalesRepo interface {
	// InsertSalesIfAbsent inserts rows not yet seen (natural-key dedup) and
	// reports how many were actually new.
	InsertSalesIfAbsent(ctx context.Context, sales []Sale) (int, error)
	// VolumeBySize counts sales per size for the item since the given time.
	VolumeBySize(ctx context.Context, itemID int64, since time.Time) (map[string]int, error)
}

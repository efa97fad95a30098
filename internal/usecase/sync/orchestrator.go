package syncuc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/catalog"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/provider"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/pkg/sizes"
)

// Orchestrator drives one pass over every configured region × condition
// slice for one catalog item. Region failures accumulate into the outcome;
// only a missing item or a cancelled context abort the pass.
type Orchestrator struct {
	Items     catalog.ItemRepo
	Variants  catalog.VariantRepo
	Market    catalog.MarketRepo
	Sales     catalog.SalesRepo
	Providers []provider.Client

	Regions      []catalog.Region
	Conditions   []catalog.Condition
	Consignments []bool
	TTL          time.Duration
	Currency     string

	Clock  func() time.Time
	Logger *slog.Logger
}

type Options struct {
	// Volumes toggles the sales-volume enrichment stage. It can add errors
	// to the outcome but never flips its success.
	Volumes bool
}

func (o *Orchestrator) log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *Orchestrator) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) defaults() {
	if o.TTL <= 0 {
		o.TTL = 24 * time.Hour
	}
	if len(o.Regions) == 0 {
		o.Regions = []catalog.Region{catalog.RegionUS}
	}
	if len(o.Conditions) == 0 {
		o.Conditions = []catalog.Condition{catalog.ConditionNew}
	}
	if len(o.Consignments) == 0 {
		o.Consignments = []bool{false}
	}
	if o.Currency == "" {
		o.Currency = "USD"
	}
}

// SyncItem runs a full sync for items never seen on a provider and a
// refresh for known ones; the choice is per provider, by key presence.
func (o *Orchestrator) SyncItem(ctx context.Context, itemID int64, opts Options) (catalog.SyncOutcome, error) {
	o.defaults()
	out := catalog.SyncOutcome{ItemID: itemID}

	item, err := o.Items.ItemByID(ctx, itemID)
	if err != nil {
		return out, fmt.Errorf("sync item %d: %w", itemID, err)
	}

	seen := make(map[int64]struct{})
	resolver := &Resolver{Variants: o.Variants}

	for _, p := range o.Providers {
		l := o.log().With("item", itemID, "sku", item.SKU, "provider", p.Name())

		key := item.ProviderKey(p.Name())
		full := key == nil
		if full {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			prod, err := p.ResolveProduct(ctx, item.SKU)
			if err != nil {
				// catalog resolution is critical for this provider
				l.Warn("catalog resolve failed", "err", err)
				out.Errors = append(out.Errors, catalog.SyncError{
					Provider: p.Name(), Stage: catalog.StageCatalog, Message: err.Error(),
				})
				continue
			}
			if err := o.Items.AttachProviderKey(ctx, item.ID, p.Name(), prod.ProviderProductID); err != nil {
				return out, err
			}
			k := prod.ProviderProductID
			key = &k
			if len(item.AllowedSizes) == 0 && len(prod.Sizes) > 0 {
				run := make([]string, 0, len(prod.Sizes))
				for _, s := range prod.Sizes {
					run = append(run, sizes.Normalize(s.Size))
				}
				if err := o.Items.SetAllowedSizes(ctx, item.ID, run); err != nil {
					return out, err
				}
				item.AllowedSizes = run
			}
			out.FullSync = true
		}

		existing, err := o.Variants.VariantsByItem(ctx, item.ID, p.Name())
		if err != nil {
			return out, err
		}
		for _, v := range existing {
			seen[v.ID] = struct{}{}
		}

		for _, region := range o.Regions {
			for _, cond := range o.Conditions {
				for _, consigned := range o.Consignments {
					if err := ctx.Err(); err != nil {
						return out, err
					}
					n, hist, serr := o.syncSlice(ctx, resolver, item, p, *key, region, cond, consigned, full, existing, seen)
					out.SnapshotsRefreshed += n
					out.HistoryAppended += hist
					if serr != nil {
						l.Warn("slice failed", "region", region, "condition", cond, "err", serr)
						out.Errors = append(out.Errors, catalog.SyncError{
							Provider: p.Name(), Region: region, Condition: cond,
							Stage: catalog.StageAvailability, Message: serr.Error(),
						})
					}
				}
			}
		}

		if opts.Volumes {
			inserted, verr := o.enrichVolumes(ctx, item, p, *key)
			out.SalesInserted += inserted
			if verr != nil {
				l.Warn("volume enrichment failed", "err", verr)
				out.Errors = append(out.Errors, catalog.SyncError{
					Provider: p.Name(), Stage: catalog.StageVolumes, Message: verr.Error(),
				})
			}
		}
	}

	out.VariantsTotal = len(seen)
	out.Success = out.Succeeded()
	o.log().Info("sync done",
		"item", itemID, "full", out.FullSync, "variants", out.VariantsTotal,
		"refreshed", out.SnapshotsRefreshed, "errors", len(out.Errors), "success", out.Success)
	return out, nil
}

func (o *Orchestrator) syncSlice(
	ctx context.Context, resolver *Resolver, item catalog.Item, p provider.Client,
	productID string, region catalog.Region, cond catalog.Condition, consigned bool,
	createMissing bool, existing []catalog.Variant, seen map[int64]struct{},
) (refreshed, appended int, err error) {
	quotes, err := p.FetchMarketData(ctx, provider.MarketQuery{
		ProductID: productID, Region: region, Condition: cond,
		Consignment: consigned, Currency: o.Currency,
	})
	if err != nil {
		return 0, 0, err
	}
	if len(quotes) == 0 {
		return 0, 0, nil
	}

	matches, err := resolver.Resolve(ctx, ResolveInput{
		Item: item, Provider: p.Name(), Region: region, Condition: cond,
		Consignment: consigned, Quotes: quotes,
		Existing: existing, CreateMissing: createMissing,
	})
	if err != nil {
		return 0, 0, err
	}

	now := o.now()
	for _, m := range matches {
		seen[m.Variant.ID] = struct{}{}
		snap := catalog.Snapshot{
			VariantID:     m.Variant.ID,
			LowestAsk:     m.Quote.LowestAsk,
			HighestBid:    m.Quote.HighestBid,
			LastSalePrice: m.Quote.LastSale,
			Currency:      m.Quote.Currency,
			UpdatedAt:     now,
			ExpiresAt:     now.Add(o.TTL),
		}
		// snapshot first, then history: a reader never sees an advanced
		// snapshot without its history row already on the way
		if err := o.Market.UpsertSnapshot(ctx, snap); err != nil {
			return refreshed, appended, err
		}
		refreshed++
		if err := o.Market.AppendHistory(ctx, catalog.PricePoint{
			VariantID: m.Variant.ID, RecordedAt: now,
			LowestAsk: snap.LowestAsk, HighestBid: snap.HighestBid,
			LastSalePrice: snap.LastSalePrice, Currency: snap.Currency,
		}); err != nil {
			return refreshed, appended, err
		}
		appended++
	}
	return refreshed, appended, nil
}

func (o *Orchestrator) enrichVolumes(ctx context.Context, item catalog.Item, p provider.Client, productID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := o.now()
	recent, err := p.FetchRecentSales(ctx, productID, now.Add(-30*24*time.Hour))
	if err != nil {
		return 0, err
	}

	rows := make([]catalog.Sale, 0, len(recent))
	for _, s := range recent {
		rows = append(rows, catalog.Sale{
			CatalogItemID: item.ID,
			Size:          sizes.Normalize(s.Size),
			Price:         s.Price,
			SoldAt:        s.SoldAt,
			Region:        s.Region,
			Consignment:   s.Consignment,
		})
	}
	inserted, err := o.Sales.InsertSalesIfAbsent(ctx, rows)
	if err != nil {
		return 0, err
	}

	vol72, err := o.Sales.VolumeBySize(ctx, item.ID, now.Add(-72*time.Hour))
	if err != nil {
		return inserted, err
	}
	vol30, err := o.Sales.VolumeBySize(ctx, item.ID, now.Add(-30*24*time.Hour))
	if err != nil {
		return inserted, err
	}

	variants, err := o.Variants.VariantsByItem(ctx, item.ID, p.Name())
	if err != nil {
		return inserted, err
	}
	for _, v := range variants {
		if err := o.Market.UpdateVolumes(ctx, v.ID, vol72[v.Size], vol30[v.Size]); err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

// SyncStale refreshes items whose market data aged past the TTL; the
// scheduler calls this on its interval. Per-item failures do not stop the
// batch.
func (o *Orchestrator) SyncStale(ctx context.Context, limit int, opts Options) (synced, failed int, err error) {
	o.defaults()
	ids, err := o.Items.StaleItemIDs(ctx, o.TTL, limit)
	if err != nil {
		return 0, 0, err
	}
	for _, id := range ids {
		if cerr := ctx.Err(); cerr != nil {
			return synced, failed, cerr
		}
		out, serr := o.SyncItem(ctx, id, opts)
		if serr != nil || !out.Success {
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

package marketdatauc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/catalog"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/provider"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/pkg/sizes"
)

// ErrNoLiveMarket means the provider returned no actionable quote for the
// variant; callers should treat the size as having no market right now.
var ErrNoLiveMarket = errors.New("no live market for variant")

// Service is the cache-first read path: fresh snapshots come straight from
// the store; a miss triggers exactly one provider fetch and the paired
// snapshot/history write.
type Service struct {
	Items     catalog.ItemRepo
	Variants  catalog.VariantRepo
	Market    catalog.MarketRepo
	Providers map[string]provider.Client

	TTL      time.Duration
	Currency string

	Clock  func() time.Time
	Logger *slog.Logger
}

type Result struct {
	Cached bool             `json:"cached"`
	Data   catalog.Snapshot `json:"data"`
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}

func (s *Service) GetFresh(ctx context.Context, variantID int64, ttl time.Duration) (Result, error) {
	if ttl <= 0 {
		ttl = s.TTL
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	snap, ok, err := s.Market.Snapshot(ctx, variantID)
	if err != nil {
		return Result{}, err
	}
	now := s.now()
	if ok && now.Sub(snap.UpdatedAt) < ttl {
		return Result{Cached: true, Data: snap}, nil
	}

	snap, err = s.refresh(ctx, variantID, ttl, now)
	if err != nil {
		return Result{}, err
	}
	return Result{Cached: false, Data: snap}, nil
}

func (s *Service) refresh(ctx context.Context, variantID int64, ttl time.Duration, now time.Time) (catalog.Snapshot, error) {
	v, err := s.Variants.VariantByID(ctx, variantID)
	if err != nil {
		return catalog.Snapshot{}, err
	}
	item, err := s.Items.ItemByID(ctx, v.CatalogItemID)
	if err != nil {
		return catalog.Snapshot{}, err
	}
	p, ok := s.Providers[v.Provider]
	if !ok {
		return catalog.Snapshot{}, fmt.Errorf("no client for provider %q", v.Provider)
	}
	key := item.ProviderKey(v.Provider)
	if key == nil {
		return catalog.Snapshot{}, fmt.Errorf("item %d has no %s key", item.ID, v.Provider)
	}

	quotes, err := p.FetchMarketData(ctx, provider.MarketQuery{
		ProductID: *key, Region: v.Region, Condition: v.Condition,
		Consignment: v.Consignment, Currency: s.Currency,
	})
	if err != nil {
		return catalog.Snapshot{}, err
	}

	quote, found := matchQuote(v, quotes)
	if !found {
		return catalog.Snapshot{}, ErrNoLiveMarket
	}

	snap := catalog.Snapshot{
		VariantID:     v.ID,
		LowestAsk:     quote.LowestAsk,
		HighestBid:    quote.HighestBid,
		LastSalePrice: quote.LastSale,
		Currency:      quote.Currency,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}
	if err := s.Market.UpsertSnapshot(ctx, snap); err != nil {
		return catalog.Snapshot{}, err
	}
	if err := s.Market.AppendHistory(ctx, catalog.PricePoint{
		VariantID: v.ID, RecordedAt: now,
		LowestAsk: snap.LowestAsk, HighestBid: snap.HighestBid,
		LastSalePrice: snap.LastSalePrice, Currency: snap.Currency,
	}); err != nil {
		return catalog.Snapshot{}, err
	}
	return snap, nil
}

func matchQuote(v catalog.Variant, quotes []provider.VariantQuote) (provider.VariantQuote, bool) {
	for _, q := range quotes {
		if !q.Actionable() {
			continue
		}
		if v.ProviderVariantID != nil && q.ProviderVariantID == *v.ProviderVariantID {
			return q, true
		}
		if v.ProviderVariantID == nil && sizes.Normalize(q.Size) == v.Size {
			return q, true
		}
	}
	return provider.VariantQuote{}, false
}

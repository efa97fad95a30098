package marketdatauc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/catalog"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/provider"
)

type fakeStore struct {
	mu       sync.Mutex
	item     catalog.Item
	variant  catalog.Variant
	snapshot *catalog.Snapshot
	history  int
}

func (f *fakeStore) ItemByID(context.Context, int64) (catalog.Item, error) { return f.item, nil }
func (f *fakeStore) AttachProviderKey(context.Context, int64, string, string) error {
	return nil
}
func (f *fakeStore) SetAllowedSizes(context.Context, int64, []string) error { return nil }
func (f *fakeStore) StaleItemIDs(context.Context, time.Duration, int) ([]int64, error) {
	return nil, nil
}
func (f *fakeStore) EnsureVariant(_ context.Context, v catalog.Variant) (catalog.Variant, error) {
	return v, nil
}
func (f *fakeStore) VariantsByItem(context.Context, int64, string) ([]catalog.Variant, error) {
	return nil, nil
}
func (f *fakeStore) VariantByID(context.Context, int64) (catalog.Variant, error) {
	return f.variant, nil
}
func (f *fakeStore) Snapshot(context.Context, int64) (catalog.Snapshot, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshot == nil {
		return catalog.Snapshot{}, false, nil
	}
	return *f.snapshot, true, nil
}
func (f *fakeStore) UpsertSnapshot(_ context.Context, s catalog.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = &s
	return nil
}
func (f *fakeStore) AppendHistory(context.Context, catalog.PricePoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history++
	return nil
}
func (f *fakeStore) UpdateVolumes(context.Context, int64, int, int) error { return nil }

type countingProvider struct {
	fetches int
	quotes  []provider.VariantQuote
}

func (c *countingProvider) Name() string { return "stockx" }
func (c *countingProvider) ResolveProduct(context.Context, string) (provider.Product, error) {
	return provider.Product{}, nil
}
func (c *countingProvider) FetchMarketData(context.Context, provider.MarketQuery) ([]provider.VariantQuote, error) {
	c.fetches++
	return c.quotes, nil
}
func (c *countingProvider) FetchRecentSales(context.Context, string, time.Time) ([]provider.RecentSale, error) {
	return nil, nil
}
func (c *countingProvider) SubmitMutation(context.Context, provider.MutationRequest) (provider.MutationReceipt, error) {
	return provider.MutationReceipt{}, nil
}
func (c *countingProvider) PollOperation(context.Context, string) (provider.OperationState, error) {
	return provider.OperationState{}, nil
}

func newService(store *fakeStore, p *countingProvider, now time.Time) *Service {
	return &Service{
		Items: store, Variants: store, Market: store,
		Providers: map[string]provider.Client{"stockx": p},
		TTL:       24 * time.Hour, Currency: "USD",
		Clock: func() time.Time { return now },
	}
}

func fixture() (*fakeStore, *countingProvider) {
	key := "px-1"
	vid := "v-8"
	store := &fakeStore{
		item: catalog.Item{ID: 7, SKU: "DD1391-100", StockXProductID: &key},
		variant: catalog.Variant{ID: 1, CatalogItemID: 7, Size: "8",
			Region: catalog.RegionUS, Condition: catalog.ConditionNew,
			Provider: "stockx", ProviderVariantID: &vid},
	}
	p := &countingProvider{quotes: []provider.VariantQuote{{
		ProviderVariantID: "v-8", Size: "8", Currency: "USD",
		LowestAsk: decimal.NullDecimal{Decimal: decimal.NewFromInt(120), Valid: true},
	}}}
	return store, p
}

func TestGetFresh_HitWithinTTL(t *testing.T) {
	store, p := fixture()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.snapshot = &catalog.Snapshot{VariantID: 1, UpdatedAt: now.Add(-23 * time.Hour),
		ExpiresAt: now.Add(time.Hour)}

	res, err := newService(store, p, now).GetFresh(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("GetFresh: %v", err)
	}
	if !res.Cached {
		t.Fatal("want cache hit")
	}
	if p.fetches != 0 {
		t.Fatalf("fetches = %d, want 0", p.fetches)
	}
}

func TestGetFresh_MissAtExactTTLBoundary(t *testing.T) {
	store, p := fixture()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// age == ttl: stale by contract (fresh iff age < ttl)
	store.snapshot = &catalog.Snapshot{VariantID: 1, UpdatedAt: now.Add(-24 * time.Hour),
		ExpiresAt: now}

	res, err := newService(store, p, now).GetFresh(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("GetFresh: %v", err)
	}
	if res.Cached {
		t.Fatal("age == ttl must be a miss")
	}
	if p.fetches != 1 {
		t.Fatalf("fetches = %d, want exactly 1", p.fetches)
	}
	if store.history != 1 {
		t.Fatalf("history appends = %d, want 1 (paired with upsert)", store.history)
	}
	if !res.Data.LowestAsk.Valid || !res.Data.LowestAsk.Decimal.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("refreshed ask = %+v", res.Data.LowestAsk)
	}
	if !res.Data.ExpiresAt.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("expires_at = %v", res.Data.ExpiresAt)
	}
}

func TestGetFresh_NoQuoteForVariant(t *testing.T) {
	store, p := fixture()
	p.quotes = nil
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := newService(store, p, now).GetFresh(context.Background(), 1, 0)
	if err != ErrNoLiveMarket {
		t.Fatalf("err = %v, want ErrNoLiveMarket", err)
	}
}

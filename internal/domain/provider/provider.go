package provider

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/catalog"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/ops"
)

// Client is the capability surface every marketplace integration exposes.
// The orchestrator and reconciler depend only on this interface; provider
// quirks (string vs numeric enums, endpoint shapes) stay behind it.
type Client interface {
	Name() string
	// ResolveProduct looks the style code up in the provider catalog.
	ResolveProduct(ctx context.Context, sku string) (Product, error)
	// FetchMarketData returns per-size quotes for one region/condition slice.
	FetchMarketData(ctx context.Context, q MarketQuery) ([]VariantQuote, error)
	// FetchRecentSales returns completed sales observed since the given time.
	FetchRecentSales(ctx context.Context, productID string, since time.Time) ([]RecentSale, error)
	// SubmitMutation submits a listing mutation; the result is either
	// immediate or an operation id to be polled.
	SubmitMutation(ctx context.Context, req MutationRequest) (MutationReceipt, error)
	// PollOperation reads the current state of an asynchronous operation.
	PollOperation(ctx context.Context, operationID string) (OperationState, error)
}

type Product struct {
	ProviderProductID string
	Brand             string
	Name              string
	SKU               string
	Sizes             []SizeEntry
}

type SizeEntry struct {
	Size     string
	SizeUnit string
}

type MarketQuery struct {
	ProductID   string
	Region      catalog.Region
	Condition   catalog.Condition
	Consignment bool
	Currency    string
}

// VariantQuote is one provider-side size with its market numbers.
type VariantQuote struct {
	ProviderVariantID string
	Size              string
	SizeUnit          string
	LowestAsk         decimal.NullDecimal
	HighestBid        decimal.NullDecimal
	LastSale          decimal.NullDecimal
	Currency          string
}

// Actionable reports whether the quote carries any live market signal.
// Sizes where ask, bid and last sale are all absent or zero have no market
// and must not produce snapshot rows.
func (q VariantQuote) Actionable() bool {
	for _, d := range []decimal.NullDecimal{q.LowestAsk, q.HighestBid, q.LastSale} {
		if d.Valid && d.Decimal.IsPositive() {
			return true
		}
	}
	return false
}

type RecentSale struct {
	Size        string
	Price       decimal.Decimal
	Currency    string
	SoldAt      time.Time
	Region      catalog.Region
	Consignment bool
}

type MutationRequest struct {
	Kind      ops.Kind
	ListingID string // provider listing id; empty for create
	VariantID string // provider variant id
	Amount    decimal.Decimal
	Currency  string
}

type MutationReceipt struct {
	OperationID string
	ListingID   string // may be empty until the create completes
	State       OperationState
}

// OperationState is the provider-agnostic view of an async operation.
type OperationState struct {
	OperationID string
	ListingID   string
	Status      ops.Status
	Error       string // provider-reported failure detail, if any
}

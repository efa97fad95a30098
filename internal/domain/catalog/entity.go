package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Condition string

const (
	ConditionNew  Condition = "new"
	ConditionUsed Condition = "used"
)

type Region string

const (
	RegionUS Region = "US"
	RegionEU Region = "EU"
	RegionGB Region = "GB"
	RegionJP Region = "JP"
)

// Item is a canonical product identity, independent of any one marketplace.
// Rows are created on first discovery and only ever enriched afterwards.
type Item struct {
	ID              int64
	Brand           string
	Name            string
	SKU             string // style code, e.g. "DD1391-100"
	StockXProductID *string
	AliasCatalogID  *string
	AllowedSizes    []string // declared size run; empty until first resolve
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (it Item) ProviderKey(provider string) *string {
	switch provider {
	case "stockx":
		return it.StockXProductID
	case "alias":
		return it.AliasCatalogID
	}
	return nil
}

// Variant is the sellable unit: one size/condition/region/consignment
// configuration of an item on one provider. Identity is independent of price.
type Variant struct {
	ID                int64
	CatalogItemID     int64
	Size              string
	SizeUnit          string // "US", "EU", "cm"
	Condition         Condition
	Region            Region
	Consignment       bool
	Provider          string
	ProviderVariantID *string
}

// Snapshot is the current-best-known market state for one variant.
// Exactly one live row per variant; replaced wholesale on refresh.
type Snapshot struct {
	VariantID      int64
	LowestAsk      decimal.NullDecimal
	HighestBid     decimal.NullDecimal
	LastSalePrice  decimal.NullDecimal
	Currency       string
	UpdatedAt      time.Time
	ExpiresAt      time.Time
	SalesVolume72h int
	SalesVolume30d int
}

func (s Snapshot) Fresh(now time.Time) bool { return now.Before(s.ExpiresAt) }

// PricePoint is one immutable entry of the price history log.
type PricePoint struct {
	VariantID     int64
	RecordedAt    time.Time
	LowestAsk     decimal.NullDecimal
	HighestBid    decimal.NullDecimal
	LastSalePrice decimal.NullDecimal
	Currency      string
}

// Sale is an observed completed sale. The natural key
// (catalog_item_id, size, price, sold_at) dedupes overlapping fetch windows.
type Sale struct {
	CatalogItemID int64
	Size          string
	Price         decimal.Decimal
	SoldAt        time.Time
	Region        Region
	Consignment   bool
}

// SyncStage identifies where inside a pass an error happened.
type SyncStage string

const (
	StageCatalog      SyncStage = "catalog"
	StageAvailability SyncStage = "availability"
	StageUpsert       SyncStage = "upsert"
	StageVolumes      SyncStage = "volumes"
)

type SyncError struct {
	Provider  string    `json:"provider"`
	Region    Region    `json:"region,omitempty"`
	Condition Condition `json:"condition,omitempty"`
	Stage     SyncStage `json:"stage"`
	Message   string    `json:"message"`
}

// SyncOutcome summarizes one orchestration pass. Never persisted.
type SyncOutcome struct {
	ItemID             int64       `json:"item_id"`
	FullSync           bool        `json:"full_sync"`
	VariantsTotal      int         `json:"variants_total"`
	SnapshotsRefreshed int         `json:"snapshots_refreshed"`
	HistoryAppended    int         `json:"history_appended"`
	SalesInserted      int         `json:"sales_inserted"`
	Errors             []SyncError `json:"errors,omitempty"`
	Success            bool        `json:"success"`
}

// Succeeded applies the coverage rule: at least half of the variants must
// have refreshed, and items with fewer than 4 variants get no tolerance at
// all. An item with no variants succeeds only if the pass recorded no errors.
func (o SyncOutcome) Succeeded() bool {
	if o.VariantsTotal == 0 {
		return len(o.Errors) == 0
	}
	if o.VariantsTotal < 4 {
		return o.SnapshotsRefreshed == o.VariantsTotal
	}
	return o.SnapshotsRefreshed*2 >= o.VariantsTotal
}

package alias

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TheDarkKnight1989/archvd-sub000/internal/adapter/gateway/provider/common"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/catalog"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/ops"
	dp "github.com/TheDarkKnight1989/archvd-sub000/internal/domain/provider"
)

const Name = "alias"

// alias speaks numeric enums: condition 1=new 2=used, operation status
// 0=pending 1=processing 2=completed 3=failed 4=partial. Prices come in
// cents.
type Client struct{ c *common.Client }

func New(lim *common.RateLimiter, opts common.Options) *Client {
	return &Client{c: common.NewWith(Name, "https://sell-api.goat.com", lim, opts)}
}

func NewWithBaseURL(base string, lim *common.RateLimiter, opts common.Options) *Client {
	return &Client{c: common.NewWith(Name, base, lim, opts)}
}

func (Client) Name() string { return Name }

func condCode(c catalog.Condition) string {
	if c == catalog.ConditionUsed {
		return "2"
	}
	return "1"
}

type templateResp struct {
	ProductTemplates []struct {
		ID       string   `json:"id"`
		Brand    string   `json:"brand_name"`
		Name     string   `json:"name"`
		SKU      string   `json:"sku"`
		SizeUnit string   `json:"size_unit"`
		SizeRun  []string `json:"size_range"`
	} `json:"product_templates"`
}

func (cl *Client) ResolveProduct(ctx context.Context, sku string) (dp.Product, error) {
	var v templateResp
	if err := cl.c.GetJSON(ctx, "/api/1/product_templates", map[string]string{"sku": sku}, &v); err != nil {
		return dp.Product{}, err
	}
	if len(v.ProductTemplates) == 0 {
		return dp.Product{}, &dp.APIError{Provider: Name, StatusCode: 404, Body: "sku " + sku + " not found"}
	}
	t := v.ProductTemplates[0]
	out := dp.Product{ProviderProductID: t.ID, Brand: t.Brand, Name: t.Name, SKU: t.SKU}
	for _, s := range t.SizeRun {
		out.Sizes = append(out.Sizes, dp.SizeEntry{Size: s, SizeUnit: t.SizeUnit})
	}
	return out, nil
}

type availResp struct {
	Availabilities []struct {
		VariantID       int64     `json:"variant_id"`
		SizeRaw         json1Size `json:"size"`
		LowestAskCents  int64     `json:"lowest_price_cents"`
		HighestBidCents int64     `json:"highest_offer_cents"`
		LastSoldCents   int64     `json:"last_sold_price_cents"`
	} `json:"availabilities"`
	Currency string `json:"currency"`
}

// size can arrive as a number or a string depending on endpoint version.
type json1Size string

func (s *json1Size) UnmarshalJSON(b []byte) error {
	str := string(b)
	if len(str) >= 2 && str[0] == '"' {
		str = str[1 : len(str)-1]
	}
	*s = json1Size(str)
	return nil
}

func (cl *Client) FetchMarketData(ctx context.Context, q dp.MarketQuery) ([]dp.VariantQuote, error) {
	params := map[string]string{
		"catalog_id": q.ProductID,
		"condition":  condCode(q.Condition),
		"region":     string(q.Region),
		"consigned":  strconv.FormatBool(q.Consignment),
		"currency":   q.Currency,
	}
	var v availResp
	if err := cl.c.GetJSON(ctx, "/api/1/availabilities", params, &v); err != nil {
		return nil, err
	}
	cur := v.Currency
	if cur == "" {
		cur = q.Currency
	}
	out := make([]dp.VariantQuote, 0, len(v.Availabilities))
	for _, a := range v.Availabilities {
		out = append(out, dp.VariantQuote{
			ProviderVariantID: strconv.FormatInt(a.VariantID, 10),
			Size:              string(a.SizeRaw),
			SizeUnit:          "US",
			Currency:          cur,
			LowestAsk:         cents(a.LowestAskCents),
			HighestBid:        cents(a.HighestBidCents),
			LastSale:          cents(a.LastSoldCents),
		})
	}
	return out, nil
}

func cents(c int64) decimal.NullDecimal {
	if c <= 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: decimal.New(c, -2), Valid: true}
}

type salesResp struct {
	Sales []struct {
		Size       json1Size `json:"size"`
		PriceCents int64     `json:"price_cents"`
		SoldAtUnix int64     `json:"sold_at"`
		Region     string    `json:"region"`
		Consigned  bool      `json:"consigned"`
	} `json:"sales"`
	Currency string `json:"currency"`
}

func (cl *Client) FetchRecentSales(ctx context.Context, productID string, since time.Time) ([]dp.RecentSale, error) {
	params := map[string]string{
		"catalog_id": productID,
		"since":      strconv.FormatInt(since.Unix(), 10),
	}
	var v salesResp
	if err := cl.c.GetJSON(ctx, "/api/1/sales", params, &v); err != nil {
		return nil, err
	}
	out := make([]dp.RecentSale, 0, len(v.Sales))
	for _, s := range v.Sales {
		if s.PriceCents <= 0 {
			continue
		}
		out = append(out, dp.RecentSale{
			Size:        string(s.Size),
			Price:       decimal.New(s.PriceCents, -2),
			Currency:    v.Currency,
			SoldAt:      time.Unix(s.SoldAtUnix, 0).UTC(),
			Region:      catalog.Region(s.Region),
			Consignment: s.Consigned,
		})
	}
	return out, nil
}

type opResp struct {
	Operation struct {
		ID        int64  `json:"id"`
		ListingID string `json:"listing_id"`
		Status    int    `json:"status"`
		Message   string `json:"message"`
	} `json:"operation"`
}

func (cl *Client) SubmitMutation(ctx context.Context, req dp.MutationRequest) (dp.MutationReceipt, error) {
	body := map[string]any{
		"kind":        kindCode(req.Kind),
		"listing_id":  req.ListingID,
		"variant_id":  req.VariantID,
		"price_cents": req.Amount.Shift(2).IntPart(),
		"currency":    req.Currency,
	}
	var v opResp
	if err := cl.c.PostJSON(ctx, "/api/1/listing_operations", body, &v); err != nil {
		return dp.MutationReceipt{}, err
	}
	st := state(v)
	return dp.MutationReceipt{OperationID: st.OperationID, ListingID: st.ListingID, State: st}, nil
}

func kindCode(k ops.Kind) int {
	switch k {
	case ops.KindCreate:
		return 0
	case ops.KindUpdate:
		return 1
	case ops.KindDelete:
		return 2
	case ops.KindActivate:
		return 3
	case ops.KindDeactivate:
		return 4
	}
	return -1
}

func (cl *Client) PollOperation(ctx context.Context, operationID string) (dp.OperationState, error) {
	var v opResp
	if err := cl.c.GetJSON(ctx, "/api/1/listing_operations/"+operationID, nil, &v); err != nil {
		return dp.OperationState{}, err
	}
	return state(v), nil
}

func state(v opResp) dp.OperationState {
	st := dp.OperationState{
		ListingID: v.Operation.ListingID,
		Error:     v.Operation.Message,
	}
	if v.Operation.ID != 0 {
		st.OperationID = strconv.FormatInt(v.Operation.ID, 10)
	}
	switch v.Operation.Status {
	case 0:
		st.Status = ops.StatusPending
	case 1:
		st.Status = ops.StatusProcessing
	case 2:
		st.Status = ops.StatusCompleted
	case 3:
		st.Status = ops.StatusFailed
	case 4:
		st.Status = ops.StatusPartialSuccess
	default:
		st.Status = ops.StatusProcessing
	}
	return st
}

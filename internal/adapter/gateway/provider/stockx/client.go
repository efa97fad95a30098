package stockx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TheDarkKnight1989/archvd-sub000/internal/adapter/gateway/provider/common"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/catalog"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/ops"
	dp "github.com/TheDarkKnight1989/archvd-sub000/internal/domain/provider"
)

const Name = "stockx"

type Client struct{ c *common.Client }

func New(lim *common.RateLimiter, opts common.Options) *Client {
	return &Client{c: common.NewWith(Name, "https://api.stockx.com", lim, opts)}
}

func NewWithBaseURL(base string, lim *common.RateLimiter, opts common.Options) *Client {
	return &Client{c: common.NewWith(Name, base, lim, opts)}
}

func (Client) Name() string { return Name }

type searchResp struct {
	Products []struct {
		ProductID string `json:"productId"`
		Brand     string `json:"brand"`
		Title     string `json:"title"`
		StyleID   string `json:"styleId"`
		Variants  []struct {
			VariantID string `json:"variantId"`
			Size      string `json:"size"`
			SizeChart string `json:"sizeChart"` // "us-m", "eu", ...
		} `json:"variants"`
	} `json:"products"`
}

func (cl *Client) ResolveProduct(ctx context.Context, sku string) (dp.Product, error) {
	var v searchResp
	err := cl.c.GetJSON(ctx, "/v2/catalog/search", map[string]string{"query": sku}, &v)
	if err != nil {
		return dp.Product{}, err
	}
	for _, p := range v.Products {
		if !strings.EqualFold(p.StyleID, sku) {
			continue
		}
		out := dp.Product{
			ProviderProductID: p.ProductID,
			Brand:             p.Brand,
			Name:              p.Title,
			SKU:               p.StyleID,
		}
		for _, vr := range p.Variants {
			out.Sizes = append(out.Sizes, dp.SizeEntry{Size: vr.Size, SizeUnit: sizeUnit(vr.SizeChart)})
		}
		return out, nil
	}
	return dp.Product{}, &dp.APIError{Provider: Name, StatusCode: 404, Body: "style " + sku + " not found"}
}

func sizeUnit(chart string) string {
	switch {
	case strings.HasPrefix(chart, "us"):
		return "US"
	case strings.HasPrefix(chart, "eu"):
		return "EU"
	case strings.HasPrefix(chart, "cm"), strings.HasPrefix(chart, "jp"):
		return "cm"
	default:
		return "US"
	}
}

type marketResp struct {
	Variants []struct {
		VariantID  string `json:"variantId"`
		Size       string `json:"variantValue"`
		Currency   string `json:"currencyCode"`
		LowestAsk  string `json:"lowestAskAmount"`
		HighestBid string `json:"highestBidAmount"`
		LastSale   string `json:"lastSaleAmount"`
	} `json:"variants"`
}

func (cl *Client) FetchMarketData(ctx context.Context, q dp.MarketQuery) ([]dp.VariantQuote, error) {
	params := map[string]string{
		"currencyCode": q.Currency,
		"country":      string(q.Region),
	}
	// StockX only trades deadstock; a used query has no market there.
	if q.Condition != "" && q.Condition != catalog.ConditionNew {
		return nil, nil
	}
	var v marketResp
	path := fmt.Sprintf("/v2/catalog/products/%s/market-data", q.ProductID)
	if err := cl.c.GetJSON(ctx, path, params, &v); err != nil {
		return nil, err
	}
	out := make([]dp.VariantQuote, 0, len(v.Variants))
	for _, it := range v.Variants {
		out = append(out, dp.VariantQuote{
			ProviderVariantID: it.VariantID,
			Size:              it.Size,
			SizeUnit:          "US",
			Currency:          it.Currency,
			LowestAsk:         parseAmount(it.LowestAsk),
			HighestBid:        parseAmount(it.HighestBid),
			LastSale:          parseAmount(it.LastSale),
		})
	}
	return out, nil
}

func parseAmount(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

type salesResp struct {
	Sales []struct {
		Size      string `json:"size"`
		Amount    string `json:"amount"`
		Currency  string `json:"currencyCode"`
		CreatedAt string `json:"createdAt"`
		Region    string `json:"region"`
	} `json:"sales"`
}

func (cl *Client) FetchRecentSales(ctx context.Context, productID string, since time.Time) ([]dp.RecentSale, error) {
	var v salesResp
	path := fmt.Sprintf("/v2/catalog/products/%s/sales", productID)
	err := cl.c.GetJSON(ctx, path, map[string]string{"from": since.UTC().Format(time.RFC3339)}, &v)
	if err != nil {
		return nil, err
	}
	out := make([]dp.RecentSale, 0, len(v.Sales))
	for _, s := range v.Sales {
		amt := parseAmount(s.Amount)
		if !amt.Valid {
			continue
		}
		at, err := time.Parse(time.RFC3339, s.CreatedAt)
		if err != nil {
			continue
		}
		out = append(out, dp.RecentSale{
			Size:     s.Size,
			Price:    amt.Decimal,
			Currency: s.Currency,
			SoldAt:   at,
			Region:   region(s.Region),
		})
	}
	return out, nil
}

func region(s string) catalog.Region {
	switch strings.ToUpper(s) {
	case "EU":
		return catalog.RegionEU
	case "GB", "UK":
		return catalog.RegionGB
	case "JP":
		return catalog.RegionJP
	default:
		return catalog.RegionUS
	}
}

type opResp struct {
	OperationID string `json:"listingOperationId"`
	ListingID   string `json:"listingId"`
	Status      string `json:"operationStatus"` // PENDING / IN_PROGRESS / SUCCEEDED / FAILED / PARTIAL
	Error       string `json:"error"`
}

func (cl *Client) SubmitMutation(ctx context.Context, req dp.MutationRequest) (dp.MutationReceipt, error) {
	var v opResp
	var err error
	switch req.Kind {
	case ops.KindCreate:
		body := map[string]any{
			"variantId":    req.VariantID,
			"amount":       req.Amount.String(),
			"currencyCode": req.Currency,
		}
		err = cl.c.PostJSON(ctx, "/v2/selling/listings", body, &v)
	case ops.KindUpdate:
		body := map[string]any{
			"amount":       req.Amount.String(),
			"currencyCode": req.Currency,
		}
		err = cl.c.PutJSON(ctx, "/v2/selling/listings/"+req.ListingID, body, &v)
	case ops.KindDelete:
		err = cl.c.DeleteJSON(ctx, "/v2/selling/listings/"+req.ListingID, &v)
	case ops.KindActivate:
		err = cl.c.PutJSON(ctx, "/v2/selling/listings/"+req.ListingID+"/activate", nil, &v)
	case ops.KindDeactivate:
		err = cl.c.PutJSON(ctx, "/v2/selling/listings/"+req.ListingID+"/deactivate", nil, &v)
	default:
		return dp.MutationReceipt{}, fmt.Errorf("stockx: unknown mutation kind %q", req.Kind)
	}
	if err != nil {
		return dp.MutationReceipt{}, err
	}
	return dp.MutationReceipt{
		OperationID: v.OperationID,
		ListingID:   v.ListingID,
		State:       state(v),
	}, nil
}

func (cl *Client) PollOperation(ctx context.Context, operationID string) (dp.OperationState, error) {
	var v opResp
	if err := cl.c.GetJSON(ctx, "/v2/selling/operations/"+operationID, nil, &v); err != nil {
		return dp.OperationState{}, err
	}
	return state(v), nil
}

func state(v opResp) dp.OperationState {
	st := dp.OperationState{
		OperationID: v.OperationID,
		ListingID:   v.ListingID,
		Error:       v.Error,
	}
	switch strings.ToUpper(v.Status) {
	case "PENDING":
		st.Status = ops.StatusPending
	case "IN_PROGRESS":
		st.Status = ops.StatusProcessing
	case "SUCCEEDED":
		st.Status = ops.StatusCompleted
	case "FAILED":
		st.Status = ops.StatusFailed
	case "PARTIAL":
		st.Status = ops.StatusPartialSuccess
	default:
		st.Status = ops.StatusProcessing
	}
	return st
}

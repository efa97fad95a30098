package stockx_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TheDarkKnight1989/archvd-sub000/internal/adapter/gateway/provider/common"
	cl "github.com/TheDarkKnight1989/archvd-sub000/internal/adapter/gateway/provider/stockx"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/catalog"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/ops"
	dp "github.com/TheDarkKnight1989/archvd-sub000/internal/domain/provider"
)

func fastOpts() common.Options {
	return common.Options{Timeout: 2 * time.Second, MaxAttempts: 3,
		BackoffMin: time.Millisecond, BackoffMax: 5 * time.Millisecond}
}

func fastLimiter() *common.RateLimiter {
	return common.NewRateLimiter(time.Millisecond, 10*time.Millisecond)
}

func newClient(ts *httptest.Server) *cl.Client {
	return cl.NewWithBaseURL(ts.URL, fastLimiter(), fastOpts())
}

func TestResolveProduct(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/catalog/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") != "DD1391-100" {
			w.WriteHeader(400)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"products": []map[string]any{{
				"productId": "px-1", "brand": "Nike", "title": "Dunk Low Panda", "styleId": "DD1391-100",
				"variants": []map[string]any{
					{"variantId": "v-8", "size": "8", "sizeChart": "us-m"},
					{"variantId": "v-9", "size": "9", "sizeChart": "us-m"},
				},
			}},
		})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	p, err := newClient(ts).ResolveProduct(context.Background(), "DD1391-100")
	if err != nil {
		t.Fatalf("ResolveProduct: %v", err)
	}
	if p.ProviderProductID != "px-1" || len(p.Sizes) != 2 || p.Sizes[0].SizeUnit != "US" {
		t.Fatalf("bad product: %+v", p)
	}
}

func TestResolveProduct_NoMatchIsNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"products": []any{}})
	}))
	defer ts.Close()

	_, err := newClient(ts).ResolveProduct(context.Background(), "XX0000-000")
	if !dp.IsNotFound(err) {
		t.Fatalf("err = %v, want not-found", err)
	}
}

func TestFetchMarketData(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/catalog/products/px-1/market-data", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"variants": []map[string]any{
				{"variantId": "v-8", "variantValue": "8", "currencyCode": "USD",
					"lowestAskAmount": "120", "highestBidAmount": "95", "lastSaleAmount": "110"},
				{"variantId": "v-17", "variantValue": "17", "currencyCode": "USD",
					"lowestAskAmount": "", "highestBidAmount": "", "lastSaleAmount": ""},
			},
		})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	quotes, err := newClient(ts).FetchMarketData(context.Background(), dp.MarketQuery{
		ProductID: "px-1", Region: catalog.RegionUS, Condition: catalog.ConditionNew, Currency: "USD",
	})
	if err != nil {
		t.Fatalf("FetchMarketData: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("quotes = %d, want 2", len(quotes))
	}
	if !quotes[0].Actionable() || quotes[1].Actionable() {
		t.Fatalf("actionable flags wrong: %+v", quotes)
	}
	want := decimal.NewFromInt(120)
	if !quotes[0].LowestAsk.Valid || !quotes[0].LowestAsk.Decimal.Equal(want) {
		t.Fatalf("lowest ask = %+v, want 120", quotes[0].LowestAsk)
	}
}

func TestFetchMarketData_UsedHasNoMarket(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for used condition")
	}))
	defer ts.Close()

	quotes, err := newClient(ts).FetchMarketData(context.Background(), dp.MarketQuery{
		ProductID: "px-1", Condition: catalog.ConditionUsed,
	})
	if err != nil || quotes != nil {
		t.Fatalf("got %v, %v; want nil, nil", quotes, err)
	}
}

func TestPollOperation_StringEnums(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/selling/operations/op-7", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"listingOperationId": "op-7", "listingId": "lst-3", "operationStatus": "SUCCEEDED",
		})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	st, err := newClient(ts).PollOperation(context.Background(), "op-7")
	if err != nil {
		t.Fatalf("PollOperation: %v", err)
	}
	if st.Status != ops.StatusCompleted || st.ListingID != "lst-3" {
		t.Fatalf("state = %+v", st)
	}
}

func TestSubmitMutation_Create(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/selling/listings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(405)
			return
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["variantId"] != "v-8" || body["amount"] != "150" {
			w.WriteHeader(400)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"listingOperationId": "op-1", "operationStatus": "PENDING",
		})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	rec, err := newClient(ts).SubmitMutation(context.Background(), dp.MutationRequest{
		Kind: ops.KindCreate, VariantID: "v-8",
		Amount: decimal.NewFromInt(150), Currency: "USD",
	})
	if err != nil {
		t.Fatalf("SubmitMutation: %v", err)
	}
	if rec.OperationID != "op-1" || rec.State.Status != ops.StatusPending {
		t.Fatalf("receipt = %+v", rec)
	}
}

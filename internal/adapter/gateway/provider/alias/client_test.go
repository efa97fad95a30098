package alias_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	cl "github.com/TheDarkKnight1989/archvd-sub000/internal/adapter/gateway/provider/alias"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/adapter/gateway/provider/common"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/catalog"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/ops"
	dp "github.com/TheDarkKnight1989/archvd-sub000/internal/domain/provider"
)

func newClient(ts *httptest.Server) *cl.Client {
	lim := common.NewRateLimiter(time.Millisecond, 10*time.Millisecond)
	return cl.NewWithBaseURL(ts.URL, lim, common.Options{
		Timeout: 2 * time.Second, MaxAttempts: 3,
		BackoffMin: time.Millisecond, BackoffMax: 5 * time.Millisecond,
	})
}

func TestFetchMarketData_NumericEnumsAndCents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/1/availabilities", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("condition") != "2" || q.Get("consigned") != "true" {
			w.WriteHeader(400)
			return
		}
		// size arrives as a bare number on this endpoint version
		w.Write([]byte(`{"currency":"USD","availabilities":[
			{"variant_id":991,"size":10.5,"lowest_price_cents":12050,"highest_offer_cents":0,"last_sold_price_cents":11000}
		]}`))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	quotes, err := newClient(ts).FetchMarketData(context.Background(), dp.MarketQuery{
		ProductID: "cat-5", Region: catalog.RegionUS, Condition: catalog.ConditionUsed,
		Consignment: true, Currency: "USD",
	})
	if err != nil {
		t.Fatalf("FetchMarketData: %v", err)
	}
	if len(quotes) != 1 || quotes[0].ProviderVariantID != "991" || quotes[0].Size != "10.5" {
		t.Fatalf("bad quotes: %+v", quotes)
	}
	if !quotes[0].LowestAsk.Decimal.Equal(decimal.RequireFromString("120.50")) {
		t.Fatalf("lowest ask = %v, want 120.50", quotes[0].LowestAsk.Decimal)
	}
	if quotes[0].HighestBid.Valid {
		t.Fatalf("zero cents must map to null bid")
	}
}

func TestPollOperation_NumericStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/1/listing_operations/42", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"operation": map[string]any{"id": 42, "listing_id": "L-9", "status": 3, "message": "price too low"},
		})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	st, err := newClient(ts).PollOperation(context.Background(), "42")
	if err != nil {
		t.Fatalf("PollOperation: %v", err)
	}
	if st.Status != ops.StatusFailed || st.Error != "price too low" || st.OperationID != "42" {
		t.Fatalf("state = %+v", st)
	}
}

func TestSubmitMutation_SendsCents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/1/listing_operations", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["price_cents"] != float64(15000) || body["kind"] != float64(0) {
			t.Errorf("bad body: %+v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"operation": map[string]any{"id": 7, "status": 0},
		})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	rec, err := newClient(ts).SubmitMutation(context.Background(), dp.MutationRequest{
		Kind: ops.KindCreate, VariantID: "991",
		Amount: decimal.NewFromInt(150), Currency: "USD",
	})
	if err != nil {
		t.Fatalf("SubmitMutation: %v", err)
	}
	if rec.OperationID != "7" || rec.State.Status != ops.StatusPending {
		t.Fatalf("receipt = %+v", rec)
	}
}

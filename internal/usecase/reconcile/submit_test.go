package reconcileuc

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/catalog"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/ops"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/provider"
)

type stubVariants struct{ v catalog.Variant }

func (s stubVariants) EnsureVariant(_ context.Context, v catalog.Variant) (catalog.Variant, error) {
	return v, nil
}
func (s stubVariants) VariantsByItem(context.Context, int64, string) ([]catalog.Variant, error) {
	return nil, nil
}
func (s stubVariants) VariantByID(context.Context, int64) (catalog.Variant, error) {
	return s.v, nil
}

func testSubmitter(repo *memOps, fc *fakeClient) *Submitter {
	pid := "v-8"
	return &Submitter{
		Ops: repo,
		Variants: stubVariants{v: catalog.Variant{
			ID: 3, CatalogItemID: 7, Size: "8", Provider: "stockx", ProviderVariantID: &pid,
		}},
		Providers: map[string]provider.Client{"stockx": fc},
		Clock:     func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestSubmit_CreatesOperationAndStoresProviderID(t *testing.T) {
	repo := newMemOps()
	s := testSubmitter(repo, &fakeClient{name: "stockx"})

	op, err := s.Submit(context.Background(), SubmitInput{
		CatalogItemID: 7, Provider: "stockx", Kind: ops.KindCreate,
		VariantID: 3, Amount: decimal.NewFromInt(150), Currency: "USD",
	})
	require.NoError(t, err)
	require.Equal(t, "prov-1", op.ProviderOperationID)
	require.Equal(t, ops.StatusPending, op.Status)
}

func TestSubmit_SecondActiveOperationConflicts(t *testing.T) {
	repo := newMemOps()
	s := testSubmitter(repo, &fakeClient{name: "stockx"})

	in := SubmitInput{
		CatalogItemID: 7, Provider: "stockx", Kind: ops.KindCreate,
		VariantID: 3, Amount: decimal.NewFromInt(150), Currency: "USD",
	}
	_, err := s.Submit(context.Background(), in)
	require.NoError(t, err)

	_, err = s.Submit(context.Background(), in)
	require.ErrorIs(t, err, ops.ErrActiveOperationExists)

	// exactly one active row exists
	batch, err := repo.Pollable(context.Background(), time.Now(), 0, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
}

func TestSubmit_ProviderErrorReleasesSlot(t *testing.T) {
	repo := newMemOps()
	fc := &fakeClient{name: "stockx"}
	s := testSubmitter(repo, fc)
	submitErr := &provider.APIError{Provider: "stockx", StatusCode: 422, Body: "bad price"}
	fcFail := &failingSubmit{fakeClient: fc, err: submitErr}
	s.Providers = map[string]provider.Client{"stockx": fcFail}

	in := SubmitInput{
		CatalogItemID: 7, Provider: "stockx", Kind: ops.KindCreate,
		VariantID: 3, Amount: decimal.NewFromInt(150), Currency: "USD",
	}
	_, err := s.Submit(context.Background(), in)
	require.Error(t, err)

	// the failed attempt must not block a retry
	s.Providers = map[string]provider.Client{"stockx": fc}
	_, err = s.Submit(context.Background(), in)
	require.NoError(t, err)
}

type failingSubmit struct {
	*fakeClient
	err error
}

func (f *failingSubmit) SubmitMutation(context.Context, provider.MutationRequest) (provider.MutationReceipt, error) {
	return provider.MutationReceipt{}, f.err
}

package syncuc

import (
	"context"
	"fmt"

	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/catalog"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/provider"
	"github.com/TheDarkKnight1989/archvd-sub000/internal/pkg/sizes"
)

// Resolver turns provider quotes into variant rows. It is the one place
// that filters out sizes a provider reports but the item does not carry,
// and quotes with no live market.
type Resolver struct {
	Variants catalog.VariantRepo
}

type ResolveInput struct {
	Item        catalog.Item
	Provider    string
	Region      catalog.Region
	Condition   catalog.Condition
	Consignment bool
	Quotes      []provider.VariantQuote
	// Existing variants for the item/provider; used to match instead of
	// create when CreateMissing is false (refresh passes).
	Existing      []catalog.Variant
	CreateMissing bool
}

type Match struct {
	Variant catalog.Variant
	Quote   provider.VariantQuote
}

func (r *Resolver) Resolve(ctx context.Context, in ResolveInput) ([]Match, error) {
	allowed := sizes.Set(in.Item.AllowedSizes)

	byKey := make(map[string]catalog.Variant, len(in.Existing))
	for _, v := range in.Existing {
		if v.Region != in.Region || v.Condition != in.Condition || v.Consignment != in.Consignment {
			continue
		}
		byKey[v.Size] = v
	}

	out := make([]Match, 0, len(in.Quotes))
	for _, q := range in.Quotes {
		size := sizes.Normalize(q.Size)
		if size == "" || !sizes.Allowed(allowed, size) {
			// legacy/invalid size entries must never become variants
			continue
		}
		if !q.Actionable() {
			// no ask, bid or last sale: no live market, no snapshot row
			continue
		}

		if v, ok := byKey[size]; ok {
			if v.ProviderVariantID == nil && q.ProviderVariantID != "" {
				id := q.ProviderVariantID
				v.Provider = in.Provider
				v.ProviderVariantID = &id
				ensured, err := r.Variants.EnsureVariant(ctx, v)
				if err != nil {
					return nil, fmt.Errorf("attach variant id: %w", err)
				}
				v = ensured
			}
			out = append(out, Match{Variant: v, Quote: q})
			continue
		}
		if !in.CreateMissing {
			continue
		}

		v := catalog.Variant{
			CatalogItemID: in.Item.ID,
			Size:          size,
			SizeUnit:      q.SizeUnit,
			Condition:     in.Condition,
			Region:        in.Region,
			Consignment:   in.Consignment,
			Provider:      in.Provider,
		}
		if q.ProviderVariantID != "" {
			id := q.ProviderVariantID
			v.ProviderVariantID = &id
		}
		ensured, err := r.Variants.EnsureVariant(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("ensure variant: %w", err)
		}
		out = append(out, Match{Variant: ensured, Quote: q})
	}
	return out, nil
}

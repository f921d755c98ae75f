package evaluation

import (
	promotiondomain "github.com/vendora/promokit/internal/promotion/domain"
)

// ResolveTier selects the client range covering the matched quantity of
// the primary application product. Validated ranges never overlap, so at
// most one can match; nil means the quantity fell below the lowest range.
func ResolveTier(promo *promotiondomain.Promotion, matchedQuantity int64) *promotiondomain.ClientRange {
	if promo == nil {
		return nil
	}
	for i := range promo.ClientRanges {
		r := &promo.ClientRanges[i]
		if matchedQuantity < r.MinQuantity {
			continue
		}
		if r.MaxQuantity != nil && matchedQuantity > *r.MaxQuantity {
			continue
		}
		return r
	}
	return nil
}

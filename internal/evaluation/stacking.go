package evaluation

import (
	ledgerdomain "github.com/vendora/promokit/internal/ledger/domain"
)

// resolveStack decides which limit-cleared candidates may share the order.
// If any candidate is non-stackable, exactly one promotion survives: the
// greatest reward amount wins, ties break on the lowest promotion id so
// resolution stays deterministic. When every candidate is stackable they
// all apply; each reward was computed on original prices, so the outcome
// does not depend on application order.
func resolveStack(candidates []candidate) (accepted []candidate, rejected []Rejection) {
	if len(candidates) == 0 {
		return nil, nil
	}

	exclusive := false
	for _, cand := range candidates {
		if !cand.promo.IsStackable {
			exclusive = true
			break
		}
	}
	if !exclusive {
		return candidates, nil
	}

	winner := 0
	for i := 1; i < len(candidates); i++ {
		current := candidates[i]
		best := candidates[winner]
		switch {
		case current.reward.Amount.GreaterThan(best.reward.Amount):
			winner = i
		case current.reward.Amount.Equal(best.reward.Amount) && current.promo.ID < best.promo.ID:
			winner = i
		}
	}

	for i, cand := range candidates {
		if i == winner {
			continue
		}
		rejected = append(rejected, Rejection{
			PromotionID: cand.promo.ID,
			Reason:      ledgerdomain.ReasonNonStackable,
			Message:     ledgerdomain.ReasonNonStackable.Message(),
		})
	}
	return candidates[winner : winner+1], rejected
}

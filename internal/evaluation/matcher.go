package evaluation

import (
	"time"

	"github.com/bwmarrin/snowflake"
	promotiondomain "github.com/vendora/promokit/internal/promotion/domain"
)

// IsCandidate reports whether a promotion is worth matching at all:
// Active status, inside its inclusive date window, and not excluded by the
// zone or category allow-lists. Filtered promotions are non-candidates,
// not failed matches.
func IsCandidate(promo *promotiondomain.Promotion, zone string, categories []string, now time.Time) bool {
	if promo == nil || promo.Status != promotiondomain.PromotionStatusActive {
		return false
	}
	if !promo.Limits.InWindow(now) {
		return false
	}
	if !promo.Limits.AllowsZone(zone) {
		return false
	}
	return promo.Limits.AllowsAnyCategory(categories)
}

// Match checks the order against every application product of the
// promotion. The promotion matches only when each application product's
// ordered quantity reaches its minimum; the requirement is a bundle, not
// an alternative list.
func Match(order Order, promo *promotiondomain.Promotion) (MatchResult, bool) {
	if promo == nil || len(promo.ApplicationProducts) == 0 {
		return MatchResult{}, false
	}

	quantities := make(map[snowflake.ID]int64, len(promo.ApplicationProducts))
	for _, ap := range promo.ApplicationProducts {
		qty := order.QuantityOf(ap.ProductID)
		if qty < ap.MinimumQuantity {
			return MatchResult{}, false
		}
		quantities[ap.ProductID] = qty
	}

	result := MatchResult{Quantities: quantities}
	if primary := promo.PrimaryApplicationProduct(); primary != nil {
		result.PrimaryQuantity = quantities[primary.ProductID]
	}
	return result, true
}

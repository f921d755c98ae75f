package evaluation

import (
	"github.com/shopspring/decimal"
	promotiondomain "github.com/vendora/promokit/internal/promotion/domain"
)

var hundred = decimal.NewFromInt(100)

// ComputeReward computes the reward for one product position. Monetary
// math stays in fixed-point decimals; rounding to 2 decimals (half-up)
// happens once on the total, not per unit, so repeated units cannot drift.
func ComputeReward(method promotiondomain.RewardMethod, value, unitPrice decimal.Decimal, quantity int64, maxQuantity *int64) Reward {
	if quantity <= 0 {
		return Reward{Amount: decimal.Zero}
	}

	rewarded := quantity
	if maxQuantity != nil && *maxQuantity < rewarded {
		rewarded = *maxQuantity
	}
	if rewarded <= 0 {
		return Reward{Amount: decimal.Zero}
	}
	units := decimal.NewFromInt(rewarded)

	var amount decimal.Decimal
	var pieces int64
	switch method {
	case promotiondomain.RewardMethodFree:
		pieces = rewarded
		amount = unitPrice.Mul(units)
	case promotiondomain.RewardMethodPercentage:
		amount = unitPrice.Mul(units).Mul(value).Div(hundred)
	case promotiondomain.RewardMethodFixed:
		perUnit := value
		if perUnit.GreaterThan(unitPrice) {
			perUnit = unitPrice
		}
		amount = perUnit.Mul(units)
	default:
		return Reward{Amount: decimal.Zero}
	}

	amount = amount.Round(2)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return Reward{Amount: amount, Pieces: pieces}
}

// computePromotionReward computes the full reward of one matched
// promotion. With a resolved tier, the tier's method and value apply to
// the promotion's reward products (falling back to the primary
// application product when none are declared). Without client ranges, the
// flat reward products apply with their own methods. Rewards always
// compute on original prices, never on already-discounted ones.
func computePromotionReward(order Order, promo *promotiondomain.Promotion, tier *promotiondomain.ClientRange, match MatchResult) Reward {
	if tier != nil {
		return computeTierReward(order, promo, tier, match)
	}
	if len(promo.ClientRanges) > 0 {
		// Quantity below the lowest range: no tiered reward, and flat
		// reward products only exist when no ranges are defined.
		return Reward{Amount: decimal.Zero}
	}

	total := Reward{Amount: decimal.Zero}
	for _, rp := range promo.RewardProducts {
		qty := order.QuantityOf(rp.ProductID)
		reward := ComputeReward(rp.DiscountMethod, rp.DiscountValue, order.UnitPriceOf(rp.ProductID), qty, rp.MaxQuantity)
		total.Amount = total.Amount.Add(reward.Amount)
		total.Pieces += reward.Pieces
	}
	return total
}

func computeTierReward(order Order, promo *promotiondomain.Promotion, tier *promotiondomain.ClientRange, match MatchResult) Reward {
	if len(promo.RewardProducts) == 0 {
		primary := promo.PrimaryApplicationProduct()
		if primary == nil {
			return Reward{Amount: decimal.Zero}
		}
		return ComputeReward(tier.RewardMethod, tier.RewardValue, order.UnitPriceOf(primary.ProductID), match.PrimaryQuantity, nil)
	}

	total := Reward{Amount: decimal.Zero}
	for _, rp := range promo.RewardProducts {
		qty := order.QuantityOf(rp.ProductID)
		reward := ComputeReward(tier.RewardMethod, tier.RewardValue, order.UnitPriceOf(rp.ProductID), qty, rp.MaxQuantity)
		total.Amount = total.Amount.Add(reward.Amount)
		total.Pieces += reward.Pieces
	}
	return total
}

package domain

import (
	"time"

	promotiondomain "github.com/vendora/promokit/internal/promotion/domain"
)

// limitCheck is one predicate in the enforcement pipeline. Order matters:
// the first failing check supplies the user-facing denial reason.
type limitCheck struct {
	reason LimitReason
	failed func(limits promotiondomain.PromotionLimits, snap Snapshot, delta Delta, now time.Time) bool
}

var limitPipeline = []limitCheck{
	{
		reason: ReasonDateWindow,
		failed: func(limits promotiondomain.PromotionLimits, _ Snapshot, _ Delta, now time.Time) bool {
			return !limits.InWindow(now)
		},
	},
	{
		reason: ReasonMaxUsagePerClient,
		failed: func(limits promotiondomain.PromotionLimits, snap Snapshot, delta Delta, _ time.Time) bool {
			return limits.MaxUsagePerClient != nil && snap.Client.TotalUsed+delta.Uses > *limits.MaxUsagePerClient
		},
	},
	{
		reason: ReasonMaxTotalUsage,
		failed: func(limits promotiondomain.PromotionLimits, snap Snapshot, delta Delta, _ time.Time) bool {
			return limits.MaxTotalUsage != nil && snap.Global.TotalUsed+delta.Uses > *limits.MaxTotalUsage
		},
	},
	{
		reason: ReasonMaxBudget,
		failed: func(limits promotiondomain.PromotionLimits, snap Snapshot, delta Delta, _ time.Time) bool {
			return limits.MaxBudget != nil && snap.Global.BudgetUsed.Add(delta.Amount).GreaterThan(*limits.MaxBudget)
		},
	},
	{
		reason: ReasonMaxRewardPieces,
		failed: func(limits promotiondomain.PromotionLimits, snap Snapshot, delta Delta, _ time.Time) bool {
			return limits.MaxRewardPieces != nil && snap.Global.RewardPiecesUsed+delta.Pieces > *limits.MaxRewardPieces
		},
	},
}

// EnforceLimits runs the ordered limit pipeline against a counter snapshot
// and returns nil when every check passes. Both the advisory filter in the
// evaluation engine and the serialized commit inside ledger stores run this
// same pipeline, so denial reasons stay deterministic.
func EnforceLimits(limits promotiondomain.PromotionLimits, snap Snapshot, delta Delta, now time.Time) *LimitDeniedError {
	for _, check := range limitPipeline {
		if check.failed(limits, snap, delta, now) {
			return &LimitDeniedError{Reason: check.reason}
		}
	}
	return nil
}

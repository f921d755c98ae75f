package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	promotiondomain "github.com/vendora/promokit/internal/promotion/domain"
)

var (
	// ErrCommitFailed signals that the atomic check-and-commit could not
	// complete. No counter was mutated; the caller retries the whole
	// order evaluation.
	ErrCommitFailed = errors.New("ledger_commit_failed")
	ErrInvalidDelta = errors.New("invalid_ledger_delta")
)

// LimitReason identifies which limit check denied an application, in the
// fixed evaluation order.
type LimitReason string

const (
	ReasonDateWindow        LimitReason = "date_window"
	ReasonMaxUsagePerClient LimitReason = "max_usage_per_client"
	ReasonMaxTotalUsage     LimitReason = "max_total_usage"
	ReasonMaxBudget         LimitReason = "max_budget"
	ReasonMaxRewardPieces   LimitReason = "max_reward_pieces"
	ReasonNonStackable      LimitReason = "non_stackable_lower_reward"
)

var reasonMessages = map[LimitReason]string{
	ReasonDateWindow:        "promotion not active on the order date",
	ReasonMaxUsagePerClient: "per-client usage limit reached",
	ReasonMaxTotalUsage:     "total usage limit reached",
	ReasonMaxBudget:         "budget exhausted",
	ReasonMaxRewardPieces:   "reward piece limit reached",
	ReasonNonStackable:      "non-stackable, lower reward",
}

// Message returns the user-facing explanation for a denial reason.
func (r LimitReason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return string(r)
}

// LimitDeniedError reports the first limit check that failed.
type LimitDeniedError struct {
	Reason LimitReason
}

func (e *LimitDeniedError) Error() string {
	return fmt.Sprintf("limit_denied: %s", e.Reason)
}

// AsLimitDenied unwraps a limit denial from an error chain.
func AsLimitDenied(err error) (*LimitDeniedError, bool) {
	var denied *LimitDeniedError
	if errors.As(err, &denied) {
		return denied, true
	}
	return nil, false
}

// Store is the usage ledger. TryApply is one indivisible operation: it
// re-checks every counter limit against the promotion definition and
// commits the delta, or mutates nothing.
type Store interface {
	TryApply(ctx context.Context, promo *promotiondomain.Promotion, clientID snowflake.ID, delta Delta) error
	// Reverse subtracts exactly what a prior apply added. It ignores
	// limits and promotion status; cancellation arithmetic stays valid
	// after a promotion finishes.
	Reverse(ctx context.Context, tenantID, promotionID, clientID snowflake.ID, delta Delta) error
	// Snapshot reads current counters without locking; evaluation uses
	// it for advisory filtering and reporting.
	Snapshot(ctx context.Context, tenantID, promotionID, clientID snowflake.ID) (Snapshot, error)
}

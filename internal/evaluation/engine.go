package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/vendora/promokit/internal/clock"
	ledgerdomain "github.com/vendora/promokit/internal/ledger/domain"
	"github.com/vendora/promokit/internal/observability/logger"
	"github.com/vendora/promokit/internal/observability/metrics"
	promotiondomain "github.com/vendora/promokit/internal/promotion/domain"
)

var (
	ErrInvalidOrder = errors.New("invalid_order")
)

// Engine evaluates orders against the active promotion catalog. It is
// purely advisory until the commit step: only a successful TryApply on the
// ledger moves any counter, and a commit failure rolls back every delta
// the same order already applied.
type Engine struct {
	catalog  promotiondomain.Catalog
	ledger   ledgerdomain.Store
	clients  ClientDirectory
	products ProductDirectory
	clock    clock.Clock
	log      *zap.Logger
	metrics  *metrics.EvaluationMetrics
}

type EngineParam struct {
	fx.In

	Catalog  promotiondomain.Catalog
	Ledger   ledgerdomain.Store
	Clients  ClientDirectory
	Products ProductDirectory
	Clock    clock.Clock
	Log      *zap.Logger
	Metrics  *metrics.EvaluationMetrics
}

func NewEngine(p EngineParam) *Engine {
	return &Engine{
		catalog:  p.Catalog,
		ledger:   p.Ledger,
		clients:  p.Clients,
		products: p.Products,
		clock:    p.Clock,
		log:      p.Log.Named("evaluation.engine"),
		metrics:  p.Metrics,
	}
}

// EvaluateOrder runs the full pipeline for one order: candidate filtering,
// product matching, tier resolution, reward computation, advisory limit
// checks, stacking resolution, then an atomic ledger commit per surviving
// promotion. Promotions that do not match stay silent; matched promotions
// denied by a limit or by stacking surface in Result.Rejected.
func (e *Engine) EvaluateOrder(ctx context.Context, order Order) (*Result, error) {
	started := time.Now()
	result, err := e.evaluate(ctx, order, true)
	switch {
	case err != nil:
		e.metrics.ObserveEvaluation("error", time.Since(started))
	case len(result.Applied) == 0:
		e.metrics.ObserveEvaluation("empty", time.Since(started))
	default:
		e.metrics.ObserveEvaluation("applied", time.Since(started))
	}
	return result, err
}

// Preview evaluates the order without committing anything to the ledger.
// Dashboards use it to show a cart's prospective rewards; the counters it
// reads are advisory and may be stale by the time the order is placed.
func (e *Engine) Preview(ctx context.Context, order Order) (*Result, error) {
	return e.evaluate(ctx, order, false)
}

// ReverseOrder undoes the ledger effect of a previously evaluated order,
// subtracting exactly the deltas its applied promotions committed. It is
// idempotent only at the caller level: pass each applied promotion once.
func (e *Engine) ReverseOrder(ctx context.Context, tenantID, clientID snowflake.ID, applied []AppliedPromotion) error {
	log := logger.FromContext(ctx).Named("evaluation.engine")
	for _, app := range applied {
		if err := e.ledger.Reverse(ctx, tenantID, app.PromotionID, clientID, app.Delta); err != nil {
			log.Error("ledger reversal failed",
				zap.Int64("promotion_id", int64(app.PromotionID)),
				zap.Error(err),
			)
			return fmt.Errorf("reverse promotion %s: %w", app.PromotionID, err)
		}
		e.metrics.IncLedgerCommit("reversed")
	}
	return nil
}

func (e *Engine) evaluate(ctx context.Context, order Order, commit bool) (*Result, error) {
	if order.TenantID == 0 || order.ClientID == 0 || len(order.Lines) == 0 {
		return nil, ErrInvalidOrder
	}
	for _, line := range order.Lines {
		if line.Quantity <= 0 || line.UnitPrice.IsNegative() {
			return nil, ErrInvalidOrder
		}
	}

	now := order.PlacedAt
	if now.IsZero() {
		now = e.clock.Now()
	}

	log := logger.FromContext(ctx).Named("evaluation.engine")

	promos, err := e.catalog.ListActive(ctx, order.TenantID)
	if err != nil {
		return nil, fmt.Errorf("list active promotions: %w", err)
	}

	zone, err := e.clients.GetClientZone(ctx, order.TenantID, order.ClientID)
	if err != nil {
		return nil, fmt.Errorf("resolve client zone: %w", err)
	}
	categories, err := e.orderCategories(ctx, order)
	if err != nil {
		return nil, err
	}

	result := &Result{TotalSavings: decimal.Zero}
	var candidates []candidate

	for i := range promos {
		promo := &promos[i]
		if !IsCandidate(promo, zone, categories, now) {
			continue
		}
		match, ok := Match(order, promo)
		if !ok {
			continue
		}

		tier := ResolveTier(promo, match.PrimaryQuantity)
		reward := computePromotionReward(order, promo, tier, match)
		if reward.Amount.IsZero() && reward.Pieces == 0 {
			// Matched but nothing to grant, e.g. quantity below the
			// lowest client range. Not a rejection.
			continue
		}

		cand := candidate{
			promo:  promo,
			match:  match,
			tier:   tier,
			reward: reward,
			delta: ledgerdomain.Delta{
				Uses:    1,
				Amount:  reward.Amount,
				Savings: reward.Amount,
				Pieces:  reward.Pieces,
			},
		}

		snap, err := e.ledger.Snapshot(ctx, order.TenantID, promo.ID, order.ClientID)
		if err != nil {
			return nil, fmt.Errorf("read usage snapshot: %w", err)
		}
		if denied := ledgerdomain.EnforceLimits(promo.Limits, snap, cand.delta, now); denied != nil {
			result.Rejected = append(result.Rejected, Rejection{
				PromotionID: promo.ID,
				Reason:      denied.Reason,
				Message:     denied.Reason.Message(),
			})
			e.metrics.IncRejected(string(denied.Reason))
			continue
		}
		candidates = append(candidates, cand)
	}

	accepted, stackRejected := resolveStack(candidates)
	for _, rej := range stackRejected {
		result.Rejected = append(result.Rejected, rej)
		e.metrics.IncRejected(string(rej.Reason))
	}

	for _, cand := range accepted {
		if commit {
			if err := e.commit(ctx, order, cand, result); err != nil {
				return nil, err
			}
			continue
		}
		result.Applied = append(result.Applied, appliedFrom(cand))
	}

	for _, app := range result.Applied {
		result.TotalSavings = result.TotalSavings.Add(app.Reward.Amount)
	}
	if commit && len(result.Applied) > 0 {
		log.Info("order evaluated",
			zap.Int64("order_id", int64(order.ID)),
			zap.Int("applied", len(result.Applied)),
			zap.Int("rejected", len(result.Rejected)),
			zap.String("total_savings", result.TotalSavings.StringFixed(2)),
		)
	}
	return result, nil
}

// commit applies one accepted candidate to the ledger. A denial here means
// a concurrent order consumed the remaining headroom between the advisory
// check and the commit; the candidate demotes to a rejection. Any other
// failure reverses what this order already applied so the ledger never
// reflects a partial evaluation.
func (e *Engine) commit(ctx context.Context, order Order, cand candidate, result *Result) error {
	err := e.ledger.TryApply(ctx, cand.promo, order.ClientID, cand.delta)
	if err == nil {
		result.Applied = append(result.Applied, appliedFrom(cand))
		e.metrics.IncLedgerCommit("applied")
		e.metrics.IncApplied(string(cand.promo.Type))
		return nil
	}

	if denied, ok := ledgerdomain.AsLimitDenied(err); ok {
		result.Rejected = append(result.Rejected, Rejection{
			PromotionID: cand.promo.ID,
			Reason:      denied.Reason,
			Message:     denied.Reason.Message(),
		})
		e.metrics.IncLedgerCommit("denied")
		e.metrics.IncRejected(string(denied.Reason))
		return nil
	}

	e.metrics.IncLedgerCommit("failed")
	if rerr := e.ReverseOrder(ctx, order.TenantID, order.ClientID, result.Applied); rerr != nil {
		logger.FromContext(ctx).Named("evaluation.engine").Error("compensating reversal failed",
			zap.Int64("order_id", int64(order.ID)),
			zap.Error(rerr),
		)
	}
	return fmt.Errorf("commit promotion %s: %w", cand.promo.ID, ledgerdomain.ErrCommitFailed)
}

// orderCategories resolves the distinct category set of the ordered
// products for the category allow-list check.
func (e *Engine) orderCategories(ctx context.Context, order Order) ([]string, error) {
	seenProducts := make(map[snowflake.ID]struct{}, len(order.Lines))
	seenCategories := make(map[string]struct{})
	var categories []string
	for _, line := range order.Lines {
		if _, ok := seenProducts[line.ProductID]; ok {
			continue
		}
		seenProducts[line.ProductID] = struct{}{}

		category, err := e.products.GetProductCategory(ctx, order.TenantID, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("resolve product category: %w", err)
		}
		if category == "" {
			continue
		}
		if _, ok := seenCategories[category]; ok {
			continue
		}
		seenCategories[category] = struct{}{}
		categories = append(categories, category)
	}
	return categories, nil
}

func appliedFrom(cand candidate) AppliedPromotion {
	app := AppliedPromotion{
		PromotionID: cand.promo.ID,
		Name:        cand.promo.Name,
		Type:        cand.promo.Type,
		Reward:      cand.reward,
		Delta:       cand.delta,
	}
	if cand.tier != nil {
		tierID := cand.tier.ID
		app.TierID = &tierID
	}
	return app
}

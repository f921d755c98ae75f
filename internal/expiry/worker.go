package expiry

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vendora/promokit/internal/clock"
	"github.com/vendora/promokit/internal/events"
	"github.com/vendora/promokit/internal/observability/metrics"
	promotiondomain "github.com/vendora/promokit/internal/promotion/domain"
)

// Causes reported in the promotion.finished event.
const (
	CauseEndDate       = "end_date"
	CauseMaxTotalUsage = "max_total_usage"
	CauseMaxBudget     = "max_budget"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Metrics *metrics.EvaluationMetrics `optional:"true"`
	Outbox  *events.Outbox             `optional:"true"`
	Config  Config                     `optional:"true"`
}

// Worker moves Active promotions to Finished once their end date has
// passed or their total usage or budget is exhausted. Finished is
// system-set and terminal; a status toggle can never revive it.
type Worker struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	metrics *metrics.EvaluationMetrics
	outbox  *events.Outbox
	cfg     Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		db:      p.DB,
		log:     p.Log.Named("expiry.worker"),
		clock:   p.Clock,
		metrics: p.Metrics,
		outbox:  p.Outbox,
		cfg:     p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("expiry run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) RunOnce(ctx context.Context) error {
	_, err := w.ProcessBatch(ctx, w.cfg.BatchSize)
	return err
}

type expiryCandidate struct {
	ID       snowflake.ID `gorm:"column:id"`
	TenantID snowflake.ID `gorm:"column:tenant_id"`
	Cause    string       `gorm:"column:cause"`
}

// ProcessBatch finishes up to limit exhausted promotions and returns how
// many it flipped. Each flip is guarded on the Active status so a
// concurrent worker or an operator pause cannot be overwritten.
func (w *Worker) ProcessBatch(ctx context.Context, limit int) (int, error) {
	if w.db == nil {
		return 0, errors.New("expiry_worker_unavailable")
	}
	if limit <= 0 {
		limit = w.cfg.BatchSize
	}

	now := w.clock.Now()
	finished := 0
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidates, err := w.lockCandidates(ctx, tx, now, limit)
		if err != nil {
			return err
		}

		for _, cand := range candidates {
			res := tx.WithContext(ctx).Exec(
				`UPDATE promotions
				 SET status = ?, updated_at = ?
				 WHERE id = ? AND status = ?`,
				promotiondomain.PromotionStatusFinished, now,
				cand.ID, promotiondomain.PromotionStatusActive,
			)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue
			}

			if w.outbox != nil {
				payload := events.FinishedPayload{
					PromotionID: cand.ID.String(),
					Cause:       cand.Cause,
				}
				if err := w.outbox.PublishTx(ctx, tx, events.Event{
					TenantID:  cand.TenantID,
					Type:      events.EventPromotionFinished,
					Payload:   payload.ToMap(),
					DedupeKey: "finished:" + cand.ID.String(),
				}); err != nil {
					return err
				}
			}

			w.log.Info("promotion finished",
				zap.String("promotion_id", cand.ID.String()),
				zap.String("cause", cand.Cause),
			)
			finished++
		}
		return nil
	})
	if err != nil {
		return finished, err
	}

	for i := 0; i < finished; i++ {
		w.metrics.IncFinished()
	}
	return finished, nil
}

func (w *Worker) lockCandidates(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]expiryCandidate, error) {
	lock := ""
	if tx.Dialector.Name() == "postgres" {
		lock = "FOR UPDATE OF p SKIP LOCKED"
	}

	var candidates []expiryCandidate
	err := tx.WithContext(ctx).Raw(
		`SELECT p.id, p.tenant_id,
		        CASE
		          WHEN p.end_date IS NOT NULL AND p.end_date < ? THEN 'end_date'
		          WHEN p.max_total_usage IS NOT NULL AND u.total_used >= p.max_total_usage THEN 'max_total_usage'
		          ELSE 'max_budget'
		        END AS cause
		 FROM promotions p
		 LEFT JOIN promotion_usage u ON u.promotion_id = p.id AND u.client_id = 0
		 WHERE p.status = ?
		   AND (
		     (p.end_date IS NOT NULL AND p.end_date < ?)
		     OR (p.max_total_usage IS NOT NULL AND u.total_used >= p.max_total_usage)
		     OR (p.max_budget IS NOT NULL AND u.budget_used >= p.max_budget)
		   )
		 ORDER BY p.id
		 LIMIT ? `+lock,
		now,
		promotiondomain.PromotionStatusActive,
		now,
		limit,
	).Scan(&candidates).Error
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

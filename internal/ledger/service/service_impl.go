package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vendora/promokit/internal/events"
	ledgerdomain "github.com/vendora/promokit/internal/ledger/domain"
	promotiondomain "github.com/vendora/promokit/internal/promotion/domain"
)

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Outbox *events.Outbox `optional:"true"`
}

// Service is the durable usage ledger. Every commit runs as one database
// transaction with the limit conditions repeated in the UPDATE guards, so
// two concurrent orders can never both consume the last unit of headroom:
// one of the guarded updates matches zero rows and the whole commit rolls
// back untouched.
type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	outbox *events.Outbox
}

func NewService(p ServiceParam) ledgerdomain.Store {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("ledger.service"),
		genID:  p.GenID,
		outbox: p.Outbox,
	}
}

func (s *Service) TryApply(ctx context.Context, promo *promotiondomain.Promotion, clientID snowflake.ID, delta ledgerdomain.Delta) error {
	if promo == nil || promo.TenantID == 0 || clientID == 0 {
		return ledgerdomain.ErrInvalidDelta
	}
	if delta.Uses <= 0 || delta.Amount.IsNegative() || delta.Pieces < 0 {
		return ledgerdomain.ErrInvalidDelta
	}

	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureRows(ctx, tx, promo.TenantID, promo.ID, clientID, now); err != nil {
			return err
		}

		snap, err := readSnapshot(ctx, tx, promo.TenantID, promo.ID, clientID)
		if err != nil {
			return err
		}
		if denied := ledgerdomain.EnforceLimits(promo.Limits, snap, delta, now); denied != nil {
			return denied
		}

		if err := s.applyClientRow(ctx, tx, promo, clientID, delta, now); err != nil {
			return err
		}
		if err := s.applyGlobalRow(ctx, tx, promo, delta, now); err != nil {
			return err
		}

		if s.outbox != nil {
			payload := events.ApplicationPayload{
				PromotionID: promo.ID.String(),
				ClientID:    clientID.String(),
				Amount:      delta.Amount.StringFixed(2),
				Pieces:      delta.Pieces,
			}
			if err := s.outbox.PublishTx(ctx, tx, events.Event{
				TenantID: promo.TenantID,
				Type:     events.EventPromotionApplied,
				Payload:  payload.ToMap(),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// applyClientRow commits the per-client counters. The per-client cap is
// re-checked in the WHERE clause; a concurrent commit that took the last
// allowance makes this update match nothing.
func (s *Service) applyClientRow(ctx context.Context, tx *gorm.DB, promo *promotiondomain.Promotion, clientID snowflake.ID, delta ledgerdomain.Delta, now time.Time) error {
	query := `UPDATE promotion_usage
		 SET total_used = total_used + ?,
		     total_savings = total_savings + ?,
		     budget_used = budget_used + ?,
		     reward_pieces_used = reward_pieces_used + ?,
		     last_used_at = ?,
		     updated_at = ?
		 WHERE tenant_id = ? AND promotion_id = ? AND client_id = ?`
	args := []any{
		delta.Uses, delta.Savings, delta.Amount, delta.Pieces, now, now,
		promo.TenantID, promo.ID, clientID,
	}
	if promo.Limits.MaxUsagePerClient != nil {
		query += ` AND total_used + ? <= ?`
		args = append(args, delta.Uses, *promo.Limits.MaxUsagePerClient)
	}

	res := tx.WithContext(ctx).Exec(query, args...)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.denialFor(ctx, tx, promo, clientID, delta, now)
	}
	return nil
}

// applyGlobalRow commits the aggregate counters with the shared limits in
// the update guard.
func (s *Service) applyGlobalRow(ctx context.Context, tx *gorm.DB, promo *promotiondomain.Promotion, delta ledgerdomain.Delta, now time.Time) error {
	query := `UPDATE promotion_usage
		 SET total_used = total_used + ?,
		     total_savings = total_savings + ?,
		     budget_used = budget_used + ?,
		     reward_pieces_used = reward_pieces_used + ?,
		     last_used_at = ?,
		     updated_at = ?
		 WHERE tenant_id = ? AND promotion_id = ? AND client_id = 0`
	args := []any{
		delta.Uses, delta.Savings, delta.Amount, delta.Pieces, now, now,
		promo.TenantID, promo.ID,
	}
	if promo.Limits.MaxTotalUsage != nil {
		query += ` AND total_used + ? <= ?`
		args = append(args, delta.Uses, *promo.Limits.MaxTotalUsage)
	}
	if promo.Limits.MaxBudget != nil {
		query += ` AND budget_used + ? <= ?`
		args = append(args, delta.Amount, *promo.Limits.MaxBudget)
	}
	if promo.Limits.MaxRewardPieces != nil {
		query += ` AND reward_pieces_used + ? <= ?`
		args = append(args, delta.Pieces, *promo.Limits.MaxRewardPieces)
	}

	res := tx.WithContext(ctx).Exec(query, args...)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.denialFor(ctx, tx, promo, 0, delta, now)
	}
	return nil
}

// denialFor re-reads the counters after a guard rejected the update and
// runs the ordered limit pipeline so the caller gets the same first-fail
// reason the advisory path would report.
func (s *Service) denialFor(ctx context.Context, tx *gorm.DB, promo *promotiondomain.Promotion, clientID snowflake.ID, delta ledgerdomain.Delta, now time.Time) error {
	snap, err := readSnapshot(ctx, tx, promo.TenantID, promo.ID, clientID)
	if err != nil {
		return err
	}
	if denied := ledgerdomain.EnforceLimits(promo.Limits, snap, delta, now); denied != nil {
		return denied
	}
	return ledgerdomain.ErrCommitFailed
}

func (s *Service) Reverse(ctx context.Context, tenantID, promotionID, clientID snowflake.ID, delta ledgerdomain.Delta) error {
	if tenantID == 0 || promotionID == 0 || clientID == 0 {
		return ledgerdomain.ErrInvalidDelta
	}

	now := time.Now().UTC()
	neg := delta.Negate()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, scope := range []snowflake.ID{clientID, 0} {
			res := tx.WithContext(ctx).Exec(
				`UPDATE promotion_usage
				 SET total_used = total_used + ?,
				     total_savings = total_savings + ?,
				     budget_used = budget_used + ?,
				     reward_pieces_used = reward_pieces_used + ?,
				     updated_at = ?
				 WHERE tenant_id = ? AND promotion_id = ? AND client_id = ?`,
				neg.Uses, neg.Savings, neg.Amount, neg.Pieces, now,
				tenantID, promotionID, scope,
			)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("reverse without prior apply: %w", ledgerdomain.ErrCommitFailed)
			}
		}

		if s.outbox != nil {
			payload := events.ApplicationPayload{
				PromotionID: promotionID.String(),
				ClientID:    clientID.String(),
				Amount:      delta.Amount.StringFixed(2),
				Pieces:      delta.Pieces,
			}
			if err := s.outbox.PublishTx(ctx, tx, events.Event{
				TenantID: tenantID,
				Type:     events.EventPromotionReversed,
				Payload:  payload.ToMap(),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) Snapshot(ctx context.Context, tenantID, promotionID, clientID snowflake.ID) (ledgerdomain.Snapshot, error) {
	return readSnapshot(ctx, s.db, tenantID, promotionID, clientID)
}

// ensureRows inserts the aggregate and per-client counter rows if they do
// not exist yet. The upsert is a no-op on conflict so concurrent first
// applications of the same promotion cannot fail on the unique index.
func (s *Service) ensureRows(ctx context.Context, tx *gorm.DB, tenantID, promotionID, clientID snowflake.ID, now time.Time) error {
	for _, scope := range []snowflake.ID{0, clientID} {
		err := tx.WithContext(ctx).Exec(
			`INSERT INTO promotion_usage (id, tenant_id, promotion_id, client_id, total_used, total_savings, budget_used, reward_pieces_used, created_at, updated_at)
			 VALUES (?, ?, ?, ?, 0, 0, 0, 0, ?, ?)
			 ON CONFLICT (promotion_id, client_id) DO NOTHING`,
			s.genID.Generate(), tenantID, promotionID, scope, now, now,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func readSnapshot(ctx context.Context, db *gorm.DB, tenantID, promotionID, clientID snowflake.ID) (ledgerdomain.Snapshot, error) {
	var rows []ledgerdomain.UsageLedgerEntry
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM promotion_usage
		 WHERE tenant_id = ? AND promotion_id = ? AND client_id IN (0, ?)`,
		tenantID, promotionID, clientID,
	).Scan(&rows).Error
	if err != nil {
		return ledgerdomain.Snapshot{}, err
	}

	snap := ledgerdomain.Snapshot{}
	for _, row := range rows {
		if row.ClientID == 0 {
			snap.Global = row
		} else {
			snap.Client = row
		}
	}
	return snap, nil
}

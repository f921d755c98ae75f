// Package memory provides a mutex-guarded in-process usage ledger. It
// backs tests and embedded deployments that run without postgres; the
// limit semantics are identical to the database-backed store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"

	ledgerdomain "github.com/vendora/promokit/internal/ledger/domain"
	promotiondomain "github.com/vendora/promokit/internal/promotion/domain"
)

type scopeKey struct {
	tenantID    snowflake.ID
	promotionID snowflake.ID
	clientID    snowflake.ID
}

// Store keeps counters under a single mutex, so every TryApply observes
// the counters left by the previous one. That is the whole atomicity
// argument: check and commit happen inside one critical section.
type Store struct {
	mu      sync.Mutex
	entries map[scopeKey]*ledgerdomain.UsageLedgerEntry
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		entries: make(map[scopeKey]*ledgerdomain.UsageLedgerEntry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the commit timestamp source, for tests.
func (s *Store) WithNow(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) TryApply(_ context.Context, promo *promotiondomain.Promotion, clientID snowflake.ID, delta ledgerdomain.Delta) error {
	if promo == nil || promo.TenantID == 0 || clientID == 0 {
		return ledgerdomain.ErrInvalidDelta
	}
	if delta.Uses <= 0 || delta.Amount.IsNegative() || delta.Pieces < 0 {
		return ledgerdomain.ErrInvalidDelta
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	snap := ledgerdomain.Snapshot{
		Global: *s.entry(promo.TenantID, promo.ID, 0),
		Client: *s.entry(promo.TenantID, promo.ID, clientID),
	}
	if denied := ledgerdomain.EnforceLimits(promo.Limits, snap, delta, now); denied != nil {
		return denied
	}

	s.apply(promo.TenantID, promo.ID, 0, delta, now)
	s.apply(promo.TenantID, promo.ID, clientID, delta, now)
	return nil
}

func (s *Store) Reverse(_ context.Context, tenantID, promotionID, clientID snowflake.ID, delta ledgerdomain.Delta) error {
	if tenantID == 0 || promotionID == 0 || clientID == 0 {
		return ledgerdomain.ErrInvalidDelta
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	neg := delta.Negate()
	now := s.now()
	s.apply(tenantID, promotionID, 0, neg, now)
	s.apply(tenantID, promotionID, clientID, neg, now)
	return nil
}

func (s *Store) Snapshot(_ context.Context, tenantID, promotionID, clientID snowflake.ID) (ledgerdomain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return ledgerdomain.Snapshot{
		Global: *s.entry(tenantID, promotionID, 0),
		Client: *s.entry(tenantID, promotionID, clientID),
	}, nil
}

// entry returns the live counter row for a scope, creating a zero row on
// first touch. Callers hold the mutex.
func (s *Store) entry(tenantID, promotionID, clientID snowflake.ID) *ledgerdomain.UsageLedgerEntry {
	key := scopeKey{tenantID: tenantID, promotionID: promotionID, clientID: clientID}
	if entry, ok := s.entries[key]; ok {
		return entry
	}
	entry := &ledgerdomain.UsageLedgerEntry{
		TenantID:    tenantID,
		PromotionID: promotionID,
		ClientID:    clientID,
	}
	s.entries[key] = entry
	return entry
}

func (s *Store) apply(tenantID, promotionID, clientID snowflake.ID, delta ledgerdomain.Delta, now time.Time) {
	entry := s.entry(tenantID, promotionID, clientID)
	entry.TotalUsed += delta.Uses
	entry.TotalSavings = entry.TotalSavings.Add(delta.Savings)
	entry.BudgetUsed = entry.BudgetUsed.Add(delta.Amount)
	entry.RewardPiecesUsed += delta.Pieces
	entry.LastUsedAt = &now
	entry.UpdatedAt = now
}

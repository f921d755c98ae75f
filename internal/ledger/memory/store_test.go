package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	ledgerdomain "github.com/vendora/promokit/internal/ledger/domain"
	promotiondomain "github.com/vendora/promokit/internal/promotion/domain"
)

func budgetPromo(maxBudget int64) *promotiondomain.Promotion {
	budget := decimal.NewFromInt(maxBudget)
	return &promotiondomain.Promotion{
		ID:       snowflake.ID(500),
		TenantID: snowflake.ID(1),
		Status:   promotiondomain.PromotionStatusActive,
		Limits: promotiondomain.PromotionLimits{
			MaxBudget: &budget,
		},
	}
}

// Many goroutines race to consume a shared budget; the committed total
// must never exceed it and the number of successful applies must account
// for every consumed unit.
func TestTryApplyConcurrentBudget(t *testing.T) {
	const (
		workers   = 50
		perWorker = 10
		maxBudget = 100
	)

	store := NewStore()
	promo := budgetPromo(maxBudget)
	delta := ledgerdomain.Delta{
		Uses:    1,
		Amount:  decimal.NewFromInt(1),
		Savings: decimal.NewFromInt(1),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	applied, denied := 0, 0

	for w := 0; w < workers; w++ {
		wg.Add(1)
		clientID := snowflake.ID(1000 + w)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				err := store.TryApply(context.Background(), promo, clientID, delta)
				mu.Lock()
				switch {
				case err == nil:
					applied++
				default:
					if _, ok := ledgerdomain.AsLimitDenied(err); !ok {
						t.Errorf("unexpected error: %v", err)
					}
					denied++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if applied != maxBudget {
		t.Fatalf("applied = %d, want exactly %d (budget units)", applied, maxBudget)
	}
	if denied != workers*perWorker-maxBudget {
		t.Fatalf("denied = %d, want %d", denied, workers*perWorker-maxBudget)
	}

	snap, err := store.Snapshot(context.Background(), promo.TenantID, promo.ID, 0)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snap.Global.BudgetUsed.Equal(decimal.NewFromInt(maxBudget)) {
		t.Fatalf("budgetUsed = %s, want %d", snap.Global.BudgetUsed, maxBudget)
	}
	if snap.Global.TotalUsed != maxBudget {
		t.Fatalf("totalUsed = %d, want %d", snap.Global.TotalUsed, maxBudget)
	}
}

func TestTryApplyDeniesInPipelineOrder(t *testing.T) {
	maxPerClient := int64(1)
	maxTotal := int64(1)
	promo := budgetPromo(1000)
	promo.Limits.MaxUsagePerClient = &maxPerClient
	promo.Limits.MaxTotalUsage = &maxTotal

	store := NewStore()
	delta := ledgerdomain.Delta{Uses: 1, Amount: decimal.NewFromInt(1), Savings: decimal.NewFromInt(1)}

	if err := store.TryApply(context.Background(), promo, snowflake.ID(7), delta); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	// Same client: both per-client and total are exhausted, but the
	// per-client check runs first.
	err := store.TryApply(context.Background(), promo, snowflake.ID(7), delta)
	denied, ok := ledgerdomain.AsLimitDenied(err)
	if !ok || denied.Reason != ledgerdomain.ReasonMaxUsagePerClient {
		t.Fatalf("reason = %v, want max_usage_per_client", err)
	}

	// Different client: only the total limit blocks.
	err = store.TryApply(context.Background(), promo, snowflake.ID(8), delta)
	denied, ok = ledgerdomain.AsLimitDenied(err)
	if !ok || denied.Reason != ledgerdomain.ReasonMaxTotalUsage {
		t.Fatalf("reason = %v, want max_total_usage", err)
	}
}

func TestReverseIsExact(t *testing.T) {
	store := NewStore()
	promo := budgetPromo(100)
	delta := ledgerdomain.Delta{
		Uses:    1,
		Amount:  decimal.RequireFromString("12.34"),
		Savings: decimal.RequireFromString("12.34"),
		Pieces:  2,
	}

	if err := store.TryApply(context.Background(), promo, snowflake.ID(9), delta); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := store.Reverse(context.Background(), promo.TenantID, promo.ID, snowflake.ID(9), delta); err != nil {
		t.Fatalf("reverse: %v", err)
	}

	snap, _ := store.Snapshot(context.Background(), promo.TenantID, promo.ID, snowflake.ID(9))
	for _, entry := range []ledgerdomain.UsageLedgerEntry{snap.Global, snap.Client} {
		if entry.TotalUsed != 0 || entry.RewardPiecesUsed != 0 {
			t.Fatalf("counters not restored: %+v", entry)
		}
		if !entry.BudgetUsed.IsZero() || !entry.TotalSavings.IsZero() {
			t.Fatalf("money counters not restored: %+v", entry)
		}
	}
}

func TestTryApplyRejectsInvalidDelta(t *testing.T) {
	store := NewStore()
	promo := budgetPromo(10)

	err := store.TryApply(context.Background(), promo, snowflake.ID(3), ledgerdomain.Delta{Uses: 0})
	if err != ledgerdomain.ErrInvalidDelta {
		t.Fatalf("zero-use delta should be invalid, got %v", err)
	}

	err = store.TryApply(context.Background(), promo, 0, ledgerdomain.Delta{Uses: 1})
	if err != ledgerdomain.ErrInvalidDelta {
		t.Fatalf("missing client should be invalid, got %v", err)
	}
}

package evaluation

import (
	"testing"

	ledgerdomain "github.com/vendora/promokit/internal/ledger/domain"
)

func stackCandidate(id int64, stackable bool, amount string) candidate {
	promo := activePromo(id)
	promo.IsStackable = stackable
	return candidate{
		promo:  promo,
		reward: Reward{Amount: dec(amount)},
	}
}

func TestResolveStackAllStackable(t *testing.T) {
	candidates := []candidate{
		stackCandidate(1, true, "5.00"),
		stackCandidate(2, true, "3.00"),
	}
	accepted, rejected := resolveStack(candidates)
	if len(accepted) != 2 || len(rejected) != 0 {
		t.Fatalf("all-stackable candidates should all apply, got %d accepted %d rejected", len(accepted), len(rejected))
	}
}

func TestResolveStackNonStackableWinsByReward(t *testing.T) {
	candidates := []candidate{
		stackCandidate(1, true, "5.00"),
		stackCandidate(2, false, "7.00"),
		stackCandidate(3, true, "9.00"),
	}
	accepted, rejected := resolveStack(candidates)
	if len(accepted) != 1 {
		t.Fatalf("one non-stackable candidate forces a single winner, got %d", len(accepted))
	}
	if accepted[0].promo.ID != snowID(3) {
		t.Fatalf("winner = %s, want promotion 3 (greatest reward)", accepted[0].promo.ID)
	}
	if len(rejected) != 2 {
		t.Fatalf("losers = %d, want 2", len(rejected))
	}
	for _, rej := range rejected {
		if rej.Reason != ledgerdomain.ReasonNonStackable {
			t.Fatalf("rejection reason = %s, want %s", rej.Reason, ledgerdomain.ReasonNonStackable)
		}
	}
}

func TestResolveStackTieBreaksOnLowestID(t *testing.T) {
	candidates := []candidate{
		stackCandidate(9, false, "5.00"),
		stackCandidate(4, false, "5.00"),
		stackCandidate(7, false, "5.00"),
	}
	accepted, _ := resolveStack(candidates)
	if len(accepted) != 1 || accepted[0].promo.ID != snowID(4) {
		t.Fatalf("tie should break on the lowest id, got %v", accepted[0].promo.ID)
	}
}

func TestResolveStackEmpty(t *testing.T) {
	accepted, rejected := resolveStack(nil)
	if accepted != nil || rejected != nil {
		t.Fatalf("empty input should produce empty output")
	}
}

package evaluation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vendora/promokit/internal/clock"
	ledgerdomain "github.com/vendora/promokit/internal/ledger/domain"
	"github.com/vendora/promokit/internal/ledger/memory"
	promotiondomain "github.com/vendora/promokit/internal/promotion/domain"
)

func snowID(v int64) snowflake.ID { return snowflake.ID(v) }

type fakeCatalog struct {
	promos []promotiondomain.Promotion
}

func (f *fakeCatalog) ListActive(_ context.Context, _ snowflake.ID) ([]promotiondomain.Promotion, error) {
	return f.promos, nil
}

type fakeClients struct {
	zones map[snowflake.ID]string
}

func (f *fakeClients) GetClientZone(_ context.Context, _, clientID snowflake.ID) (string, error) {
	return f.zones[clientID], nil
}

type fakeProducts struct {
	categories map[snowflake.ID]string
}

func (f *fakeProducts) GetProductCategory(_ context.Context, _, productID snowflake.ID) (string, error) {
	return f.categories[productID], nil
}

type failingStore struct {
	*memory.Store
	failOn snowflake.ID
}

func (f *failingStore) TryApply(ctx context.Context, promo *promotiondomain.Promotion, clientID snowflake.ID, delta ledgerdomain.Delta) error {
	if promo.ID == f.failOn {
		return errors.New("connection reset")
	}
	return f.Store.TryApply(ctx, promo, clientID, delta)
}

func newTestEngine(catalog *fakeCatalog, store ledgerdomain.Store) *Engine {
	return NewEngine(EngineParam{
		Catalog: catalog,
		Ledger:  store,
		Clients: &fakeClients{zones: map[snowflake.ID]string{snowID(2): "north"}},
		Products: &fakeProducts{categories: map[snowflake.ID]string{
			snowID(100): "coffee",
			snowID(101): "tea",
		}},
		Clock: clock.FixedClock{Instant: testNow},
		Log:   zap.NewNop(),
	})
}

func testOrder(quantity int64) Order {
	return Order{
		ID:       snowID(900),
		TenantID: snowID(1),
		ClientID: snowID(2),
		Lines: []OrderLine{
			{ProductID: snowID(100), Quantity: quantity, UnitPrice: decimal.NewFromInt(10)},
		},
	}
}

// Scenario: quantity 6 against ranges [1..4 -> 10%, 5.. -> 20%] must take
// the 20% tier.
func TestEvaluateOrderSelectsCoveringTier(t *testing.T) {
	max1 := int64(4)
	promo := activePromo(50)
	promo.ApplicationProducts = []promotiondomain.ApplicationProduct{
		{ID: snowID(501), ProductID: snowID(100), MinimumQuantity: 1},
	}
	promo.ClientRanges = []promotiondomain.ClientRange{
		{ID: snowID(502), MinQuantity: 1, MaxQuantity: &max1, RewardValue: dec("10"), RewardMethod: promotiondomain.RewardMethodPercentage},
		{ID: snowID(503), MinQuantity: 5, RewardValue: dec("20"), RewardMethod: promotiondomain.RewardMethodPercentage},
	}

	engine := newTestEngine(&fakeCatalog{promos: []promotiondomain.Promotion{*promo}}, memory.NewStore())
	result, err := engine.EvaluateOrder(context.Background(), testOrder(6))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(result.Applied) != 1 {
		t.Fatalf("applied = %d, want 1", len(result.Applied))
	}
	// 20% of 60, not 10%.
	if !result.Applied[0].Reward.Amount.Equal(dec("12.00")) {
		t.Fatalf("reward = %s, want 12.00", result.Applied[0].Reward.Amount)
	}
	if result.Applied[0].TierID == nil || *result.Applied[0].TierID != snowID(503) {
		t.Fatalf("tier = %v, want the 20%% range", result.Applied[0].TierID)
	}
}

// Scenario: two non-stackable promotions; only the greater reward applies
// and the loser carries the stacking rejection reason.
func TestEvaluateOrderNonStackableConflict(t *testing.T) {
	p1 := activePromo(60)
	p1.IsStackable = false
	p1.ApplicationProducts = []promotiondomain.ApplicationProduct{
		{ID: snowID(601), ProductID: snowID(100), MinimumQuantity: 1},
	}
	p1.RewardProducts = []promotiondomain.RewardProduct{
		{ID: snowID(602), ProductID: snowID(100), DiscountValue: dec("50"), DiscountMethod: promotiondomain.RewardMethodFixed},
	}

	p2 := activePromo(61)
	p2.IsStackable = false
	p2.ApplicationProducts = []promotiondomain.ApplicationProduct{
		{ID: snowID(611), ProductID: snowID(100), MinimumQuantity: 1},
	}
	p2.RewardProducts = []promotiondomain.RewardProduct{
		{ID: snowID(612), ProductID: snowID(100), DiscountValue: dec("80"), DiscountMethod: promotiondomain.RewardMethodFixed},
	}

	engine := newTestEngine(&fakeCatalog{promos: []promotiondomain.Promotion{*p1, *p2}}, memory.NewStore())
	order := testOrder(1)
	order.Lines[0].UnitPrice = decimal.NewFromInt(100)

	result, err := engine.EvaluateOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(result.Applied) != 1 || result.Applied[0].PromotionID != snowID(61) {
		t.Fatalf("winner should be the $80 promotion, got %+v", result.Applied)
	}
	if len(result.Rejected) != 1 {
		t.Fatalf("rejected = %d, want 1", len(result.Rejected))
	}
	rej := result.Rejected[0]
	if rej.PromotionID != snowID(60) || rej.Reason != ledgerdomain.ReasonNonStackable {
		t.Fatalf("rejection = %+v, want non-stackable on promotion 60", rej)
	}
	if rej.Message != "non-stackable, lower reward" {
		t.Fatalf("message = %q", rej.Message)
	}
}

// Scenario: totalUsed already at maxTotalUsage; apply is denied with that
// reason and the ledger stays unchanged.
func TestEvaluateOrderMaxTotalUsageExhausted(t *testing.T) {
	maxTotal := int64(100)
	promo := activePromo(70)
	promo.Limits.MaxTotalUsage = &maxTotal
	promo.ApplicationProducts = []promotiondomain.ApplicationProduct{
		{ID: snowID(701), ProductID: snowID(100), MinimumQuantity: 1},
	}
	promo.RewardProducts = []promotiondomain.RewardProduct{
		{ID: snowID(702), ProductID: snowID(100), DiscountValue: dec("10"), DiscountMethod: promotiondomain.RewardMethodPercentage},
	}

	store := memory.NewStore()
	// Exhaust the total usage with distinct clients.
	unbounded := *promo
	unbounded.Limits.MaxTotalUsage = nil
	for i := int64(0); i < 100; i++ {
		delta := ledgerdomain.Delta{Uses: 1, Amount: dec("1"), Savings: dec("1")}
		if err := store.TryApply(context.Background(), &unbounded, snowID(1000+i), delta); err != nil {
			t.Fatalf("seed apply %d: %v", i, err)
		}
	}

	engine := newTestEngine(&fakeCatalog{promos: []promotiondomain.Promotion{*promo}}, store)
	result, err := engine.EvaluateOrder(context.Background(), testOrder(1))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(result.Applied) != 0 {
		t.Fatalf("exhausted promotion should not apply, got %+v", result.Applied)
	}
	if len(result.Rejected) != 1 || result.Rejected[0].Reason != ledgerdomain.ReasonMaxTotalUsage {
		t.Fatalf("rejection = %+v, want max_total_usage", result.Rejected)
	}

	snap, _ := store.Snapshot(context.Background(), snowID(1), promo.ID, snowID(2))
	if snap.Global.TotalUsed != 100 {
		t.Fatalf("ledger changed on a denied apply: totalUsed = %d", snap.Global.TotalUsed)
	}
}

// Scenario: Free with maxQuantity 2 and qualifying quantity 5 rewards
// exactly 2 pieces.
func TestEvaluateOrderFreePiecesCapped(t *testing.T) {
	maxQty := int64(2)
	promo := activePromo(80)
	promo.ApplicationProducts = []promotiondomain.ApplicationProduct{
		{ID: snowID(801), ProductID: snowID(100), MinimumQuantity: 1},
	}
	promo.RewardProducts = []promotiondomain.RewardProduct{
		{ID: snowID(802), ProductID: snowID(100), MaxQuantity: &maxQty, DiscountValue: decimal.Zero, DiscountMethod: promotiondomain.RewardMethodFree},
	}

	engine := newTestEngine(&fakeCatalog{promos: []promotiondomain.Promotion{*promo}}, memory.NewStore())
	result, err := engine.EvaluateOrder(context.Background(), testOrder(5))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(result.Applied) != 1 {
		t.Fatalf("applied = %d, want 1", len(result.Applied))
	}
	if result.Applied[0].Reward.Pieces != 2 {
		t.Fatalf("pieces = %d, want 2", result.Applied[0].Reward.Pieces)
	}
	// Two of five units waived at 10 each.
	if !result.Applied[0].Reward.Amount.Equal(dec("20.00")) {
		t.Fatalf("amount = %s, want 20.00", result.Applied[0].Reward.Amount)
	}
}

// Scenario: order date outside the window; the promotion is filtered as a
// non-candidate, so the result is silent on it.
func TestEvaluateOrderOutsideDateWindowIsSilent(t *testing.T) {
	past := testNow.Add(-48 * time.Hour)
	end := testNow.Add(-24 * time.Hour)
	promo := activePromo(90)
	promo.Limits.StartDate = &past
	promo.Limits.EndDate = &end
	promo.ApplicationProducts = []promotiondomain.ApplicationProduct{
		{ID: snowID(901), ProductID: snowID(100), MinimumQuantity: 1},
	}

	engine := newTestEngine(&fakeCatalog{promos: []promotiondomain.Promotion{*promo}}, memory.NewStore())
	result, err := engine.EvaluateOrder(context.Background(), testOrder(1))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(result.Applied) != 0 || len(result.Rejected) != 0 {
		t.Fatalf("expired promotion should be silent, got %+v", result)
	}
}

func TestEvaluateOrderNoMatchIsSilent(t *testing.T) {
	promo := activePromo(91)
	promo.ApplicationProducts = []promotiondomain.ApplicationProduct{
		{ID: snowID(911), ProductID: snowID(999), MinimumQuantity: 1},
	}

	engine := newTestEngine(&fakeCatalog{promos: []promotiondomain.Promotion{*promo}}, memory.NewStore())
	result, err := engine.EvaluateOrder(context.Background(), testOrder(3))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(result.Applied) != 0 || len(result.Rejected) != 0 {
		t.Fatalf("non-matching promotion is not an error and not a rejection, got %+v", result)
	}
	if !result.TotalSavings.IsZero() {
		t.Fatalf("total savings = %s, want 0", result.TotalSavings)
	}
}

func TestEvaluateOrderInvalid(t *testing.T) {
	engine := newTestEngine(&fakeCatalog{}, memory.NewStore())

	if _, err := engine.EvaluateOrder(context.Background(), Order{}); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("empty order should be invalid, got %v", err)
	}

	order := testOrder(1)
	order.Lines[0].Quantity = 0
	if _, err := engine.EvaluateOrder(context.Background(), order); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("zero-quantity line should be invalid, got %v", err)
	}
}

func TestPreviewCommitsNothing(t *testing.T) {
	promo := activePromo(92)
	promo.ApplicationProducts = []promotiondomain.ApplicationProduct{
		{ID: snowID(921), ProductID: snowID(100), MinimumQuantity: 1},
	}
	promo.RewardProducts = []promotiondomain.RewardProduct{
		{ID: snowID(922), ProductID: snowID(100), DiscountValue: dec("10"), DiscountMethod: promotiondomain.RewardMethodPercentage},
	}

	store := memory.NewStore()
	engine := newTestEngine(&fakeCatalog{promos: []promotiondomain.Promotion{*promo}}, store)

	result, err := engine.Preview(context.Background(), testOrder(2))
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(result.Applied) != 1 {
		t.Fatalf("preview should report the prospective application")
	}

	snap, _ := store.Snapshot(context.Background(), snowID(1), promo.ID, snowID(2))
	if snap.Global.TotalUsed != 0 {
		t.Fatalf("preview must not touch the ledger, totalUsed = %d", snap.Global.TotalUsed)
	}
}

// A commit failure mid-order reverses what the same order already applied.
func TestEvaluateOrderCommitFailureRollsBack(t *testing.T) {
	p1 := activePromo(93)
	p1.IsStackable = true
	p1.ApplicationProducts = []promotiondomain.ApplicationProduct{
		{ID: snowID(931), ProductID: snowID(100), MinimumQuantity: 1},
	}
	p1.RewardProducts = []promotiondomain.RewardProduct{
		{ID: snowID(932), ProductID: snowID(100), DiscountValue: dec("10"), DiscountMethod: promotiondomain.RewardMethodPercentage},
	}

	p2 := activePromo(94)
	p2.IsStackable = true
	p2.ApplicationProducts = []promotiondomain.ApplicationProduct{
		{ID: snowID(941), ProductID: snowID(100), MinimumQuantity: 1},
	}
	p2.RewardProducts = []promotiondomain.RewardProduct{
		{ID: snowID(942), ProductID: snowID(100), DiscountValue: dec("5"), DiscountMethod: promotiondomain.RewardMethodPercentage},
	}

	store := &failingStore{Store: memory.NewStore(), failOn: snowID(94)}
	engine := newTestEngine(&fakeCatalog{promos: []promotiondomain.Promotion{*p1, *p2}}, store)

	_, err := engine.EvaluateOrder(context.Background(), testOrder(2))
	if !errors.Is(err, ledgerdomain.ErrCommitFailed) {
		t.Fatalf("expected commit failure, got %v", err)
	}

	snap, _ := store.Snapshot(context.Background(), snowID(1), snowID(93), snowID(2))
	if snap.Global.TotalUsed != 0 || !snap.Global.BudgetUsed.IsZero() {
		t.Fatalf("first promotion's delta must be reversed, got %+v", snap.Global)
	}
}

// Evaluate then reverse: the counters return exactly to their prior state.
func TestReverseOrderRestoresCounters(t *testing.T) {
	promo := activePromo(95)
	promo.ApplicationProducts = []promotiondomain.ApplicationProduct{
		{ID: snowID(951), ProductID: snowID(100), MinimumQuantity: 1},
	}
	promo.RewardProducts = []promotiondomain.RewardProduct{
		{ID: snowID(952), ProductID: snowID(100), DiscountValue: dec("25"), DiscountMethod: promotiondomain.RewardMethodPercentage},
	}

	store := memory.NewStore()
	engine := newTestEngine(&fakeCatalog{promos: []promotiondomain.Promotion{*promo}}, store)

	result, err := engine.EvaluateOrder(context.Background(), testOrder(3))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(result.Applied) != 1 {
		t.Fatalf("applied = %d, want 1", len(result.Applied))
	}

	if err := engine.ReverseOrder(context.Background(), snowID(1), snowID(2), result.Applied); err != nil {
		t.Fatalf("reverse: %v", err)
	}

	snap, _ := store.Snapshot(context.Background(), snowID(1), promo.ID, snowID(2))
	if snap.Global.TotalUsed != 0 || !snap.Global.BudgetUsed.IsZero() || !snap.Global.TotalSavings.IsZero() {
		t.Fatalf("global counters not restored: %+v", snap.Global)
	}
	if snap.Client.TotalUsed != 0 || !snap.Client.BudgetUsed.IsZero() {
		t.Fatalf("client counters not restored: %+v", snap.Client)
	}
}

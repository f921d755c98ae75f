package evaluation

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/vendora/promokit/internal/ledger/domain"
	promotiondomain "github.com/vendora/promokit/internal/promotion/domain"
)

// OrderLine is one purchased position of the order under evaluation.
type OrderLine struct {
	ProductID snowflake.ID    `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Order is the evaluation input. PlacedAt defaults to the engine clock
// when zero.
type Order struct {
	ID       snowflake.ID `json:"id"`
	TenantID snowflake.ID `json:"tenant_id"`
	ClientID snowflake.ID `json:"client_id"`
	Lines    []OrderLine  `json:"lines"`
	PlacedAt time.Time    `json:"placed_at"`
}

// QuantityOf sums the ordered quantity of a product across line items.
func (o Order) QuantityOf(productID snowflake.ID) int64 {
	var total int64
	for _, line := range o.Lines {
		if line.ProductID == productID {
			total += line.Quantity
		}
	}
	return total
}

// UnitPriceOf returns the unit price of the first line carrying the
// product, or zero when the product is not on the order.
func (o Order) UnitPriceOf(productID snowflake.ID) decimal.Decimal {
	for _, line := range o.Lines {
		if line.ProductID == productID {
			return line.UnitPrice
		}
	}
	return decimal.Zero
}

// ClientDirectory resolves client attributes owned by the CRM stores.
type ClientDirectory interface {
	GetClientZone(ctx context.Context, tenantID, clientID snowflake.ID) (string, error)
}

// ProductDirectory resolves product attributes owned by the CRM stores.
type ProductDirectory interface {
	GetProductCategory(ctx context.Context, tenantID, productID snowflake.ID) (string, error)
}

// MatchResult records, per application product, the ordered quantity that
// satisfied its minimum. PrimaryQuantity drives tier resolution.
type MatchResult struct {
	Quantities      map[snowflake.ID]int64
	PrimaryQuantity int64
}

// Reward is the computed grant of one promotion application.
type Reward struct {
	Amount decimal.Decimal `json:"amount"`
	Pieces int64           `json:"pieces"`
}

// AppliedPromotion reports one committed application, including the exact
// ledger delta so an order cancellation can reverse it.
type AppliedPromotion struct {
	PromotionID snowflake.ID                  `json:"promotion_id"`
	Name        string                        `json:"name"`
	Type        promotiondomain.PromotionType `json:"type"`
	Reward      Reward                        `json:"reward"`
	TierID      *snowflake.ID                 `json:"tier_id,omitempty"`
	Delta       ledgerdomain.Delta            `json:"-"`
}

// Rejection reports why a matched promotion was dropped from the order.
// Rejections never block checkout; they exist for display.
type Rejection struct {
	PromotionID snowflake.ID             `json:"promotion_id"`
	Reason      ledgerdomain.LimitReason `json:"reason"`
	Message     string                   `json:"message"`
}

// Result is the outcome of evaluating one order.
type Result struct {
	Applied      []AppliedPromotion `json:"applied_promotions"`
	Rejected     []Rejection        `json:"rejected"`
	TotalSavings decimal.Decimal    `json:"total_savings"`
}

// candidate tracks a promotion through the evaluation pipeline:
// Candidate -> Matched -> TierResolved -> LimitChecked -> Applied|Rejected.
type candidate struct {
	promo  *promotiondomain.Promotion
	match  MatchResult
	tier   *promotiondomain.ClientRange
	reward Reward
	delta  ledgerdomain.Delta
}

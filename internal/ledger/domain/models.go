package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// UsageLedgerEntry is a durable counter row for one promotion, either in
// aggregate (ClientID zero) or for a single client. Counters move only
// through an atomic apply or its exact reversal.
type UsageLedgerEntry struct {
	ID               snowflake.ID    `gorm:"primaryKey"`
	TenantID         snowflake.ID    `gorm:"not null;index"`
	PromotionID      snowflake.ID    `gorm:"not null;uniqueIndex:ux_promotion_usage_scope,priority:1"`
	ClientID         snowflake.ID    `gorm:"not null;default:0;uniqueIndex:ux_promotion_usage_scope,priority:2"`
	TotalUsed        int64           `gorm:"not null;default:0"`
	TotalSavings     decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	BudgetUsed       decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	RewardPiecesUsed int64           `gorm:"not null;default:0"`
	LastUsedAt       *time.Time      `gorm:"column:last_used_at"`
	CreatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsageLedgerEntry) TableName() string { return "promotion_usage" }

// Delta is the exact adjustment one promotion application proposes. A
// reversal commits the same delta negated through the same atomic path.
type Delta struct {
	Uses    int64
	Amount  decimal.Decimal
	Savings decimal.Decimal
	Pieces  int64
}

// Negate returns the compensating delta.
func (d Delta) Negate() Delta {
	return Delta{
		Uses:    -d.Uses,
		Amount:  d.Amount.Neg(),
		Savings: d.Savings.Neg(),
		Pieces:  -d.Pieces,
	}
}

// Snapshot is a point-in-time read of the counters relevant to one
// promotion+client pair. Zero-valued entries stand in for rows that do not
// exist yet.
type Snapshot struct {
	Global UsageLedgerEntry
	Client UsageLedgerEntry
}

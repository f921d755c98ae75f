package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PromotionType distinguishes the commercial shape of a promotion.
type PromotionType string

const (
	PromotionTypePercentage  PromotionType = "percentage"
	PromotionTypeSpecialClub PromotionType = "special_club"
	PromotionTypeBuyXGetY    PromotionType = "buy_x_get_y"
)

// RewardMethod is the closed set of reward computation strategies.
type RewardMethod string

const (
	RewardMethodFree       RewardMethod = "free"
	RewardMethodPercentage RewardMethod = "percentage_discount"
	RewardMethodFixed      RewardMethod = "fixed_discount"
)

// PromotionStatus models the promotion lifecycle. Finished is system-set
// when the end date passes or usage/budget is exhausted and cannot be
// reverted by a status toggle.
type PromotionStatus string

const (
	PromotionStatusDraft    PromotionStatus = "draft"
	PromotionStatusActive   PromotionStatus = "active"
	PromotionStatusPaused   PromotionStatus = "paused"
	PromotionStatusFinished PromotionStatus = "finished"
)

// PromotionLimits bounds how often and how far a promotion may be applied.
// Every field is optional; absence means unbounded on that axis.
type PromotionLimits struct {
	MaxUsagePerClient *int64                      `gorm:"column:max_usage_per_client" json:"max_usage_per_client,omitempty"`
	MaxTotalUsage     *int64                      `gorm:"column:max_total_usage" json:"max_total_usage,omitempty"`
	MaxBudget         *decimal.Decimal            `gorm:"column:max_budget;type:numeric(18,2)" json:"max_budget,omitempty"`
	MaxRewardPieces   *int64                      `gorm:"column:max_reward_pieces" json:"max_reward_pieces,omitempty"`
	AllowedZones      datatypes.JSONSlice[string] `gorm:"column:allowed_zones;type:jsonb" json:"allowed_zones,omitempty"`
	AllowedCategories datatypes.JSONSlice[string] `gorm:"column:allowed_categories;type:jsonb" json:"allowed_categories,omitempty"`
	StartDate         *time.Time                  `gorm:"column:start_date" json:"start_date,omitempty"`
	EndDate           *time.Time                  `gorm:"column:end_date" json:"end_date,omitempty"`
}

// Promotion is a tenant-scoped rule definition. Application products,
// reward products and client ranges are value objects owned by the
// promotion; they have no independent lifecycle.
type Promotion struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID         snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	Name             string          `gorm:"type:text;not null" json:"name"`
	Description      string          `gorm:"type:text" json:"description"`
	Type             PromotionType   `gorm:"type:text;not null" json:"type"`
	Status           PromotionStatus `gorm:"type:text;not null;index" json:"status"`
	IsStackable      bool            `gorm:"not null;default:false" json:"is_stackable"`
	RequiresApproval bool            `gorm:"not null;default:false" json:"requires_approval"`
	IsVisible        bool            `gorm:"not null;default:true" json:"is_visible"`

	Limits PromotionLimits `gorm:"embedded" json:"limits"`

	ApplicationProducts []ApplicationProduct `gorm:"foreignKey:PromotionID" json:"application_products"`
	RewardProducts      []RewardProduct      `gorm:"foreignKey:PromotionID" json:"reward_products"`
	ClientRanges        []ClientRange        `gorm:"foreignKey:PromotionID" json:"client_ranges"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Promotion) TableName() string { return "promotions" }

// ApplicationProduct defines what the client must buy to qualify. All
// application products of a promotion must be satisfied together.
type ApplicationProduct struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	PromotionID     snowflake.ID `gorm:"not null;index" json:"-"`
	ProductID       snowflake.ID `gorm:"not null;index" json:"product_id"`
	MinimumQuantity int64        `gorm:"not null" json:"minimum_quantity"`
	Description     string       `gorm:"type:text" json:"description,omitempty"`
	Position        int          `gorm:"not null;default:0" json:"position"`
}

// TableName sets the database table name.
func (ApplicationProduct) TableName() string { return "promotion_application_products" }

// RewardProduct names a product whose price is reduced or waived when the
// promotion applies.
type RewardProduct struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	PromotionID    snowflake.ID    `gorm:"not null;index" json:"-"`
	ProductID      snowflake.ID    `gorm:"not null;index" json:"product_id"`
	MaxQuantity    *int64          `gorm:"column:max_quantity" json:"max_quantity,omitempty"`
	DiscountValue  decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"discount_value"`
	DiscountMethod RewardMethod    `gorm:"type:text;not null" json:"discount_method"`
	Position       int             `gorm:"not null;default:0" json:"position"`
}

// TableName sets the database table name.
func (RewardProduct) TableName() string { return "promotion_reward_products" }

// ClientRange maps a purchased-quantity bracket of the primary application
// product to a reward tier. Ranges of one promotion partition a contiguous
// domain; at most one open-ended range (nil MaxQuantity) sits last.
type ClientRange struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	PromotionID  snowflake.ID    `gorm:"not null;index" json:"-"`
	MinQuantity  int64           `gorm:"not null" json:"min_quantity"`
	MaxQuantity  *int64          `gorm:"column:max_quantity" json:"max_quantity,omitempty"`
	RewardValue  decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"reward_value"`
	RewardMethod RewardMethod    `gorm:"type:text;not null" json:"reward_method"`
	Position     int             `gorm:"not null;default:0" json:"position"`
}

// TableName sets the database table name.
func (ClientRange) TableName() string { return "promotion_client_ranges" }

// PrimaryApplicationProduct returns the first application product in
// declaration order; its matched quantity drives tier resolution.
func (p *Promotion) PrimaryApplicationProduct() *ApplicationProduct {
	if p == nil || len(p.ApplicationProducts) == 0 {
		return nil
	}
	primary := &p.ApplicationProducts[0]
	for i := range p.ApplicationProducts {
		if p.ApplicationProducts[i].Position < primary.Position {
			primary = &p.ApplicationProducts[i]
		}
	}
	return primary
}

// Contains reports membership in a limit allow-list; an empty list allows
// everything.
func allows(list []string, value string) bool {
	if len(list) == 0 {
		return true
	}
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

// AllowsZone reports whether the client zone passes the zone allow-list.
func (l PromotionLimits) AllowsZone(zone string) bool {
	return allows(l.AllowedZones, zone)
}

// AllowsAnyCategory reports whether at least one ordered product category
// passes the category allow-list.
func (l PromotionLimits) AllowsAnyCategory(categories []string) bool {
	if len(l.AllowedCategories) == 0 {
		return true
	}
	for _, category := range categories {
		if allows(l.AllowedCategories, category) {
			return true
		}
	}
	return false
}

// InWindow reports whether now falls inside the inclusive date window.
func (l PromotionLimits) InWindow(now time.Time) bool {
	if l.StartDate != nil && now.Before(*l.StartDate) {
		return false
	}
	if l.EndDate != nil && now.After(*l.EndDate) {
		return false
	}
	return true
}

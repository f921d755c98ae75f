package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidTenant     = errors.New("invalid_tenant")
	ErrInvalidID         = errors.New("invalid_promotion_id")
	ErrNotFound          = errors.New("promotion_not_found")
	ErrInvalidDefinition = errors.New("invalid_promotion_definition")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrFinished          = errors.New("promotion_finished")
)

// CreateRequest carries an authored promotion definition.
type CreateRequest struct {
	Name             string        `json:"name"`
	Description      string        `json:"description"`
	Type             PromotionType `json:"type"`
	IsStackable      bool          `json:"is_stackable"`
	RequiresApproval bool          `json:"requires_approval"`
	IsVisible        bool          `json:"is_visible"`

	Limits              PromotionLimits      `json:"limits"`
	ApplicationProducts []ApplicationProduct `json:"application_products"`
	RewardProducts      []RewardProduct      `json:"reward_products"`
	ClientRanges        []ClientRange        `json:"client_ranges"`
}

// ListRequest filters catalog listings.
type ListRequest struct {
	Status      PromotionStatus `form:"status"`
	VisibleOnly bool            `form:"visible_only"`
}

// Catalog is the read surface the evaluation engine depends on.
type Catalog interface {
	// ListActive returns the tenant's promotions in Active status with
	// their application products, reward products and client ranges
	// loaded.
	ListActive(ctx context.Context, tenantID snowflake.ID) ([]Promotion, error)
}

// Service manages the promotion catalog for authoring and lifecycle.
type Service interface {
	Catalog

	Create(ctx context.Context, req CreateRequest) (*Promotion, error)
	GetByID(ctx context.Context, id string) (*Promotion, error)
	List(ctx context.Context, req ListRequest) ([]Promotion, error)
	// SetStatus toggles Draft/Active/Paused. Finished promotions reject
	// every transition.
	SetStatus(ctx context.Context, id string, status PromotionStatus) (*Promotion, error)
}

// ParseID parses a promotion id from its string form.
func ParseID(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(raw))
}

package directory

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Client is the CRM client record the evaluator consults for zone
// targeting. Ownership of the full client profile lives elsewhere; this
// table carries only what evaluation needs.
type Client struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID  snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Zone      string       `gorm:"type:text;not null;default:''" json:"zone"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Client) TableName() string { return "clients" }

// Product is the sellable product record with the category used by the
// category allow-list check.
type Product struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID  snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Category  string       `gorm:"type:text;not null;default:''" json:"category"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Product) TableName() string { return "products" }

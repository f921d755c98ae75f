package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendora/promokit/internal/directory"
	promotiondomain "github.com/vendora/promokit/internal/promotion/domain"
)

const (
	demoTenantName   = "demo"
	demoClientName   = "Demo Client"
	demoClientZone   = "north"
	demoProductName  = "Espresso Beans 1kg"
	demoCategory     = "coffee"
	demoPromotion    = "10% off espresso beans"
	demoTenantIDSeed = 1
)

// EnsureDemoData seeds a demo tenant with one client, one product and one
// active promotion so a fresh development environment can evaluate orders
// immediately. Reruns are no-ops.
func EnsureDemoData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(demoTenantIDSeed)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenantID := snowflake.ID(demoTenantIDSeed)
		now := time.Now().UTC()

		var client directory.Client
		err := tx.WithContext(ctx).
			Where("tenant_id = ? AND name = ?", tenantID, demoClientName).
			First(&client).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			client = directory.Client{
				ID:        node.Generate(),
				TenantID:  tenantID,
				Name:      demoClientName,
				Zone:      demoClientZone,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.WithContext(ctx).Create(&client).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		var product directory.Product
		err = tx.WithContext(ctx).
			Where("tenant_id = ? AND name = ?", tenantID, demoProductName).
			First(&product).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			product = directory.Product{
				ID:        node.Generate(),
				TenantID:  tenantID,
				Name:      demoProductName,
				Category:  demoCategory,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.WithContext(ctx).Create(&product).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		var count int64
		if err := tx.WithContext(ctx).
			Model(&promotiondomain.Promotion{}).
			Where("tenant_id = ? AND name = ?", tenantID, demoPromotion).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		promo := promotiondomain.Promotion{
			ID:          node.Generate(),
			TenantID:    tenantID,
			Name:        demoPromotion,
			Type:        promotiondomain.PromotionTypePercentage,
			Status:      promotiondomain.PromotionStatusActive,
			IsStackable: true,
			IsVisible:   true,
			ApplicationProducts: []promotiondomain.ApplicationProduct{{
				ID:              node.Generate(),
				ProductID:       product.ID,
				MinimumQuantity: 1,
			}},
			RewardProducts: []promotiondomain.RewardProduct{{
				ID:             node.Generate(),
				ProductID:      product.ID,
				DiscountValue:  decimal.NewFromInt(10),
				DiscountMethod: promotiondomain.RewardMethodPercentage,
			}},
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.WithContext(ctx).Create(&promo).Error
	})
}

package directory

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrClientNotFound  = errors.New("client_not_found")
	ErrProductNotFound = errors.New("product_not_found")
)

type ServiceParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

// Service answers the evaluator's client and product attribute lookups.
type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(p ServiceParam) *Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("directory.service"),
	}
}

func (s *Service) GetClientZone(ctx context.Context, tenantID, clientID snowflake.ID) (string, error) {
	var client Client
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", clientID, tenantID).
		First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrClientNotFound
	}
	if err != nil {
		return "", err
	}
	return client.Zone, nil
}

func (s *Service) GetProductCategory(ctx context.Context, tenantID, productID snowflake.ID) (string, error) {
	var product Product
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", productID, tenantID).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrProductNotFound
	}
	if err != nil {
		return "", err
	}
	return product.Category, nil
}

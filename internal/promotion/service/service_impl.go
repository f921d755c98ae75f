package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vendora/promokit/internal/cache"
	"github.com/vendora/promokit/internal/config"
	promotiondomain "github.com/vendora/promokit/internal/promotion/domain"
	"github.com/vendora/promokit/internal/tenantcontext"
)

// CatalogCache memoizes active-promotion lists per tenant for the
// evaluation hot path.
type CatalogCache = cache.Cache[snowflake.ID, []promotiondomain.Promotion]

// NewCatalogCache builds the cache configured for the catalog, or a noop
// cache when catalog caching is disabled.
func NewCatalogCache(cfg config.Config) CatalogCache {
	if !cfg.Catalog.CacheEnabled {
		return cache.NoopCache[snowflake.ID, []promotiondomain.Promotion]{}
	}
	return cache.NewTTLCache[snowflake.ID, []promotiondomain.Promotion]()
}

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Config config.Config
	Cache  CatalogCache
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	cache    CatalogCache
	cacheTTL time.Duration
}

func NewService(p ServiceParam) promotiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("promotion.service"),

		genID:    p.GenID,
		cache:    p.Cache,
		cacheTTL: p.Config.Catalog.CacheTTL,
	}
}

func (s *Service) Create(ctx context.Context, req promotiondomain.CreateRequest) (*promotiondomain.Promotion, error) {
	tenantID, err := s.tenantIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	promo := &promotiondomain.Promotion{
		ID:               s.genID.Generate(),
		TenantID:         tenantID,
		Name:             strings.TrimSpace(req.Name),
		Description:      strings.TrimSpace(req.Description),
		Type:             req.Type,
		Status:           promotiondomain.PromotionStatusDraft,
		IsStackable:      req.IsStackable,
		RequiresApproval: req.RequiresApproval,
		IsVisible:        req.IsVisible,
		Limits:           req.Limits,
	}
	for _, ap := range req.ApplicationProducts {
		ap.ID = s.genID.Generate()
		ap.PromotionID = promo.ID
		promo.ApplicationProducts = append(promo.ApplicationProducts, ap)
	}
	for _, rp := range req.RewardProducts {
		rp.ID = s.genID.Generate()
		rp.PromotionID = promo.ID
		promo.RewardProducts = append(promo.RewardProducts, rp)
	}
	for _, cr := range req.ClientRanges {
		cr.ID = s.genID.Generate()
		cr.PromotionID = promo.ID
		promo.ClientRanges = append(promo.ClientRanges, cr)
	}

	if violations := promotiondomain.ValidateDefinition(promo); len(violations) > 0 {
		return nil, &promotiondomain.DefinitionError{Violations: violations}
	}

	now := time.Now().UTC()
	promo.CreatedAt = now
	promo.UpdatedAt = now

	if err := s.db.WithContext(ctx).Create(promo).Error; err != nil {
		return nil, fmt.Errorf("create promotion: %w", err)
	}

	s.cache.Delete(tenantID)
	s.log.Info("promotion created",
		zap.String("promotion_id", promo.ID.String()),
		zap.String("type", string(promo.Type)),
	)
	return promo, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*promotiondomain.Promotion, error) {
	tenantID, err := s.tenantIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	promoID, err := promotiondomain.ParseID(id)
	if err != nil {
		return nil, promotiondomain.ErrInvalidID
	}

	var promo promotiondomain.Promotion
	err = s.db.WithContext(ctx).
		Preload("ApplicationProducts").
		Preload("RewardProducts").
		Preload("ClientRanges").
		Where("id = ? AND tenant_id = ?", promoID, tenantID).
		First(&promo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, promotiondomain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

func (s *Service) List(ctx context.Context, req promotiondomain.ListRequest) ([]promotiondomain.Promotion, error) {
	tenantID, err := s.tenantIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).
		Preload("ApplicationProducts").
		Preload("RewardProducts").
		Preload("ClientRanges").
		Where("tenant_id = ?", tenantID)
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.VisibleOnly {
		query = query.Where("is_visible = ?", true)
	}

	var promos []promotiondomain.Promotion
	if err := query.Order("created_at DESC").Find(&promos).Error; err != nil {
		return nil, err
	}
	return promos, nil
}

func (s *Service) ListActive(ctx context.Context, tenantID snowflake.ID) ([]promotiondomain.Promotion, error) {
	if tenantID == 0 {
		return nil, promotiondomain.ErrInvalidTenant
	}
	if promos, ok := s.cache.Get(tenantID); ok {
		return promos, nil
	}

	var promos []promotiondomain.Promotion
	err := s.db.WithContext(ctx).
		Preload("ApplicationProducts").
		Preload("RewardProducts").
		Preload("ClientRanges").
		Where("tenant_id = ? AND status = ?", tenantID, promotiondomain.PromotionStatusActive).
		Order("id ASC").
		Find(&promos).Error
	if err != nil {
		return nil, err
	}

	s.cache.Set(tenantID, promos, s.cacheTTL)
	return promos, nil
}

func (s *Service) SetStatus(ctx context.Context, id string, status promotiondomain.PromotionStatus) (*promotiondomain.Promotion, error) {
	tenantID, err := s.tenantIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	switch status {
	case promotiondomain.PromotionStatusDraft,
		promotiondomain.PromotionStatusActive,
		promotiondomain.PromotionStatusPaused:
	default:
		// Finished is system-set by the expiry worker, never via the API.
		return nil, promotiondomain.ErrInvalidTransition
	}

	promo, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if promo.Status == promotiondomain.PromotionStatusFinished {
		return nil, promotiondomain.ErrFinished
	}
	if promo.Status == status {
		return promo, nil
	}

	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Exec(
		`UPDATE promotions
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND tenant_id = ? AND status <> ?`,
		status, now, promo.ID, tenantID, promotiondomain.PromotionStatusFinished,
	)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Expiry worker flipped the promotion to Finished in between.
		return nil, promotiondomain.ErrFinished
	}

	s.cache.Delete(tenantID)
	promo.Status = status
	promo.UpdatedAt = now
	return promo, nil
}

func (s *Service) tenantIDFromContext(ctx context.Context) (snowflake.ID, error) {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok {
		return 0, promotiondomain.ErrInvalidTenant
	}
	return tenantID, nil
}

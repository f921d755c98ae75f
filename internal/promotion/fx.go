package promotion

import (
	"go.uber.org/fx"

	promotiondomain "github.com/vendora/promokit/internal/promotion/domain"
	"github.com/vendora/promokit/internal/promotion/service"
)

var Module = fx.Module("promotion.service",
	fx.Provide(service.NewCatalogCache),
	fx.Provide(service.NewService),
	fx.Provide(func(svc promotiondomain.Service) promotiondomain.Catalog { return svc }),
)

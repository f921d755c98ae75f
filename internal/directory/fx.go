package directory

import (
	"go.uber.org/fx"

	"github.com/vendora/promokit/internal/evaluation"
)

var Module = fx.Module("directory.service",
	fx.Provide(NewService),
	fx.Provide(func(svc *Service) evaluation.ClientDirectory { return svc }),
	fx.Provide(func(svc *Service) evaluation.ProductDirectory { return svc }),
)

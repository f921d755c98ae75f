package metrics

import (
	"go.uber.org/fx"

	"github.com/vendora/promokit/internal/config"
)

var Module = fx.Module("metrics",
	fx.Provide(func(cfg config.Config) Config {
		return Config{
			ServiceName: "promokit",
			Environment: cfg.Environment,
		}
	}),
)

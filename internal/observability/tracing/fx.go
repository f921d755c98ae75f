package tracing

import (
	"github.com/vendora/promokit/internal/config"
	"go.uber.org/fx"
)

const serviceName = "promokit"

var Module = fx.Module("tracing",
	fx.Provide(func(cfg config.Config) Config {
		return Config{
			Enabled:          cfg.Tracing.Enabled,
			ServiceName:      serviceName,
			ServiceVersion:   "dev",
			Environment:      cfg.Environment,
			ExporterEndpoint: cfg.Tracing.ExporterEndpoint,
			ExporterProtocol: cfg.Tracing.ExporterProtocol,
			SamplingRatio:    cfg.Tracing.SamplingRatio,
		}
	}),
	fx.Invoke(NewProvider),
)

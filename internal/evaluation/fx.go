package evaluation

import (
	"go.uber.org/fx"

	"github.com/vendora/promokit/internal/observability/metrics"
)

var Module = fx.Module("evaluation.engine",
	fx.Provide(func(cfg metrics.Config) *metrics.EvaluationMetrics {
		return metrics.EvaluationWithConfig(cfg)
	}),
	fx.Provide(NewEngine),
)

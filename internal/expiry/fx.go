package expiry

import (
	"context"

	"go.uber.org/fx"

	"github.com/vendora/promokit/internal/config"
)

var Module = fx.Module("expiry.worker",
	fx.Provide(func(cfg config.Config) Config {
		return Config{
			BatchSize:    cfg.Expiry.BatchSize,
			PollInterval: cfg.Expiry.PollInterval,
		}
	}),
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)

func runWorker(lc fx.Lifecycle, worker *Worker) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go worker.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

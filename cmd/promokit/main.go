package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/vendora/promokit/internal/clock"
	"github.com/vendora/promokit/internal/config"
	"github.com/vendora/promokit/internal/directory"
	"github.com/vendora/promokit/internal/evaluation"
	"github.com/vendora/promokit/internal/events"
	"github.com/vendora/promokit/internal/expiry"
	"github.com/vendora/promokit/internal/ledger"
	"github.com/vendora/promokit/internal/migration"
	"github.com/vendora/promokit/internal/observability/logger"
	"github.com/vendora/promokit/internal/observability/metrics"
	"github.com/vendora/promokit/internal/observability/tracing"
	"github.com/vendora/promokit/internal/promotion"
	"github.com/vendora/promokit/internal/seed"
	"github.com/vendora/promokit/internal/server"
	"github.com/vendora/promokit/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		tracing.Module,
		metrics.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.RunMigrations(sqlDB); err != nil {
				return err
			}
			if !cfg.IsProduction() {
				return seed.EnsureDemoData(conn)
			}
			return nil
		}),
		fx.Provide(events.NewOutbox),
		clock.Module,

		promotion.Module,
		ledger.Module,
		directory.Module,
		evaluation.Module,
		expiry.Module,

		server.Module,
	)
	app.Run()
}

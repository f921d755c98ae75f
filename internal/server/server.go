package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vendora/promokit/internal/config"
	"github.com/vendora/promokit/internal/evaluation"
	ledgerdomain "github.com/vendora/promokit/internal/ledger/domain"
	"github.com/vendora/promokit/internal/observability/logger"
	"github.com/vendora/promokit/internal/observability/metrics"
	"github.com/vendora/promokit/internal/observability/tracing"
	promotiondomain "github.com/vendora/promokit/internal/promotion/domain"
)

type Param struct {
	fx.In

	Config       config.Config
	DB           *gorm.DB
	Log          *zap.Logger
	PromotionSvc promotiondomain.Service
	Engine       *evaluation.Engine
	Ledger       ledgerdomain.Store
	HTTPMetrics  *metrics.HTTPMetrics `optional:"true"`
}

// Server is the HTTP surface over the promotion catalog and the
// evaluation engine.
type Server struct {
	cfg          config.Config
	db           *gorm.DB
	log          *zap.Logger
	promotionSvc promotiondomain.Service
	engine       *evaluation.Engine
	ledger       ledgerdomain.Store
	httpMetrics  *metrics.HTTPMetrics
	limiter      *rateLimiter
}

func NewServer(p Param) *Server {
	return &Server{
		cfg:          p.Config,
		db:           p.DB,
		log:          p.Log.Named("server"),
		promotionSvc: p.PromotionSvc,
		engine:       p.Engine,
		ledger:       p.Ledger,
		httpMetrics:  p.HTTPMetrics,
		limiter:      newRateLimiter(120, time.Minute),
	}
}

// NewEngine builds the gin engine with the shared middleware chain.
func NewEngine(cfg config.Config, httpMetrics *metrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	engine.Use(tracing.GinMiddleware("promokit"))
	if httpMetrics != nil {
		engine.Use(metrics.GinMiddleware(httpMetrics))
	}
	return engine
}

// RegisterRoutes mounts every route on the engine.
func (s *Server) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", s.Healthz)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/v1")
	v1.Use(s.TenantMiddleware())
	v1.Use(s.RateLimitMiddleware())
	{
		v1.POST("/promotions", s.CreatePromotion)
		v1.GET("/promotions", s.ListPromotions)
		v1.GET("/promotions/:id", s.GetPromotionByID)
		v1.PATCH("/promotions/:id/status", s.SetPromotionStatus)
		v1.POST("/promotions/validate", s.ValidatePromotion)
		v1.GET("/promotions/:id/usage", s.GetPromotionUsage)

		v1.POST("/orders/evaluate", s.EvaluateOrder)
		v1.POST("/orders/preview", s.PreviewOrder)
		v1.POST("/orders/reverse", s.ReverseOrder)
	}
}

// Healthz reports process liveness.
func (s *Server) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RunHTTP starts the HTTP listener under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

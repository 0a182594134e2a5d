package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	assistantdomain "github.com/smallbiznis/invoicerecovery/internal/assistant/domain"
	automationdomain "github.com/smallbiznis/invoicerecovery/internal/automation/domain"
	behaviordomain "github.com/smallbiznis/invoicerecovery/internal/behavior/domain"
	"github.com/smallbiznis/invoicerecovery/internal/config"
	ingestiondomain "github.com/smallbiznis/invoicerecovery/internal/ingestion/domain"
	"github.com/smallbiznis/invoicerecovery/internal/observability"
	obslogger "github.com/smallbiznis/invoicerecovery/internal/observability/logger"
	obstracing "github.com/smallbiznis/invoicerecovery/internal/observability/tracing"
	"github.com/smallbiznis/invoicerecovery/internal/ratelimit"
	"github.com/smallbiznis/invoicerecovery/internal/scheduler"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// Sweeper runs a single reminder sweep on demand.
type Sweeper interface {
	RunOnce(ctx context.Context) (scheduler.SweepResult, error)
}

func NewEngine(log *zap.Logger, obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log, obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, obsCfg observability.Config) *gin.Engine {
	return NewEngine(log, obsCfg)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http.server.failed", zap.Error(err))
				}
			}()
			log.Info("http.server.started", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	automations automationdomain.Service
	behavior    behaviordomain.Service
	ingestion   ingestiondomain.Service
	assistant   assistantdomain.Service
	sweeper     Sweeper
	limiter     *ratelimit.WebhookLimiter
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	Automations automationdomain.Service
	Behavior    behaviordomain.Service
	Ingestion   ingestiondomain.Service
	Assistant   assistantdomain.Service
	Scheduler   *scheduler.Scheduler
	Limiter     *ratelimit.WebhookLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := newServer(p.Gin, p.Cfg, p.Log, p.Automations, p.Behavior, p.Ingestion, p.Assistant, p.Scheduler)
	svc.limiter = p.Limiter
	svc.RegisterRoutes()
	return svc
}

func newServer(
	engine *gin.Engine,
	cfg config.Config,
	log *zap.Logger,
	automations automationdomain.Service,
	behavior behaviordomain.Service,
	ingestion ingestiondomain.Service,
	assistant assistantdomain.Service,
	sweeper Sweeper,
) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		engine:      engine,
		cfg:         cfg,
		log:         log.Named("http.server"),
		automations: automations,
		behavior:    behavior,
		ingestion:   ingestion,
		assistant:   assistant,
		sweeper:     sweeper,
	}
}

func (s *Server) RegisterRoutes() {
	v1 := s.engine.Group("/v1")

	internal := v1.Group("/internal", s.RequireInternalToken())
	internal.POST("/sweeps", s.RunSweep)

	org := v1.Group("/orgs/:org_id", s.RequireOrg())

	org.POST("/invoices/:invoice_id/automation", s.StartAutomation)
	org.GET("/invoices/:invoice_id/automation", s.GetInvoiceAutomation)
	org.POST("/invoices/:invoice_id/automation/stop", s.StopInvoiceAutomation)
	org.POST("/automations/:automation_id/reschedule", s.RescheduleAutomation)
	org.GET("/automations/:automation_id/events", s.ListAutomationEvents)

	org.POST("/clients/analyze", s.AnalyzeOrganization)
	org.POST("/clients/:client_id/analyze", s.AnalyzeClient)
	org.GET("/clients/:client_id/profile", s.GetClientProfile)
	org.GET("/clients/:client_id/insights", s.GetClientInsights)

	webhooks := org.Group("/webhooks", s.RateLimitWebhooks())
	webhooks.POST("/payments", s.PaymentWebhook)
	webhooks.POST("/inbound", s.InboundReply)
	webhooks.POST("/delivery", s.DeliveryStatus)

	org.POST("/assistant/chat", s.AssistantChat)
	org.POST("/assistant/actions", s.AssistantAction)
}

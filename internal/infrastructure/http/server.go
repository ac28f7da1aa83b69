package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	handlers "github.com/gestorhub/billing/internal/adapter/handler/http"
	"github.com/gestorhub/billing/internal/config"
	"github.com/gestorhub/billing/internal/infrastructure/database"
	"github.com/gestorhub/billing/internal/middleware/auth"
	"github.com/gestorhub/billing/internal/usecase"
)

type Server struct {
	config    *config.Config
	logger    *zap.Logger
	echo      *echo.Echo
	repos     *database.Repositories
	syncer    usecase.PaymentSyncer
	reconcile *usecase.ReconcileService
	subs      *usecase.SubscriptionService
}

func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	repos *database.Repositories,
	syncer usecase.PaymentSyncer,
	reconcile *usecase.ReconcileService,
	subs *usecase.SubscriptionService,
) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	return &Server{
		config:    cfg,
		logger:    logger,
		echo:      e,
		repos:     repos,
		syncer:    syncer,
		reconcile: reconcile,
		subs:      subs,
	}
}

func (s *Server) Start() error {
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "billing",
		})
	})

	// Initialize handlers
	webhookHandler := handlers.NewWebhookHandler(s.logger, s.syncer, s.repos.WebhookEvent, s.config.Reconcile.PipelineTimeout)
	reconcileHandler := handlers.NewReconcileHandler(s.logger, s.reconcile)
	paymentHandler := handlers.NewPaymentHandler(s.logger, s.syncer)
	subscriptionHandler := handlers.NewSubscriptionHandler(s.logger, s.subs)
	eventsHandler := handlers.NewWebhookEventsHandler(s.logger, s.repos.WebhookEvent)

	// Webhook routes (outside API versioning, provider calls both verbs)
	s.echo.POST("/webhook", webhookHandler.HandleWebhook)
	s.echo.GET("/webhook", webhookHandler.HandleWebhook)

	internalGuard := auth.InternalMiddleware(auth.InternalConfig{
		InternalToken: s.config.Reconcile.InternalToken,
		JWTSecret:     s.config.Reconcile.JWTSecret,
		AdminEmails:   s.config.Reconcile.AdminEmails,
		Logger:        s.logger,
	})

	// API v1 routes, all guarded
	v1 := s.echo.Group("/api/v1", internalGuard)
	v1.GET("/reconcile", reconcileHandler.Reconcile)
	v1.GET("/payments/status", paymentHandler.GetPaymentStatus)
	v1.GET("/subscriptions/current", subscriptionHandler.GetCurrentSubscription)
	v1.GET("/internal/webhook-events", eventsHandler.ListEvents)
}

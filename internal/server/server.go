package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/stallside/stallside-orders-service/internal/config"
	"github.com/stallside/stallside-orders-service/internal/handlers"
	"github.com/stallside/stallside-orders-service/internal/middleware"
)

type Server struct {
	config   *config.Config
	router   *gin.Engine
	handlers *handlers.Handlers
	logger   *zap.Logger
	httpSrv  *http.Server
}

func NewServer(cfg *config.Config, h *handlers.Handlers, logger *zap.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())

	s := &Server{
		config:   cfg,
		router:   router,
		handlers: h,
		logger:   logger.Named("server"),
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.Health)
	s.router.GET("/ready", s.handlers.Ready)
	s.router.GET("/live", s.handlers.Live)
	s.router.GET("/version", s.handlers.Version)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		// Availability is public; the storefront calls it before login.
		v1.GET("/listings/:id/availability", s.handlers.GetListingAvailability)
		v1.GET("/markets/:id/availability", s.handlers.GetMarketAvailability)
		v1.POST("/pricing/preview", s.handlers.PreviewPricing)

		authed := v1.Group("")
		authed.Use(middleware.RequireActor())
		{
			authed.POST("/orders", s.handlers.CreateOrder)
			authed.GET("/orders/:id", s.handlers.GetOrder)
			authed.POST("/orders/:id/cancel", s.handlers.CancelOrder)

			authed.POST("/items/:id/ready", s.handlers.MarkItemReady)
			authed.POST("/items/:id/external-payment", s.handlers.ConfirmExternalPayment)
			authed.POST("/items/:id/pickup/confirm", s.handlers.ConfirmPickup)
			authed.POST("/items/:id/pickup/issue", s.handlers.ReportPickupIssue)

			authed.GET("/vendors/:id/fee-balance", s.handlers.GetFeeBalance)
			authed.POST("/vendors/:id/fee-balance/pay", s.handlers.PayFeeBalance)
		}
	}
}

func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.config.Server.Port)
	s.logger.Info("Starting server", zap.String("addr", addr))

	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	s.logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

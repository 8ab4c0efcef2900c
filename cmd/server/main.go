// Package main runs the ticketing HTTP API with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ticketline/backend/config"
	"github.com/ticketline/backend/internal/access"
	"github.com/ticketline/backend/internal/auth"
	"github.com/ticketline/backend/internal/carts"
	"github.com/ticketline/backend/internal/emaillogs"
	"github.com/ticketline/backend/internal/events"
	"github.com/ticketline/backend/internal/invoices"
	"github.com/ticketline/backend/internal/middleware"
	"github.com/ticketline/backend/internal/orders"
	"github.com/ticketline/backend/internal/permission"
	"github.com/ticketline/backend/pkg/database"
	"github.com/ticketline/backend/pkg/lock"
	"github.com/ticketline/backend/pkg/queue"
	"github.com/ticketline/backend/pkg/redis"
	"github.com/ticketline/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	locks := lock.NewManager(rdb.Client, time.Duration(cfg.Locks.TTLSeconds)*time.Second)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth and scoping
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)
	accessRepo := access.NewRepository(pool)
	guard := access.NewGuard(accessRepo, authRepo, jwtService, logger)

	// Events
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, logger)

	// Invoices
	invoiceGenerator := invoices.NewGenerator(logger)
	invoiceRepo := invoices.NewRepository(pool)
	invoiceHandler := invoices.NewHandler(invoiceRepo, invoiceGenerator, logger)

	// Orders
	orderRepo := orders.NewRepository(pool)
	orderCreator := orders.NewCreateService(pool, locks, jobQueue, invoiceGenerator, logger)
	orderTransitions := orders.NewTransitionService(orderRepo, locks, jobQueue, invoiceGenerator, logger)
	orderHandler := orders.NewHandler(orderRepo, orderCreator, orderTransitions, logger)

	// Email audit log
	emailLogRepo := emaillogs.NewRepository(pool)
	emailLogHandler := emaillogs.NewHandler(emailLogRepo, logger)

	// Expired cart reaper frees reserved quota in the background.
	cartRepo := carts.NewRepository(pool)
	sweeper, err := carts.NewSweeper(cartRepo, cfg.Carts.SweepSchedule, logger)
	if err != nil {
		logger.Fatal("cart sweeper", zap.Error(err))
	}
	sweeper.Start()
	defer sweeper.Stop()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	api := router.Group("/api/v1")
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("", guard.Authenticate())
	org := protected.Group("/organizers/:organizer")

	// Organizer scope: membership grants listing; the handlers enforce
	// can_create_events for creation themselves.
	orgScope := org.Group("", guard.Organizer("", ""))
	{
		orgScope.GET("/events", eventHandler.List)
		orgScope.POST("/events", eventHandler.Create)
	}

	ev := org.Group("/events/:event")

	// Event settings: capability checks live in the handlers (change
	// settings vs. create/delete are distinct capabilities).
	settings := ev.Group("", guard.Event("", ""))
	{
		settings.GET("", eventHandler.Retrieve)
		settings.PATCH("", eventHandler.Update)
		settings.DELETE("", eventHandler.Destroy)
		settings.POST("/clone", eventHandler.Clone)
	}

	// Order scope: reads need can_view_orders, mutations can_change_orders.
	sales := ev.Group("", guard.Event(permission.CanViewOrders, permission.CanChangeOrders))
	{
		sales.GET("/orders", orderHandler.List)
		sales.POST("/orders", orderHandler.Create)
		sales.GET("/orders/:code", orderHandler.Retrieve)
		sales.POST("/orders/:code/mark_paid", orderHandler.MarkPaid)
		sales.POST("/orders/:code/mark_canceled", orderHandler.MarkCanceled)
		sales.POST("/orders/:code/mark_refunded", orderHandler.MarkRefunded)
		sales.POST("/orders/:code/mark_pending", orderHandler.MarkPending)
		sales.POST("/orders/:code/mark_expired", orderHandler.MarkExpired)
		sales.POST("/orders/:code/extend", orderHandler.Extend)

		sales.GET("/orderpositions", orderHandler.ListPositions)
		sales.GET("/orderpositions/:id", orderHandler.RetrievePosition)

		sales.GET("/invoices", invoiceHandler.List)
		sales.GET("/invoices/:number", invoiceHandler.Retrieve)
		sales.POST("/invoices/:number/regenerate", invoiceHandler.Regenerate)
		sales.POST("/invoices/:number/reissue", invoiceHandler.Reissue)

		sales.GET("/emaillogs", emailLogHandler.List)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

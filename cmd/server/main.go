package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"shop-payments/internal/audit"
	"shop-payments/internal/config"
	"shop-payments/internal/database"
	"shop-payments/internal/domain"
	"shop-payments/internal/gateway"
	"shop-payments/internal/handler"
	"shop-payments/internal/middleware"
	"shop-payments/internal/repo"
	"shop-payments/internal/service"
	"shop-payments/internal/worker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.Info("service configuration",
		zap.String("port", cfg.Port),
		zap.String("active_gateway", cfg.ActiveGateway),
		zap.Duration("autocomplete_tick", cfg.AutoCompleteTick),
		zap.Duration("autocomplete_grace", cfg.AutoCompleteGrace),
		zap.String("zarinpal_merchant", config.MaskSecret(cfg.ZarinPal.MerchantID)),
		zap.String("sadad_terminal", config.MaskSecret(cfg.Sadad.TerminalID)))

	db, err := database.NewPostgres(database.Credentials{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Name:     cfg.DBName,
	})
	if err != nil {
		logger.Fatal("connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(db, cfg.MigrationsPath); err != nil {
		logger.Fatal("run migrations", zap.Error(err))
	}
	logger.Info("database migrations completed")

	var sink audit.Sink
	switch cfg.AuditSink {
	case "kafka":
		sink = audit.NewKafkaSink(cfg.KafkaBrokers, cfg.AuditTopic, logger)
	case "postgres":
		sink = audit.NewPostgresSink(db, logger)
	default:
		sink = audit.NewLogSink(logger)
	}

	orderRepo := repo.NewOrderRepo(db)
	paymentRepo := repo.NewPaymentRepo(db)

	adapters := map[domain.Gateway]gateway.Adapter{
		domain.GatewayZarinPal: gateway.NewZarinPal(cfg.ZarinPal.Sandbox),
		domain.GatewaySadad:    gateway.NewSadad(),
	}

	orderService := service.NewOrderService(orderRepo, paymentRepo, sink, logger, cfg.AutoCompleteGrace)
	paymentService := service.NewPaymentService(
		orderRepo, paymentRepo, adapters, config.NewProvider(cfg), sink, logger, cfg.CallbackURL)

	orderHandler := handler.NewOrderHandler(orderService, logger)
	paymentHandler := handler.NewPaymentHandler(paymentService, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", orderHandler.Create)
		v1.GET("/orders/:id", orderHandler.Get)
		v1.PATCH("/orders/:id/status", orderHandler.SetStatus)
		v1.POST("/payments/:orderID/initiate", paymentHandler.Initiate)
		v1.GET("/payments/verify", paymentHandler.Verify)
		v1.GET("/health", func(c *gin.Context) {
			stats := database.Health(db)
			if stats["status"] != "up" {
				c.JSON(http.StatusServiceUnavailable, stats)
				return
			}
			c.JSON(http.StatusOK, stats)
		})
	}

	workerCtx, stopWorker := context.WithCancel(context.Background())
	autoComplete := worker.NewAutoCompletion(orderRepo, sink, logger, cfg.AutoCompleteTick)
	go autoComplete.Run(workerCtx)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("starting HTTP server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
}

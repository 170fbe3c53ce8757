package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SvetlanaSumets11/CarRental/internal/handler"
	"github.com/SvetlanaSumets11/CarRental/internal/repository"
	"github.com/SvetlanaSumets11/CarRental/internal/service"
	"github.com/SvetlanaSumets11/CarRental/internal/storage"
	"github.com/SvetlanaSumets11/CarRental/pkg/config"
	"github.com/SvetlanaSumets11/CarRental/pkg/logger"
	"github.com/SvetlanaSumets11/CarRental/pkg/metrics"
	"github.com/SvetlanaSumets11/CarRental/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadCar()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx := context.Background()

	pool, err := repository.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	carRepo := repository.NewCarRepository(pool)
	if err := carRepo.Migrate(ctx); err != nil {
		zl.Fatal("Failed to migrate database", zap.Error(err))
	}

	s3Client, err := storage.NewS3Client(ctx, cfg.AWSRegion, cfg.S3Endpoint)
	if err != nil {
		zl.Fatal("Failed to create S3 client", zap.Error(err))
	}
	images := storage.NewImageStore(s3Client, cfg.ImagesBucket, cfg.ImageURLExpiry)

	carService := service.NewCarService(carRepo, images, zl)
	carHandler := handler.NewCarHandler(carService, zl)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serverMetrics := metrics.NewServerMetrics("car_service", registry)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(zl))
	router.Use(middleware.Metrics(serverMetrics))

	carHandler.Register(router)
	router.GET("/metrics", gin.WrapH(metrics.Handler(registry)))
	router.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "healthy", "service": "car-service", "port": cfg.Port}
		if err := pool.Ping(c.Request.Context()); err != nil {
			status["status"] = "unhealthy"
			status["database"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		c.JSON(http.StatusOK, status)
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("Starting HTTP server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Error("Server shutdown failed", zap.Error(err))
	}
	zl.Info("Server stopped")
}

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

	"github.com/SvetlanaSumets11/CarRental/internal/events"
	"github.com/SvetlanaSumets11/CarRental/internal/gateway"
	"github.com/SvetlanaSumets11/CarRental/internal/handler"
	"github.com/SvetlanaSumets11/CarRental/internal/repository"
	"github.com/SvetlanaSumets11/CarRental/internal/service"
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

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer func() { _ = zl.Sync() }()

	zl.Info("Service configuration",
		zap.String("port", cfg.Port),
		zap.String("order_table", cfg.OrderTableName),
		zap.String("car_service_url", cfg.CarServiceURL),
		zap.Int("car_service_retries", cfg.CarServiceRetries),
		zap.Strings("kafka_brokers", cfg.Brokers()))

	ctx := context.Background()

	dynamoClient, err := repository.NewDynamoDBClient(ctx, cfg.AWSRegion, cfg.DynamoDBEndpoint)
	if err != nil {
		zl.Fatal("Failed to create DynamoDB client", zap.Error(err))
	}
	orderRepo := repository.NewOrderRepository(dynamoClient, cfg.OrderTableName)

	cars := gateway.NewCarGateway(gateway.CarGatewayConfig{
		BaseURL:      cfg.CarServiceURL,
		Retries:      cfg.CarServiceRetries,
		RetryWaitMin: cfg.CarServiceRetryWaitMin,
		RetryWaitMax: cfg.CarServiceRetryWaitMax,
		Timeout:      cfg.CarServiceTimeout,
	}, zl)

	var (
		producer     service.EventPublisher        = events.NopPublisher{}
		compensation service.CompensationPublisher = events.NopPublisher{}
		kafkaHealth  func(context.Context) error
	)
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		kafkaProducer, err := events.NewKafkaProducer(brokers, cfg.OrderEventsTopic, zl)
		if err != nil {
			zl.Fatal("Failed to create Kafka producer", zap.Error(err))
		}
		defer kafkaProducer.Close()

		compensationProducer := events.NewCompensationProducer(brokers, cfg.CompensationTopic, zl)
		defer compensationProducer.Close()

		producer, compensation, kafkaHealth = kafkaProducer, compensationProducer, kafkaProducer.HealthCheck
	} else {
		zl.Warn("KAFKA_BROKERS is empty, order events are disabled")
	}

	orderService := service.NewOrderService(orderRepo, cars, producer, compensation, zl)
	orderHandler := handler.NewOrderHandler(orderService, zl)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serverMetrics := metrics.NewServerMetrics("order_service", registry)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(zl))
	router.Use(middleware.Metrics(serverMetrics))

	orderHandler.Register(router)
	router.GET("/metrics", gin.WrapH(metrics.Handler(registry)))
	router.GET("/health", func(c *gin.Context) {
		status := gin.H{
			"status":  "healthy",
			"service": "order-service",
			"port":    cfg.Port,
		}
		if kafkaHealth == nil {
			status["kafka"] = "disabled"
			c.JSON(http.StatusOK, status)
			return
		}
		if err := kafkaHealth(c.Request.Context()); err != nil {
			status["kafka"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		status["kafka"] = "healthy"
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

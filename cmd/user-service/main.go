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

	"github.com/SvetlanaSumets11/CarRental/internal/auth"
	"github.com/SvetlanaSumets11/CarRental/internal/handler"
	"github.com/SvetlanaSumets11/CarRental/internal/mailer"
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

	cfg, err := config.LoadUser()
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
		zap.String("user_table", cfg.UserTableName),
		zap.String("mail_server", cfg.MailServer),
		zap.Duration("access_token_ttl", cfg.AccessTokenTTL))

	ctx := context.Background()

	dynamoClient, err := repository.NewDynamoDBClient(ctx, cfg.AWSRegion, cfg.DynamoDBEndpoint)
	if err != nil {
		zl.Fatal("Failed to create DynamoDB client", zap.Error(err))
	}
	userRepo := repository.NewUserRepository(dynamoClient, cfg.UserTableName, cfg.UserEmailIndex)

	smtpClient, err := mailer.NewSMTPClient(mailer.Config{
		Host:     cfg.MailServer,
		Port:     cfg.MailPort,
		Username: cfg.MailUsername,
		Password: cfg.MailPassword,
	})
	if err != nil {
		zl.Fatal("Failed to create SMTP client", zap.Error(err))
	}

	tokens := auth.NewIssuer(cfg.JWTSecret, auth.TTLs{
		Access:  cfg.AccessTokenTTL,
		Refresh: cfg.RefreshTokenTTL,
		Mail:    cfg.MailTokenTTL,
	})
	userService := service.NewUserService(userRepo, tokens, mailer.New(smtpClient, cfg.MailSender, cfg.InternalUserURL), zl)
	userHandler := handler.NewUserHandler(userService, zl)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serverMetrics := metrics.NewServerMetrics("user_service", registry)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(zl))
	router.Use(middleware.Metrics(serverMetrics))

	userHandler.Register(router)
	router.GET("/metrics", gin.WrapH(metrics.Handler(registry)))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "user-service", "port": cfg.Port})
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

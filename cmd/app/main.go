package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"questhub/internal/api"
	"questhub/internal/api/events"
	"questhub/internal/attestation"
	"questhub/internal/middleware"
	"questhub/internal/oracle"
	"questhub/internal/payments"
	"questhub/internal/repository"
	"questhub/internal/service"
	"questhub/pkg/auth"
	"questhub/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	repo, err := repository.New(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	oracleClient := oracle.NewClient(cfg.Oracle)
	attestClient := attestation.NewClient(cfg.Attestation)
	paymentClient := payments.NewClient(cfg.Payments)
	hub := events.NewHub()

	verificationService := service.NewVerificationService(
		repo, repo, oracleClient, cfg.Verification.Cooldown, cfg.Verification.VerifyTimeout)
	escrowService := service.NewEscrowService(repo, repo, paymentClient)
	raffleService := service.NewRaffleService(repo, repo, hub)
	claimService := service.NewClaimService(
		repo, repo, repo, escrowService, raffleService, verificationService,
		attestClient, hub, cfg.Rewards.PointsWhenExhausted)
	questService := service.NewQuestService(repo, repo, repo, verificationService)

	sweeper := service.NewSweeper(repo, raffleService, escrowService, cfg.Sweeper.Interval)
	if err := sweeper.Start(); err != nil {
		zapLogger.Fatal("Failed to start sweeper", zap.Error(err))
	}
	defer sweeper.Stop()

	signerAuth := auth.NewSignerAuth(cfg.Auth.SessionSecret, cfg.Auth.DebugMode)
	ownership := middleware.NewOwnership(questService)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
	}
	corsConfig.AllowHeaders = []string{"*"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour

	router.Use(cors.New(corsConfig))

	a := router.Group("/api/v1")
	api.NewQuestRoutes(a, questService, signerAuth, ownership)
	api.NewVerificationRoutes(a, verificationService, signerAuth)
	api.NewClaimRoutes(a, claimService, escrowService, signerAuth)
	events.NewEventRoutes(a, hub)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	zapLogger.Info("Starting server", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		zapLogger.Fatal("Failed to start server", zap.Error(err))
	}
}

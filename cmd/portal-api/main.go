package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	v1 "grantflow/grant-portal-backend/api/v1"
	"grantflow/grant-portal-backend/internal/auth"
	"grantflow/grant-portal-backend/internal/ccrs"
	"grantflow/grant-portal-backend/internal/config"
	"grantflow/grant-portal-backend/internal/contributions"
	"grantflow/grant-portal-backend/internal/mail"
	"grantflow/grant-portal-backend/internal/proposals"
	"grantflow/grant-portal-backend/internal/tasks"
	"grantflow/grant-portal-backend/internal/users"
	"grantflow/grant-portal-backend/internal/watcher"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.Logging.Level)
	defer logger.Sync()

	// Connect to database
	gormDB, err := gorm.Open(postgres.Open(cfg.Database.GetDatabaseURL()), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("Failed to access database pool", zap.Error(err))
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxConnections)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	defer sqlDB.Close()

	if err := gormDB.AutoMigrate(
		&users.User{},
		&proposals.Proposal{},
		&proposals.Milestone{},
		&proposals.ProposalArbiter{},
		&proposals.ProposalRevision{},
		&proposals.TeamInvite{},
		&contributions.Contribution{},
		&ccrs.CCR{},
		&tasks.Task{},
	); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// The RFP repository runs raw SQL on its own pool.
	sqlxDB, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect rfp pool", zap.Error(err))
	}
	defer sqlxDB.Close()

	limits, err := grantLimits(cfg)
	if err != nil {
		logger.Fatal("Invalid grant limits in config", zap.Error(err))
	}

	// Outbound email
	var channel mail.Channel
	if cfg.Mail.Disabled {
		channel = mail.NewLogChannel(logger)
	} else {
		ses, err := mail.NewSESChannel(context.Background(), cfg.Mail.SESRegion, cfg.Mail.FromAddress)
		if err != nil {
			logger.Warn("SES unavailable, logging email instead", zap.Error(err))
			channel = mail.NewLogChannel(logger)
		} else {
			channel = ses
		}
	}
	mailer := mail.NewDispatcher(channel, logger)

	watcherClient := watcher.NewClient(cfg.Watcher.URL, cfg.Watcher.AuthToken, cfg.Watcher.Timeout)

	// Task queue. The API process only enqueues; the workers binary executes.
	taskRepo := tasks.NewRepository(gormDB)
	runner, err := tasks.NewRunner(taskRepo, tasks.RunnerConfig{
		PollInterval: cfg.Tasks.PollInterval,
		PoolSize:     cfg.Tasks.PoolSize,
		BatchSize:    cfg.Tasks.BatchSize,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create task runner", zap.Error(err))
	}

	// Domain services
	userRepo := users.NewRepository(gormDB)
	proposalRepo := proposals.NewRepository(gormDB)
	contributionRepo := contributions.NewRepository(gormDB)
	ccrRepo := ccrs.NewRepository(gormDB)

	contributionService := contributions.NewService(
		contributionRepo, proposalRepo, runner, mailer,
		limits.StakingTarget, cfg.Grants.ContributionExpiry, logger)
	proposalService := proposals.NewService(
		proposalRepo, userRepo, contributionService, watcherClient,
		mailer, limits, logger)
	contributionService.SetAdvancer(proposalService)
	proposalService.SetScheduler(runner)

	rfpsAPI := v1.SetupRFPsAPI(sqlxDB, cfg.Grants.RFPClosingDuration, logger)
	ccrService := ccrs.NewService(ccrRepo, userRepo, rfpsAPI.Service, mailer, limits.TargetMax, logger)

	// Hand the watcher our pending set so it can replay missed confirmations.
	if ids, latestTxID, err := contributionService.PendingState(context.Background()); err != nil {
		logger.Error("Failed to load pending contribution state", zap.Error(err))
	} else if err := watcherClient.Bootstrap(context.Background(), ids, latestTxID); err != nil {
		logger.Warn("Watcher bootstrap failed", zap.Error(err))
	}

	// Auth
	issuer := auth.NewTokenIssuer(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	mw := auth.NewMiddleware(issuer, func(ctx context.Context, id uuid.UUID) (bool, error) {
		u, err := userRepo.GetByID(ctx, id)
		if err != nil {
			return false, err
		}
		return u.IsAdmin, nil
	})

	// Setup Router
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register Routes
	api := router.Group("/api/v1")
	{
		proposals.NewHandler(proposalService, logger).RegisterRoutes(api, mw)
		contributions.NewHandler(contributionService, watcherClient, cfg.Watcher.AuthToken, logger).RegisterRoutes(api, mw)
		ccrs.NewHandler(ccrService, logger).RegisterRoutes(api, mw)
		v1.RegisterRFPsRoutes(api, rfpsAPI, mw)
		users.NewHandler(userRepo, logger).RegisterRoutes(api, mw)
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.Int("port", cfg.Server.Port))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func grantLimits(cfg *config.Config) (proposals.Limits, error) {
	targetMax, err := decimal.NewFromString(cfg.Grants.ProposalTargetMax)
	if err != nil {
		return proposals.Limits{}, err
	}
	stakingTarget, err := decimal.NewFromString(cfg.Grants.StakingTarget)
	if err != nil {
		return proposals.Limits{}, err
	}
	return proposals.Limits{
		TargetMax:     targetMax,
		StakingTarget: stakingTarget,
		MaxDeadline:   cfg.Grants.MaxDeadline,
	}, nil
}

func newLogger(level string) *zap.Logger {
	if level == "debug" {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}

package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"grantflow/grant-portal-backend/internal/config"
	"grantflow/grant-portal-backend/internal/contributions"
	"grantflow/grant-portal-backend/internal/mail"
	"grantflow/grant-portal-backend/internal/proposals"
	"grantflow/grant-portal-backend/internal/rfps"
	"grantflow/grant-portal-backend/internal/tasks"
	"grantflow/grant-portal-backend/internal/users"
	"grantflow/grant-portal-backend/internal/watcher"
)

// The workers binary executes everything deferred: the task queue
// (contribution expiry, milestone reminders) and the periodic sweeps
// (funding deadlines, RFP closings).
func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.Logging.Level)
	defer logger.Sync()

	gormDB, err := gorm.Open(postgres.Open(cfg.Database.GetDatabaseURL()), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("Failed to access database pool", zap.Error(err))
	}
	defer sqlDB.Close()

	sqlxDB, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect rfp pool", zap.Error(err))
	}
	defer sqlxDB.Close()

	limits, err := grantLimits(cfg)
	if err != nil {
		logger.Fatal("Invalid grant limits in config", zap.Error(err))
	}

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

	taskRepo := tasks.NewRepository(gormDB)
	runner, err := tasks.NewRunner(taskRepo, tasks.RunnerConfig{
		PollInterval: cfg.Tasks.PollInterval,
		PoolSize:     cfg.Tasks.PoolSize,
		BatchSize:    cfg.Tasks.BatchSize,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create task runner", zap.Error(err))
	}

	userRepo := users.NewRepository(gormDB)
	proposalRepo := proposals.NewRepository(gormDB)
	contributionRepo := contributions.NewRepository(gormDB)

	contributionService := contributions.NewService(
		contributionRepo, proposalRepo, runner, mailer,
		limits.StakingTarget, cfg.Grants.ContributionExpiry, logger)
	proposalService := proposals.NewService(
		proposalRepo, userRepo, contributionService, watcherClient,
		mailer, limits, logger)
	contributionService.SetAdvancer(proposalService)
	proposalService.SetScheduler(runner)

	rfpService := rfps.NewService(rfps.NewPostgresRepository(sqlxDB), cfg.Grants.RFPClosingDuration, logger)

	runner.Register(tasks.JobContributionExpiry, contributionService.HandleExpiry)
	runner.Register(tasks.JobMilestoneDeadline, proposalService.HandleMilestoneDeadline)
	runner.Register(tasks.JobProposalDeadline, func(ctx context.Context, _ json.RawMessage) error {
		return proposalService.ExpireMissedDeadlines(ctx)
	})
	runner.Start()
	defer runner.Stop()

	// Periodic sweeps. The deadline sweep goes through the queue so it runs on
	// the same pool, with the same retry-on-next-poll behavior, as other jobs.
	sweeps := cron.New()
	if _, err := sweeps.AddFunc("@every 10m", func() {
		if err := runner.Enqueue(context.Background(), tasks.JobProposalDeadline, struct{}{}, time.Now()); err != nil {
			logger.Error("Failed to enqueue deadline sweep", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("Failed to schedule deadline sweep", zap.Error(err))
	}
	if _, err := sweeps.AddFunc("@hourly", func() {
		if err := rfpService.CloseExpired(context.Background()); err != nil {
			logger.Error("RFP closing sweep failed", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("Failed to schedule rfp sweep", zap.Error(err))
	}
	sweeps.Start()
	defer sweeps.Stop()

	logger.Info("Workers started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Workers shutting down")
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

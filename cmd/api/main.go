package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/saturnino-fabrica-de-software/guardian/internal/api"
	"github.com/saturnino-fabrica-de-software/guardian/internal/assessment"
	"github.com/saturnino-fabrica-de-software/guardian/internal/audit"
	"github.com/saturnino-fabrica-de-software/guardian/internal/channel"
	"github.com/saturnino-fabrica-de-software/guardian/internal/channel/email"
	"github.com/saturnino-fabrica-de-software/guardian/internal/channel/simulated"
	"github.com/saturnino-fabrica-de-software/guardian/internal/channel/sns"
	"github.com/saturnino-fabrica-de-software/guardian/internal/channel/voice"
	"github.com/saturnino-fabrica-de-software/guardian/internal/config"
	"github.com/saturnino-fabrica-de-software/guardian/internal/database"
	"github.com/saturnino-fabrica-de-software/guardian/internal/decision"
	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
	"github.com/saturnino-fabrica-de-software/guardian/internal/metrics"
	"github.com/saturnino-fabrica-de-software/guardian/internal/notification"
	"github.com/saturnino-fabrica-de-software/guardian/internal/policy"
	"github.com/saturnino-fabrica-de-software/guardian/internal/provider"
	"github.com/saturnino-fabrica-de-software/guardian/internal/provider/bedrock"
	oraclemock "github.com/saturnino-fabrica-de-software/guardian/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/guardian/internal/repository"
	"github.com/saturnino-fabrica-de-software/guardian/internal/service"
	"github.com/saturnino-fabrica-de-software/guardian/internal/tracking"
	"github.com/saturnino-fabrica-de-software/guardian/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting Guardian API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.Bool("simulation_mode", cfg.SimulationMode),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Policy
	loaded, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}
	logger.Info("policy loaded",
		slog.String("source", loaded.Source),
		slog.String("hash", loaded.Hash),
	)
	pol := loaded.Policy

	// Database
	if err := migrate(cfg.DatabaseURL, cfg.AutoMigrate); err != nil {
		return err
	}
	logger.Info("schema ready",
		slog.Uint64("version", uint64(database.SchemaVersion)),
		slog.Bool("auto_migrate", cfg.AutoMigrate),
	)

	pool, err := database.NewPgxPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	assessments := repository.NewAssessmentRepository(pool)
	events := repository.NewEventRepository(pool)
	contacts := repository.NewContactRepository(pool)
	deliveries := repository.NewDeliveryRepository(pool)
	incidents := repository.NewIncidentRepository(pool)
	locations := repository.NewLocationRepository(pool)

	// Inference oracle
	oracle, err := newOracle(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("inference oracle ready", slog.String("provider", oracle.Name()))

	// Notification channels
	registry, err := newRegistry(ctx, cfg, logger)
	if err != nil {
		return err
	}

	renderer, err := notification.NewRenderer("Guardian")
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}

	// Engines
	evaluator := assessment.NewEngine(assessments, oracle, pol.Assessment, logger).
		WithOracleTimeout(cfg.OracleTimeout)
	decider := decision.NewEngine(events, assessments, pol, cfg.SimulationMode, logger)
	orchestrator := notification.NewOrchestrator(registry, deliveries, renderer, pol.Notification, cfg.TrackingBaseURL, logger).
		WithTimeout(cfg.NotifyTimeout)
	liveHub := ws.NewHub(logger)
	coordinator := tracking.NewCoordinator(incidents, locations, tracking.Config{
		TrackingBaseURL: cfg.TrackingBaseURL,
		StaticMapURL:    cfg.StaticMapURL,
	}, logger).WithPublisher(liveHub)

	svc := service.NewEmergencyService(service.Deps{
		Evaluator:   evaluator,
		Decider:     decider,
		Notifier:    orchestrator,
		Tracker:     coordinator,
		Assessments: assessments,
		Events:      events,
		Incidents:   incidents,
		Contacts:    contacts,
		Deliveries:  deliveries,
	}, logger)
	orchestrator.WithCompletion(svc.NotificationsCompleted)

	// Background workers
	timeoutWorker := decision.NewTimeoutWorker(events, svc, cfg.AutoResolveAfter, 0, logger)
	sweeper := tracking.NewSweeper(locations, incidents, logger, cfg.SweepInterval)
	aggregator := metrics.NewAggregator(metrics.NewRepository(pool), logger, time.Minute)

	go timeoutWorker.Start(ctx)
	go sweeper.Start(ctx)
	go aggregator.Start(ctx)
	go liveHub.Run(ctx)

	// Setup router
	router := api.NewRouter(logger, &api.Dependencies{
		DB:                 pool,
		Emergency:          svc,
		Tracker:            coordinator,
		Receipts:           notification.NewReceiptProcessor(deliveries, logger),
		Live:               liveHub,
		Watch:              coordinator,
		Audit:              audit.NewSlogLogger(logger),
		ReceiptSecret:      cfg.ReceiptSecret,
		TrackingBaseURL:    cfg.TrackingBaseURL,
		APIKeys:            cfg.APIKeys,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		PipelineTimeout:    cfg.PipelineTimeout,
	})
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")
	timeoutWorker.Stop()
	sweeper.Stop()
	aggregator.Stop()

	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	logger.Info("server stopped")

	return nil
}

// migrate applies pending migrations when apply is set; otherwise it only
// checks the schema is current.
func migrate(dsn string, apply bool) error {
	db, err := database.NewPool(database.DefaultPoolConfig(dsn))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	migrator, err := database.NewMigrator(db, "guardian")
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() { _ = migrator.Close() }()

	if apply {
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	if err := migrator.Check(); err != nil {
		return fmt.Errorf("schema check failed: %w", err)
	}
	return nil
}

func newOracle(ctx context.Context, cfg *config.Config) (provider.InferenceOracle, error) {
	switch cfg.OracleProvider {
	case "mock":
		return oraclemock.New(), nil
	case "bedrock":
		oracle, err := bedrock.NewOracle(ctx, bedrock.Config{
			Region:  cfg.AWSRegion,
			ModelID: cfg.BedrockModelID,
			Timeout: cfg.OracleTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bedrock oracle: %w", err)
		}
		return oracle, nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q (use bedrock or mock)", cfg.OracleProvider)
	}
}

// newRegistry registers one adapter per channel. Simulation mode never
// reaches a real provider.
func newRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*channel.Registry, error) {
	registry := channel.NewRegistry(cfg.ChannelRatePerSecond)

	if cfg.SimulationMode {
		registry.Register(simulated.New(domain.ChannelSMS))
		registry.Register(simulated.New(domain.ChannelVoice))
		registry.Register(simulated.New(domain.ChannelEmail))
		logger.Warn("simulation mode: notifications are not sent")
		return registry, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	registry.Register(sns.NewFromConfig(awsCfg, sns.Config{OriginationNumber: cfg.SMSOriginationNumber}))

	if cfg.VoiceOriginationID != "" {
		registry.Register(voice.NewFromConfig(awsCfg, voice.Config{
			OriginationIdentity:  cfg.VoiceOriginationID,
			ConfigurationSetName: cfg.VoiceConfigurationSet,
		}))
	} else {
		logger.Warn("voice channel disabled: VOICE_ORIGINATION_IDENTITY not set")
	}

	if cfg.SMTPEnabled() {
		adapter, err := email.New(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure email channel: %w", err)
		}
		registry.Register(adapter)
	} else {
		logger.Warn("email channel disabled: SMTP_HOST not set")
	}

	return registry, nil
}

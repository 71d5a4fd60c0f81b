package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mixelka/metaleads/internal/config"
	"github.com/mixelka/metaleads/internal/database"
	"github.com/mixelka/metaleads/internal/email"
	"github.com/mixelka/metaleads/internal/formatter"
	"github.com/mixelka/metaleads/internal/ingest"
	"github.com/mixelka/metaleads/internal/parser"
	"github.com/mixelka/metaleads/internal/routing"
	"github.com/mixelka/metaleads/internal/telegram"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting meta leads ingestion")

	// Connect to database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations completed")

	// Seed subject mappings
	if cfg.MappingsFile != "" {
		n, err := routing.ApplySeed(ctx, db, cfg.MappingsFile)
		if err != nil {
			logger.Error("failed to apply subject mappings", "error", err, "file", cfg.MappingsFile)
			os.Exit(1)
		}
		logger.Info("subject mappings applied", "count", n, "file", cfg.MappingsFile)
	}

	// Determine IMAP server
	imapAddress := cfg.IMAPAddress()
	if cfg.IMAPHost == "" {
		imapAddress, err = email.NewResolver().ResolveIMAPServer(cfg.IMAPUser)
		if err != nil {
			logger.Error("failed to resolve IMAP server", "error", err)
			os.Exit(1)
		}
		logger.Info("resolved IMAP server", "email", cfg.IMAPUser, "server", imapAddress)
	}

	// Create components
	session := email.NewSession(email.SessionConfig{
		Address:     imapAddress,
		TLS:         cfg.IMAPTLS,
		Username:    cfg.IMAPUser,
		Password:    cfg.IMAPPassword,
		DialTimeout: cfg.IMAPDialTimeout,
	}, logger)
	processor := ingest.NewProcessor(
		parser.NewLeadParser(),
		routing.NewResolver(db, logger),
		db,
		logger,
	)
	service := ingest.NewService(session, processor, logger)

	// Create bot (optional)
	var bot *telegram.Bot
	if cfg.TelegramEnabled() {
		bot, err = telegram.NewBot(telegram.BotDeps{
			Config:    cfg,
			DB:        db,
			Service:   service,
			Formatter: formatter.NewTelegramFormatter(),
			Logger:    logger,
		})
		if err != nil {
			logger.Error("failed to create bot", "error", err)
			os.Exit(1)
		}
		bot.SetupLeadNotifications()
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MonitoringEnabled {
		if err := service.StartMonitoring(ctx, cfg.EmailPollInterval, cfg.LookbackDays); err != nil {
			logger.Error("failed to start monitoring", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("mailbox monitoring disabled")
	}

	logger.Info("running, press Ctrl+C to stop")
	if bot != nil {
		bot.Start(ctx)
	} else {
		<-ctx.Done()
	}

	logger.Info("shutting down...")
	service.StopMonitoring()
	logger.Info("stopped")
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

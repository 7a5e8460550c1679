package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aisti-labs/insight-engine/internal/insight"
	"github.com/aisti-labs/insight-engine/internal/insight/automation"
	"github.com/aisti-labs/insight-engine/pkg/config"
	"github.com/aisti-labs/insight-engine/pkg/health"
	"github.com/aisti-labs/insight-engine/pkg/mqtt"
	"github.com/aisti-labs/insight-engine/pkg/postgres"
	"github.com/aisti-labs/insight-engine/pkg/redis"
)

func main() {
	cfg := config.NewConfig()
	cfg.ServiceName = "insight-agent"
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting Insight Agent",
		"mqtt", cfg.MQTTAddress(),
		"redis", cfg.RedisAddress(),
		"archive", cfg.ArchiveEnabled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	mqttClient := mqtt.NewClient(cfg, logger)
	redisClient := redis.NewClient(cfg, logger)
	store := insight.NewStore(redisClient, logger)

	var archive *insight.Archive
	if cfg.ArchiveEnabled {
		pgClient := postgres.NewClient(cfg, logger)
		if err := pgClient.Connect(ctx); err != nil {
			logger.Error("Failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pgClient.Disconnect()

		archive = insight.NewArchive(pgClient, logger)
		if err := archive.EnsureSchema(ctx); err != nil {
			logger.Error("Failed to prepare archive schema", "error", err)
			os.Exit(1)
		}
	}

	engine := insight.NewEngine(cfg, logger, store, archive)
	if err := engine.Restore(ctx); err != nil {
		logger.Warn("State restore failed, starting empty", "error", err)
	}

	if err := loadRules(engine, cfg, logger); err != nil {
		logger.Error("Failed to load automation rules", "error", err)
		os.Exit(1)
	}

	agent := insight.NewAgent(mqttClient, engine, cfg, logger)

	checker := health.NewChecker(mqttClient, redisClient, logger)
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", checker.HandlerFunc())
		mux.HandleFunc("/health/detailed", checker.DetailedHandlerFunc())
		addr := fmt.Sprintf(":%d", cfg.HealthPort)
		logger.Info("Health server listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("Health server failed", "error", err)
		}
	}()

	agentErr := make(chan error, 1)
	go func() {
		if err := agent.Start(ctx); err != nil {
			agentErr <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received")
	case err := <-agentErr:
		logger.Error("Agent failed", "error", err)
	}

	cancel()
	agent.Stop()
	logger.Info("Insight agent stopped")
}

// loadRules installs the configured rules file, or the built-in set
// when none is given.
func loadRules(engine *insight.Engine, cfg *config.Config, logger *slog.Logger) error {
	rules := automation.DefaultRules()
	if cfg.RulesFile != "" {
		loaded, err := automation.LoadRules(cfg.RulesFile)
		if err != nil {
			return err
		}
		rules = loaded
		logger.Info("Automation rules loaded", "file", cfg.RulesFile, "count", len(rules))
	}
	for _, rule := range rules {
		if err := engine.AddRule(rule); err != nil {
			return err
		}
	}
	return nil
}

func logLevel(level string) slog.Level {
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

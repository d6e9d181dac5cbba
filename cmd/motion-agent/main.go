package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/saaga0h/motion-gate/internal/diag"
	"github.com/saaga0h/motion-gate/internal/gating"
	"github.com/saaga0h/motion-gate/pkg/config"
	"github.com/saaga0h/motion-gate/pkg/health"
	"github.com/saaga0h/motion-gate/pkg/logging"
	"github.com/saaga0h/motion-gate/pkg/mqtt"
	"github.com/saaga0h/motion-gate/pkg/postgres"
	"github.com/saaga0h/motion-gate/pkg/redis"
)

func main() {
	// Load configuration with hierarchy: defaults → file → env → flags
	cfg := config.NewConfig()
	cfg.ServiceName = "motion-agent"
	cfg.LoadFromEnv()
	if path := config.ConfigFileFromArgs(os.Args[1:]); path != "" {
		cfg.ConfigFile = path
	}
	if cfg.ConfigFile != "" {
		if err := cfg.LoadFromFile(cfg.ConfigFile); err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(1)
		}
		cfg.LoadFromEnv()
	}
	cfg.LoadFromFlags()
	cfg.ApplyMotionFlags(pflag.CommandLine)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	estimatorCfg, err := cfg.EstimatorConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging
	loggers, err := logging.New(cfg.LogBackend, cfg.LogLevel, cfg.ServiceName, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging error: %v\n", err)
		os.Exit(1)
	}
	defer loggers.Sync()
	logger := loggers.Slog

	var sink diag.Sink = diag.NewSlogSink(logger)
	if loggers.Zap != nil {
		sink = diag.NewZapSink(loggers.Zap)
	}

	logger.Info("Starting motion agent",
		"service_name", cfg.ServiceName,
		"mqtt_broker", cfg.MQTTAddress(),
		"redis_host", cfg.RedisAddress(),
		"postgres_enabled", cfg.PostgresEnabled(),
		"motion_preset", cfg.MotionPreset,
		"log_level", cfg.LogLevel,
		"log_backend", cfg.LogBackend)

	// Set up context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	mqttClient := mqtt.NewClient(cfg, logger)
	redisClient := redis.NewClient(cfg, logger)

	// Postgres is optional; without it transitions only go to Redis
	var pgClient postgres.Client
	if cfg.PostgresEnabled() {
		pgClient = postgres.NewClient(cfg, logger)
	}

	agent := gating.NewAgent(mqttClient, redisClient, pgClient, cfg, estimatorCfg, sink, logger)

	// Start health check, state and chart server
	healthChecker := health.NewChecker(mqttClient, redisClient, pgClient, logger)
	httpServer := startHTTPServer(cfg.HealthPort, healthChecker, agent, logger)

	// Start agent in a goroutine
	agentErr := make(chan error, 1)
	go func() {
		if err := agent.Start(ctx); err != nil {
			logger.Error("Agent error", "error", err)
			agentErr <- err
		}
	}()

	// Wait for shutdown signal or agent error
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received (SIGTERM/SIGINT)")
	case err := <-agentErr:
		logger.Error("Agent failed", "error", err)
	}

	// Graceful shutdown
	logger.Info("Initiating graceful shutdown")
	cancel()

	if err := agent.Stop(); err != nil {
		logger.Error("Error stopping agent", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", "error", err)
	}

	logger.Info("Motion agent shutdown complete")
}

func startHTTPServer(port int, checker *health.Checker, agent *gating.Agent, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", checker.HandlerFunc())
	mux.HandleFunc("/health/detailed", checker.DetailedHandlerFunc())
	agent.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	return server
}

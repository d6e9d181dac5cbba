package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/saaga0h/motion-gate/internal/chart"
	"github.com/saaga0h/motion-gate/internal/diag"
	"github.com/saaga0h/motion-gate/internal/replay"
	"github.com/saaga0h/motion-gate/pkg/config"
	"github.com/saaga0h/motion-gate/pkg/logging"
	"github.com/saaga0h/motion-gate/pkg/mqtt"
)

func main() {
	cfg := config.NewConfig()
	cfg.ServiceName = "motion-replay"
	cfg.LogLevel = "warn"
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

	fs := pflag.CommandLine
	cfg.RegisterFlags(fs)
	input := fs.String("input", "", "Dataset to replay: CSV (timestamp,x,y,z) or YAML scenario (required)")
	device := fs.String("device", "replay", "Device ID used when publishing")
	publish := fs.Bool("publish", false, "Publish the dataset to the MQTT broker instead of only replaying offline")
	speed := fs.Float64("speed", 1, "Publish pacing multiplier (0 publishes as fast as possible)")
	pngPath := fs.String("png", "", "Write a chart of the last history window to this PNG file")
	summaryPath := fs.String("summary", "", "Write the replay summary as JSON to this file")
	recordPath := fs.String("record", "", "Record the device's live samples to this CSV file instead of replaying")
	duration := fs.Duration("duration", time.Minute, "Recording length")
	width := fs.Int("width", 1200, "Chart width in pixels")
	height := fs.Int("height", 400, "Chart height in pixels")
	pflag.Parse()
	cfg.ApplyMotionFlags(fs)

	if *input == "" && *recordPath == "" {
		fmt.Fprintf(os.Stderr, "Error: --input or --record is required\n")
		pflag.Usage()
		os.Exit(1)
	}

	loggers, err := logging.New(cfg.LogBackend, cfg.LogLevel, cfg.ServiceName, os.Stderr)
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

	if *recordPath != "" {
		if err := record(cfg, *device, *recordPath, *duration, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Recording failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	dataset, err := replay.LoadFile(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load dataset: %v\n", err)
		os.Exit(1)
	}

	// A scenario's preset applies unless the command line picked one
	if dataset.Preset != "" && !fs.Changed("motion-preset") {
		cfg.MotionPreset = dataset.Preset
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	estimatorCfg, err := cfg.EstimatorConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Replaying dataset",
		"name", dataset.Name,
		"samples", len(dataset.Samples),
		"preset", cfg.MotionPreset)

	result := replay.Run(estimatorCfg, dataset.Samples, sink)
	summary := replay.Summarize(dataset.Name, result)
	printSummary(summary)

	if *summaryPath != "" {
		if err := replay.SaveSummary(summary, *summaryPath); err != nil {
			logger.Warn("Failed to save summary", "error", err)
		} else {
			logger.Info("Summary saved", "path", *summaryPath)
		}
	}

	if *pngPath != "" {
		if err := writePNG(*pngPath, result, cfg.MaxStateHistory, *width, *height); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write chart: %v\n", err)
			os.Exit(1)
		}
		logger.Info("Chart saved", "path", *pngPath)
	}

	if *publish {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		client := mqtt.NewClient(cfg, logger)
		if err := client.Connect(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to connect to MQTT broker: %v\n", err)
			os.Exit(1)
		}
		defer client.Disconnect()

		if err := replay.NewPublisher(client, logger).Publish(ctx, *device, dataset.Samples, *speed); err != nil {
			fmt.Fprintf(os.Stderr, "Publish failed: %v\n", err)
			os.Exit(1)
		}
	}
}

// record captures live samples until the duration elapses or a signal arrives
func record(cfg *config.Config, deviceID, path string, duration time.Duration, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := mqtt.NewClient(cfg, logger)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	defer client.Disconnect()

	recorder := replay.NewRecorder(client, logger)
	if err := recorder.Start(deviceID); err != nil {
		return err
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := recorder.WriteCSV(f); err != nil {
		return err
	}
	logger.Info("Recording saved", "path", path, "samples", len(recorder.Samples()))
	return f.Close()
}

func printSummary(s replay.Summary) {
	fmt.Printf("Dataset:         %s\n", s.Name)
	fmt.Printf("Samples:         %d (%.1f s)\n", s.Samples, float64(s.DurationMs)/1000)
	fmt.Printf("Transitions:     %d\n", s.Transitions)
	fmt.Printf("Moving fraction: %.3f\n", s.MovingFraction)
	fmt.Printf("RMS mean/std:    %.4f / %.4f (max %.4f)\n", s.MeanRMS, s.StdDevRMS, s.MaxRMS)
	for _, ev := range s.Events {
		fmt.Printf("  #%-6d t=%-14d %s\n", ev.Index, ev.State.Timestamp, ev.State.Label())
	}
}

func writePNG(path string, result *replay.Result, maxHistory, width, height int) error {
	history := result.States
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	shapes := chart.Transform(history, nil, float64(width), float64(height))
	if err := chart.RenderPNG(f, shapes, width, height); err != nil {
		return err
	}
	return f.Close()
}

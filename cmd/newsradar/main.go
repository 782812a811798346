// Package main contains the entrypoint for the newsradar pipeline.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgard/newsradar/internal/analyzer"
	"github.com/edgard/newsradar/internal/archive"
	"github.com/edgard/newsradar/internal/config"
	"github.com/edgard/newsradar/internal/logger"
	"github.com/edgard/newsradar/internal/model"
	"github.com/edgard/newsradar/internal/publish"
	"github.com/edgard/newsradar/internal/radar"
	"github.com/edgard/newsradar/internal/replay"
	"github.com/edgard/newsradar/internal/source"
	"github.com/edgard/newsradar/internal/source/rss"
	"github.com/edgard/newsradar/internal/source/telegram"
	"github.com/edgard/newsradar/internal/validate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes all components from configuration, executes a single
// detection pass or the daemon loop, and returns the process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "", "Path to configuration file (default ./config.yaml when present)")
	messagesPath := flag.String("messages-json", "", "Replay a recorded message dump instead of fetching")
	outputPath := flag.String("output", "", "Write candidate JSON to this file instead of stdout")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info("Logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	if *messagesPath != "" {
		cfg.Source.Mode = "replay"
		cfg.Source.MessagesFile = *messagesPath
	}
	if *outputPath != "" {
		cfg.Output = *outputPath
	}

	pipeline, cleanup, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to build pipeline", "error", err)
		return 1
	}
	defer cleanup()

	writeResult := func(result *radar.Result) {
		if err := writeCandidates(result.Candidates, cfg.Output); err != nil {
			log.Error("Failed to write candidates", "error", err)
		}
	}

	if cfg.Scheduler.Enabled {
		sched, err := radar.NewScheduler(pipeline, cfg.Scheduler.Interval, log, writeResult)
		if err != nil {
			log.Error("Failed to create scheduler", "error", err)
			return 1
		}
		if err := sched.Start(ctx); err != nil {
			log.Error("Failed to start scheduler", "error", err)
			return 1
		}

		<-ctx.Done()
		log.Info("Shutdown signal received, stopping scheduler...")
		if err := sched.Stop(); err != nil {
			log.Error("Scheduler shutdown failed", "error", err)
			return 1
		}
		log.Info("Stopped gracefully.")
		return 0
	}

	result, err := pipeline.RunOnce(ctx, time.Now().UTC())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("Run cancelled.")
			return 0
		}
		log.Error("Detection run failed", "error", err)
		return 1
	}
	writeResult(result)
	return 0
}

// buildPipeline wires the configured source, analyzer, and optional
// delivery stages. The returned cleanup closes whatever was opened.
func buildPipeline(ctx context.Context, cfg *config.Config, log *slog.Logger) (*radar.Pipeline, func(), error) {
	quality, err := loadChannelQuality(cfg)
	if err != nil {
		return nil, nil, err
	}

	pipeline := &radar.Pipeline{
		Analyzer: analyzer.New(analyzer.Config{
			WindowHours:    cfg.Analyzer.WindowHours,
			DedupThreshold: cfg.Analyzer.DedupThreshold,
			MinHotness:     cfg.Analyzer.MinHotness,
			ChannelQuality: quality,
		}, log),
		Logger: log,
	}

	switch cfg.Source.Mode {
	case "replay":
		path := cfg.Source.MessagesFile
		if path == "" {
			return nil, nil, fmt.Errorf("replay mode requires source.messages_file")
		}
		pipeline.Loader = func() ([]*model.Message, error) {
			return replay.LoadMessages(path)
		}
	case "rss":
		pipeline.Fetcher = rss.New(cfg.Source.RSSTemplate, log)
	default:
		pipeline.Fetcher = telegram.New(nil, log)
	}

	if pipeline.Fetcher != nil {
		channels, err := loadChannels(cfg)
		if err != nil {
			return nil, nil, err
		}
		if len(channels) == 0 {
			return nil, nil, fmt.Errorf("no channels configured; set source.channels or source.channels_file")
		}
		pipeline.Channels = channels
		pipeline.SourceOpts = source.Options{
			WindowHours: cfg.Analyzer.WindowHours,
			MaxAttempts: cfg.Source.MaxAttempts,
			BaseDelay:   cfg.Source.BaseDelay,
			MaxDelay:    cfg.Source.MaxDelay,
		}
	}

	cleanup := func() {}
	if cfg.Archive.Enabled {
		store, err := archive.Open(cfg.Archive.Path, log)
		if err != nil {
			return nil, nil, fmt.Errorf("open archive: %w", err)
		}
		pipeline.Store = store
		cleanup = func() {
			if err := store.Close(); err != nil {
				log.Error("Error closing archive", "error", err)
			}
		}
	}

	if cfg.Validator.APIKey != "" {
		validator, err := validate.New(ctx, cfg.Validator.APIKey, cfg.Validator.Model, cfg.Validator.MinScore, log)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("create validator: %w", err)
		}
		pipeline.Validator = validator
	}

	if cfg.Publish.Enabled {
		publisher, err := publish.New(cfg.Publish.BotToken, cfg.Publish.ChatID, log)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("create publisher: %w", err)
		}
		pipeline.Publisher = publisher
	}

	return pipeline, cleanup, nil
}

// loadChannelQuality merges inline quality weights with the optional
// quality file; inline entries win on conflict.
func loadChannelQuality(cfg *config.Config) (map[string]float64, error) {
	if cfg.Analyzer.ChannelQualityFile == "" {
		return cfg.Analyzer.ChannelQuality, nil
	}

	quality, err := replay.LoadChannelQuality(cfg.Analyzer.ChannelQualityFile)
	if err != nil {
		return nil, err
	}
	for channel, score := range cfg.Analyzer.ChannelQuality {
		quality[channel] = score
	}
	return quality, nil
}

func loadChannels(cfg *config.Config) ([]string, error) {
	channels := make([]string, 0, len(cfg.Source.Channels))
	seen := make(map[string]bool)
	for _, channel := range cfg.Source.Channels {
		if channel != "" && !seen[channel] {
			channels = append(channels, channel)
			seen[channel] = true
		}
	}

	if cfg.Source.ChannelsFile != "" {
		fromFile, err := replay.LoadChannels(cfg.Source.ChannelsFile)
		if err != nil {
			return nil, err
		}
		for _, channel := range fromFile {
			if !seen[channel] {
				channels = append(channels, channel)
				seen[channel] = true
			}
		}
	}
	return channels, nil
}

// writeCandidates serializes candidates as indented JSON to the output
// file, or stdout when no file is configured. An empty run writes an
// empty array so consumers always get valid JSON.
func writeCandidates(candidates []*model.Candidate, path string) error {
	if candidates == nil {
		candidates = []*model.Candidate{}
	}

	serialized, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}
	serialized = append(serialized, '\n')

	if path == "" {
		_, err = os.Stdout.Write(serialized)
		return err
	}
	if err := os.WriteFile(path, serialized, 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}

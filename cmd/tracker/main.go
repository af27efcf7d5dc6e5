// Package main provides the tracker entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/thekakkun/mpd-tracker/internal/app/outcome"
	"github.com/thekakkun/mpd-tracker/internal/app/tracker"
	"github.com/thekakkun/mpd-tracker/internal/app/verdict"
	"github.com/thekakkun/mpd-tracker/internal/infra/config"
	"github.com/thekakkun/mpd-tracker/internal/infra/library"
	"github.com/thekakkun/mpd-tracker/internal/infra/logger"
	mpdinfra "github.com/thekakkun/mpd-tracker/internal/infra/mpd"
	"github.com/thekakkun/mpd-tracker/internal/pkg/clock"
)

var (
	app        = kingpin.New("mpd-tracker", "Observes MPD playback and scores listens as played/skipped/neither")
	configPath = app.Flag("config", "Path to config file").Default("config/tracker.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
)

func main() {
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("tracker error: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	libStore, err := library.Open(cfg.Library.DBPath)
	if err != nil {
		return fmt.Errorf("opening library store: %w", err)
	}
	defer libStore.Close()

	client, err := mpdinfra.Dial(mpdinfra.Config{
		Host:     cfg.MPD.Host,
		Port:     cfg.MPD.Port,
		Password: cfg.MPD.Password,
	})
	if err != nil {
		return fmt.Errorf("connecting to mpd: %w", err)
	}
	defer client.Close()

	clk := clock.Real{}
	sink := verdict.New(libStore, clk)
	outcomeCfg := outcome.Config{
		PlayTimeCap:   cfg.Tracker.PlayTimeCap(),
		PlayPercent:   cfg.Tracker.PlayPercent,
		SkipTimeFloor: cfg.Tracker.SkipTimeFloor(),
		SkipPercent:   cfg.Tracker.SkipPercent,
	}

	loop := tracker.New(client, sink, outcomeCfg, cfg.Tracker.EndTolerance(), clk)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		zlog.Info().Msg("received shutdown signal, stopping tracker...")
		cancel()
	}()

	zlog.Info().Msgf("tracker started: mpd=%s:%d", cfg.MPD.Host, cfg.MPD.Port)
	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("tracker loop: %w", err)
	}

	zlog.Info().Msg("tracker stopped")
	return nil
}

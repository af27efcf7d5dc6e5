// Package main provides the auto-queue entry point.
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

	"github.com/thekakkun/mpd-tracker/internal/app/autoqueue"
	"github.com/thekakkun/mpd-tracker/internal/infra/config"
	"github.com/thekakkun/mpd-tracker/internal/infra/library"
	"github.com/thekakkun/mpd-tracker/internal/infra/logger"
	mpdinfra "github.com/thekakkun/mpd-tracker/internal/infra/mpd"
)

var (
	app        = kingpin.New("mpd-dj", "Keeps MPD's queue topped up from the external library")
	configPath = app.Flag("config", "Path to config file").Default("config/tracker.yaml").String()
	items      = app.Flag("items", "Target queue depth").Short('n').Int()
	album      = app.Flag("album", "Queue whole albums instead of individual items").Short('a').Bool()
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

	targetDepth := cfg.AutoQueue.Items
	if *items > 0 {
		targetDepth = *items
	}
	albumMode := cfg.AutoQueue.Album || *album

	if err := run(cfg, targetDepth, albumMode); err != nil {
		zlog.Error().Msgf("dj error: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, targetDepth int, albumMode bool) error {
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

	loop := autoqueue.New(client, libStore, autoqueue.Config{
		TargetDepth: targetDepth,
		Album:       albumMode,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		zlog.Info().Msg("received shutdown signal, stopping dj...")
		cancel()
	}()

	zlog.Info().Msgf("dj started: mpd=%s:%d target_depth=%d album=%t", cfg.MPD.Host, cfg.MPD.Port, targetDepth, albumMode)
	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("auto-queue loop: %w", err)
	}

	zlog.Info().Msg("dj stopped")
	return nil
}

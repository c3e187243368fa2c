package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/vladimiradmaev/wellnest/internal/api"
	"github.com/vladimiradmaev/wellnest/internal/app"
	"github.com/vladimiradmaev/wellnest/internal/bot"
	"github.com/vladimiradmaev/wellnest/internal/bot/state"
	"github.com/vladimiradmaev/wellnest/internal/config"
	"github.com/vladimiradmaev/wellnest/internal/ingest"
	"github.com/vladimiradmaev/wellnest/internal/logger"
	"github.com/vladimiradmaev/wellnest/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration:\n%v\n", err)
		os.Exit(1)
	}

	if err := logger.InitWithConfig(cfg.LoggerSettings()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting WellNest", "store", cfg.Store.Driver)
	if err := run(ctx, cfg); err != nil {
		logger.Error("WellNest stopped with error", "error", err)
		logger.Close()
		os.Exit(1)
	}
	logger.Info("WellNest stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	c, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	g, ctx := errgroup.WithContext(ctx)

	application := api.NewApplication(cfg.HTTP, c.APIServices(), logger.GetLogger())
	g.Go(func() error {
		return application.Run(ctx, application.Mount())
	})

	if cfg.Telegram.Token != "" {
		stateManager, closeState, err := newStateManager(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer closeState()

		telegramBot, err := bot.NewBot(cfg.Telegram, c.BotDependencies(), stateManager)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return telegramBot.Start(ctx)
		})
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, chat bot disabled")
	}

	if cfg.MQTT.Broker != "" {
		sub := ingest.NewSubscriber(cfg.MQTT, c.CGM, logger.GetLogger())
		g.Go(func() error {
			return sub.Run(ctx)
		})
	}

	if c.FitbitSync != nil {
		job := worker.Periodic{
			Name:     "fitbit-sync",
			Interval: cfg.Fitbit.SyncInterval,
			Fn:       c.FitbitSync.SyncAll,
			Logger:   logger.GetLogger(),
		}
		g.Go(func() error {
			job.Run(ctx)
			return nil
		})
	}

	return g.Wait()
}

// newStateManager keeps bot conversations in redis when it is configured
func newStateManager(ctx context.Context, cfg config.RedisConfig) (state.StateManager, func(), error) {
	if cfg.Addr == "" {
		logger.Info("Using in-memory bot state")
		return state.NewManager(), func() {}, nil
	}
	m, err := state.NewRedisManager(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("Using redis bot state", "addr", cfg.Addr)
	return m, func() { _ = m.Close() }, nil
}

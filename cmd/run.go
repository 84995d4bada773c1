package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	telegoBot "mediapool-bot/bot"
	"mediapool-bot/internal/auth"
	"mediapool-bot/internal/batch"
	"mediapool-bot/internal/config"
	"mediapool-bot/internal/delivery"
	"mediapool-bot/internal/handlers"
	"mediapool-bot/internal/history"
	"mediapool-bot/internal/locales"
	"mediapool-bot/internal/metrics"
	"mediapool-bot/internal/preferences"
	"mediapool-bot/internal/selector"

	sentry "github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot",
		Long:  "Migrate the storage, then process Telegram updates with long polling until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

// allowedUpdates are the update kinds the bot routes.
var allowedUpdates = []string{"message", "channel_post", "callback_query"}

func run(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	locales.Init(cfg.DefaultLanguage)

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.AppEnv,
		Release:          cfg.Version,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		Debug:            cfg.Debug,
	})
	if err != nil {
		return fmt.Errorf("sentry.Init: %w", err)
	}
	defer sentry.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	store, err := openStore(ctx, cfg)
	if err != nil {
		sentry.CaptureException(err)
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Printf("Error closing storage: %v", err)
			sentry.CaptureException(err)
		}
	}()
	if err := store.Migrate(ctx); err != nil {
		sentry.CaptureException(err)
		return err
	}

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	engineMetrics, err := metrics.NewEngineMetrics(registry)
	if err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, registry); err != nil {
				log.Printf("Metrics server stopped: %v", err)
				sentry.CaptureException(err)
			}
		}()
	}

	// --- Membership cache ---
	cache, closeCache, err := newMembershipCache(ctx, cfg)
	if err != nil {
		sentry.CaptureException(err)
		return err
	}
	defer func() {
		if err := closeCache(); err != nil {
			log.Printf("Error closing membership cache: %v", err)
		}
	}()

	// --- Telegram client ---
	var tgBot *telego.Bot
	if cfg.Debug {
		tgBot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultDebugLogger())
	} else {
		tgBot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultLogger(false, false))
	}
	if err != nil {
		sentry.CaptureException(err)
		return fmt.Errorf("failed to create telego bot: %w", err)
	}
	api := telegoBot.NewLimitedAPI(tgBot, cfg.APIRateLimit)

	// --- Engine ---
	checker, err := auth.NewChecker(api, cache, engineMetrics)
	if err != nil {
		return err
	}
	prefs := preferences.NewStore(store)
	tracker := history.NewTracker(store)
	validator, err := delivery.New(delivery.Deps{
		Sender:   api,
		Repo:     store,
		Prefs:    prefs,
		Selector: selector.New(store, selector.WithMetrics(engineMetrics)),
		History:  tracker,
		Members:  checker,
		Metrics:  engineMetrics,
	})
	if err != nil {
		return err
	}
	defer validator.Wait()

	messageHandler, err := handlers.NewMessageHandler(handlers.HandlerDeps{
		Store:   store,
		Server:  validator,
		Prefs:   prefs,
		History: tracker,
		Batch:   batch.NewMachine(store, api, engineMetrics),
		Admins:  checker,
		Debug:   cfg.Debug,
	})
	if err != nil {
		return err
	}

	// --- Update loop ---
	updates, err := tgBot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: allowedUpdates,
	})
	if err != nil {
		sentry.CaptureException(err)
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	appBot, err := telegoBot.New(telegoBot.BotDeps{
		Bot:         api,
		UpdatesChan: updates,
		Debug:       cfg.Debug,
		Handler:     messageHandler,
	})
	if err != nil {
		sentry.CaptureException(err)
		return err
	}

	appBot.Start(ctx)
	log.Println("Bot shutdown complete.")
	return nil
}

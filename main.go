package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BatmanBruc/file-share-bot/internal/adverify"
	"github.com/BatmanBruc/file-share-bot/internal/api"
	"github.com/BatmanBruc/file-share-bot/internal/background"
	"github.com/BatmanBruc/file-share-bot/internal/config"
	"github.com/BatmanBruc/file-share-bot/internal/handlers"
	"github.com/BatmanBruc/file-share-bot/internal/logging"
	"github.com/BatmanBruc/file-share-bot/internal/middleware"
	"github.com/BatmanBruc/file-share-bot/internal/scheduler"
	"github.com/BatmanBruc/file-share-bot/internal/settings"
	"github.com/BatmanBruc/file-share-bot/internal/subscription"
	"github.com/BatmanBruc/file-share-bot/store"
	"github.com/BatmanBruc/file-share-bot/types"
)

// appStore is what the bot needs from its persistence backend.
type appStore interface {
	types.FileStore
	types.UserStore
	types.AdClickStore
	types.DeletionStore
	types.SettingsStore
	Ping(ctx context.Context) error
}

func main() {
	_ = config.LoadEnvFile("config.env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("bot stopped with error", zap.Error(err))
	}
	logger.Info("bot stopped")
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (appStore, func(), error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	}
	pg, err := store.NewPostgresStore(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var events *store.RedisClient
	if cfg.Redis.Addr != "" {
		events, err = store.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			logger.Warn("redis unavailable, settings changes stay local", zap.Error(err))
			events = nil
		} else {
			defer events.Close()
		}
	}

	b, err := bot.New(cfg.BotToken,
		bot.WithHTTPClient(50*time.Second, &http.Client{Timeout: 2 * time.Minute}),
	)
	if err != nil {
		return err
	}

	settingsProvider := settings.NewCached(st, cfg.Defaults, cfg.SettingsTTL, logger)
	if events != nil {
		go settingsProvider.Listen(ctx, events.SettingsChanges(ctx))
	}

	runner, err := background.New(64, 10*time.Second, logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	reaper := scheduler.NewReaper(st, b, settingsProvider, logger, scheduler.Config{
		Interval:  cfg.Reaper.Interval,
		BatchSize: cfg.Reaper.BatchSize,
		MaxRuns:   cfg.Reaper.MaxRuns,
	})
	if events != nil {
		reaper.WithLocker(events)
	}
	ads := adverify.NewEngine(st, logger)

	deps := handlers.Deps{
		API:        b,
		Files:      st,
		Users:      st,
		Ads:        ads,
		Gate:       subscription.NewGate(b, logger),
		Settings:   settingsProvider,
		Deletions:  reaper,
		Pending:    st,
		Background: runner,
		Log:        logger,
	}
	if events != nil {
		deps.Notifier = events
	}
	h := handlers.NewHandlers(deps, handlers.Options{
		BotUsername: cfg.BotUsername,
		AppURL:      cfg.AppURL,
		ChannelID:   cfg.ChannelID,
		Admins:      cfg.Admins,
		Texts:       cfg.Texts,
	})

	dispatch := middleware.Chain(h.MainHandler,
		middleware.Recover(logger),
		middleware.Logging(logger),
		middleware.AnalyzeMessage(),
	)
	b.RegisterHandlerMatchFunc(func(*models.Update) bool { return true }, middleware.Adapt(dispatch))

	apiDeps := api.Deps{
		Reaper:   reaper,
		Ads:      ads,
		Settings: settingsProvider,
		Pinger:   st,
		Secrets: api.Secrets{
			Webhook:   cfg.WebhookSecret,
			Cron:      cfg.CronSecret,
			AdWebhook: cfg.AdWebhookSecret,
		},
		FallbackAdURL: cfg.FallbackAdURL,
		Log:           logger,
	}
	if cfg.Mode == config.ModeWebhook {
		apiDeps.Dispatch = dispatch
	}
	server := api.NewServer(cfg.HTTPAddr, api.NewHandler(apiDeps).Router(), cfg.ShutdownTimeout, logger)

	reaper.Start()
	defer reaper.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })

	switch cfg.Mode {
	case config.ModeWebhook:
		if err := registerWebhook(gctx, b, cfg); err != nil {
			logger.Error("set webhook", zap.Error(err))
		}
	default:
		if _, err := b.DeleteWebhook(gctx, &bot.DeleteWebhookParams{}); err != nil {
			logger.Warn("delete webhook", zap.Error(err))
		}
		g.Go(func() error {
			logger.Info("polling for updates")
			b.Start(gctx)
			return nil
		})
	}

	logger.Info("bot started", zap.String("mode", cfg.Mode), zap.String("username", cfg.BotUsername))
	err = g.Wait()
	runner.Wait()
	return err
}

func registerWebhook(ctx context.Context, b *bot.Bot, cfg *config.Config) error {
	if cfg.AppURL == "" {
		return nil
	}
	_, err := b.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:            cfg.AppURL + api.WebhookPath,
		SecretToken:    cfg.WebhookSecret,
		AllowedUpdates: []string{"message", "callback_query"},
	})
	return err
}

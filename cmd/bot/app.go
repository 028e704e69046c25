package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/memohai/immich-bridge/internal/access"
	"github.com/memohai/immich-bridge/internal/bridge"
	"github.com/memohai/immich-bridge/internal/channel/telegram"
	"github.com/memohai/immich-bridge/internal/config"
	"github.com/memohai/immich-bridge/internal/handlers"
	"github.com/memohai/immich-bridge/internal/immich"
	"github.com/memohai/immich-bridge/internal/logger"
	"github.com/memohai/immich-bridge/internal/media"
	"github.com/memohai/immich-bridge/internal/metrics"
	"github.com/memohai/immich-bridge/internal/server"
	"github.com/memohai/immich-bridge/internal/version"
)

// sentryFlushTimeout bounds how long shutdown waits for queued error reports.
const sentryFlushTimeout = 2 * time.Second

type configPath string

func newApp(path string) *fx.App {
	return fx.New(
		appOptions(configPath(path)),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	)
}

func appOptions(path configPath) fx.Option {
	return fx.Options(
		fx.Supply(path),
		fx.Provide(
			provideConfig,
			provideLogger,

			provideImmichClient,
			access.NewGateFromConfig,
			media.NewResolver,
			metrics.NewRecorder,
			provideBridgeService,
			provideTelegramAdapter,

			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideHealthHandler),
			provideServerHandler(provideMetricsHandler),
			provideServer,
		),
		fx.Invoke(
			startTelegram,
			startServer,
		),
	)
}

func provideConfig(path configPath) (config.Config, error) {
	cfg, err := config.Load(string(path))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format,
		logger.WithFile(cfg.Log.File),
		logger.WithSentry(cfg.Sentry.DSN))
	return logger.L
}

func provideImmichClient(log *slog.Logger, cfg config.Config) (*immich.Client, error) {
	return immich.NewClientFromConfig(log, cfg)
}

func provideBridgeService(log *slog.Logger, cfg config.Config, gate *access.Gate, client *immich.Client, resolver *media.Resolver, rec *metrics.Recorder) *bridge.Service {
	return bridge.NewService(log, cfg, gate, client, resolver, rec)
}

func provideTelegramAdapter(log *slog.Logger, cfg config.Config) *telegram.Adapter {
	return telegram.NewAdapter(log, cfg, nil)
}

func provideHealthHandler(log *slog.Logger, client *immich.Client) *handlers.HealthHandler {
	return handlers.NewHealthHandler(log, client)
}

func provideMetricsHandler(rec *metrics.Recorder) *handlers.MetricsHandler {
	return handlers.NewMetricsHandler(rec.Handler())
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.ServerHandlers...)
}

func startTelegram(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, adapter *telegram.Adapter, svc *bridge.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting",
				slog.String("bot", svc.BotName()),
				slog.String("version", version.GetInfo()),
				slog.Int("allowed_users", len(cfg.Telegram.AllowedUserIDs)),
				slog.Int64("max_file_size", cfg.MaxFileSize()))
			// The start context expires once startup is done; polling must outlive it.
			if err := adapter.Start(context.Background(), svc); err != nil {
				return fmt.Errorf("start telegram: %w", err)
			}
			go svc.Announce(context.Background(), adapter)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			defer logger.Flush(sentryFlushTimeout)
			return adapter.Stop(ctx)
		},
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, srv *server.Server, shutdowner fx.Shutdowner) {
	if cfg.Server.Addr == "" {
		log.Info("health server disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anonchat/backend/internal/api/handler"
	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/config"
	"anonchat/backend/internal/conversation"
	"anonchat/backend/internal/localization"
	"anonchat/backend/internal/logger"
	"anonchat/backend/internal/metrics"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/session"
	"anonchat/backend/internal/storage"
	"anonchat/backend/internal/telegram"
	"anonchat/backend/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "anonchat: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		JSON:    cfg.LogJSON,
		Secrets: []string{cfg.TelegramToken, cfg.JWTSecret, cfg.RedisPassword, cfg.AdminAPIToken},
	})
	slog.SetDefault(log)
	log.Info("starting anonchat backend", "mode", cfg.BotMode, "addr", cfg.HTTPAddr, "workers", cfg.Workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := localization.NewDefault(cfg.DefaultLanguage)
	if err != nil {
		return fmt.Errorf("load locales: %w", err)
	}
	if !loc.Has(cfg.DefaultLanguage) {
		log.Warn("no catalog for the default language, falling back", "language", cfg.DefaultLanguage, "fallback", localization.FallbackLanguage)
	}

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}

	sessions := session.NewStore(metrics.RecordStateTransition)
	matcher := chathub.NewMatcherService(sessions, log)

	// Transports feed the pool and the machine replies through them, so the
	// machine is bound after the gateways exist.
	var machine *conversation.Machine
	events := conversation.NewPool(cfg.Workers, cfg.WorkerBuffer, func(ctx context.Context, ev models.Event) error {
		return machine.Handle(ctx, ev)
	}, log)

	var (
		bot     *telegram.BotService
		tgGate  chathub.Gateway
		updates handler.UpdateHandler
	)

	ws := websocket.NewManager(events, log)

	if cfg.TelegramEnabled() {
		api, err := telegram.NewBotAPI(cfg.TelegramToken, log)
		if err != nil {
			return err
		}
		tgGate = telegram.NewClient(api, log)
		bot = telegram.NewBotService(api, events, store, log)
		if cfg.BotMode == config.ModeWebhook {
			updates = bot
		}
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN is not set, only WebSocket clients will be served")
	}

	gateway := chathub.NewGatewayRouter(tgGate)
	gateway.Register(ws.Owns, ws)

	relay := chathub.NewRelay(matcher, gateway, log)
	broadcaster := chathub.NewBroadcaster(matcher, gateway, chathub.NewAdminSet(cfg.Admins()...), cfg.BroadcastConcurrency, log)

	machine = conversation.NewMachine(conversation.Deps{
		Sessions:    sessions,
		Matcher:     matcher,
		Relay:       relay,
		Broadcaster: broadcaster,
		Gateway:     gateway,
		Localizer:   loc,
		Journal:     store,
		Log:         log,
	})

	secret := cfg.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn("JWT_SECRET is not set, using an ephemeral secret; issued tokens will not survive a restart")
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	routes := handler.NewHandler(matcher, updates, ws, handler.NewAuthenticator(secret), log)
	routes.AdminToken = cfg.AdminAPIToken
	if routes.AdminToken == "" {
		log.Warn("ADMIN_API_TOKEN is not set, /stats and /metrics are unauthenticated")
	}
	routes.Register(r)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return events.Run(gctx) })
	g.Go(func() error { return ws.Run(gctx) })
	g.Go(func() error { return metrics.NewCollector(matcher, sessions, 0).Run(gctx) })

	if bot != nil {
		if cfg.BotMode == config.ModeWebhook {
			if err := bot.RegisterWebhook(cfg.WebhookURL); err != nil {
				return err
			}
		} else {
			g.Go(func() error { return bot.Run(gctx) })
		}
	}

	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("anonchat backend stopped", "error", err)
	return err
}

// openStorage connects the optional room journal and update dedupe.
func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (*storage.Service, error) {
	var (
		db  *gorm.DB
		rdb *redis.Client
		err error
	)

	if cfg.DatabaseDSN != "" {
		if db, err = storage.OpenDatabase(cfg.DatabaseDSN); err != nil {
			return nil, err
		}
		log.Info("room journal enabled")
	}
	if cfg.RedisAddr != "" {
		if rdb, err = storage.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword); err != nil {
			return nil, err
		}
		log.Info("update dedupe enabled", "redis", cfg.RedisAddr)
	}

	return storage.NewStorageService(db, rdb), nil
}

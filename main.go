package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/JerryLinyx/PressGO/backend"
	"github.com/JerryLinyx/PressGO/config"
	"github.com/JerryLinyx/PressGO/controllers"
	"github.com/JerryLinyx/PressGO/importer"
	"github.com/JerryLinyx/PressGO/logging"
	"github.com/JerryLinyx/PressGO/metrics"
	"github.com/JerryLinyx/PressGO/router"
	"github.com/JerryLinyx/PressGO/state"
	"github.com/JerryLinyx/PressGO/views"
)

const (
	authEventChannel = "pressgo:auth-events"
	redisKeyPrefix   = "pressgo:"
)

// openBackend builds the configured driver. The postgres and memory drivers
// get the bootstrap admin account from config.
func openBackend(ctx context.Context, cfg *config.Config, bus backend.EventBus, logger *zap.SugaredLogger) (backend.Client, error) {
	switch cfg.Backend.Driver {
	case "rest":
		if !cfg.AnonKeyConfigured() {
			logger.Warnw("backend anon key is not configured; set backend.anon_key (PRESSGO_BACKEND_ANON_KEY)")
		}
		return backend.NewRESTClient(cfg.Backend.URL, cfg.Backend.AnonKey, cfg.Backend.Table, cfg.Backend.Timeout,
			backend.WithRESTEventBus(bus)), nil

	case "postgres":
		db, err := config.OpenDB(cfg)
		if err != nil {
			return nil, err
		}
		// Run database migrations
		if err := config.MigrateDB(db); err != nil {
			return nil, err
		}
		client := backend.NewPostgresClient(db, cfg.Session.Secret, backend.WithPostgresEventBus(bus))
		if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
			if err := client.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
				return nil, err
			}
		}
		return client, nil

	default:
		client := backend.NewMemoryClient(backend.WithMemoryEventBus(bus))
		if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
			if err := client.AddUser(cfg.Admin.Email, cfg.Admin.Password); err != nil {
				return nil, err
			}
		}
		return client, nil
	}
}

func openStores(cfg *config.Config, rdb *redis.Client) (state.SessionStore, state.PageStore) {
	if rdb != nil {
		return state.NewRedisSessionStore(rdb, redisKeyPrefix, cfg.Session.TTL),
			state.NewRedisPageStore(rdb, redisKeyPrefix, cfg.Feed.PageTTL)
	}
	return state.NewMemorySessionStore(cfg.Session.TTL), state.NewMemoryPageStore(cfg.Feed.PageTTL)
}

func main() {
	cfg := config.InitConfig()

	logger, err := logging.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.App.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := config.OpenRedis(ctx, cfg)
	if err != nil {
		logger.Fatalw("redis unavailable", "addr", cfg.Redis.Addr, "error", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var bus backend.EventBus = backend.NewBroker(16)
	if rdb != nil {
		rb, err := backend.NewRedisBroker(ctx, rdb, authEventChannel, logger)
		if err != nil {
			logger.Fatalw("subscribe to auth events", "error", err)
		}
		defer rb.Close()
		bus = rb
	}

	m := metrics.New("pressgo")

	raw, err := openBackend(ctx, cfg, bus, logger)
	if err != nil {
		logger.Fatalw("open backend", "driver", cfg.Backend.Driver, "error", err)
	}
	client := backend.Instrument(raw, m)
	defer client.Close()

	sessions, pages := openStores(cfg, rdb)

	articles := controllers.NewArticleController(client, sessions,
		importer.New(&http.Client{Timeout: cfg.Backend.Timeout}, 0),
		controllers.ArticleOptions{
			Title:       cfg.App.Name,
			RecentLimit: cfg.Feed.RecentLimit,
			ImportLimit: cfg.Feed.ImportLimit,
		}, logger)
	auth := controllers.NewAuthController(client, sessions,
		state.NewCookieCodec(cfg.Session.Secret, cfg.Session.TTL),
		controllers.CookieConfig{Name: cfg.Session.CookieName, Secure: cfg.Session.Secure},
		articles, logger)
	feed := controllers.NewFeedController(client, pages, m, cfg.App.Name, cfg.Feed.ExcerptLimit, logger)

	go auth.Run(ctx)

	r := router.InitRouter(router.Deps{
		Auth:      auth,
		Articles:  articles,
		Feed:      feed,
		Health:    controllers.NewHealthController(client),
		Metrics:   m,
		Templates: views.Templates(),
		Logger:    logger,
	})

	port := cfg.App.Port
	if port == "" {
		port = ":8080"
	}
	srv := &http.Server{
		Addr:    port,
		Handler: r,
	}

	go func() {
		logger.Infow("listening", "addr", port, "driver", cfg.Backend.Driver, "redis", rdb != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("listen", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("Server Shutdown", "error", err)
	}
	logger.Info("Server exiting")
}

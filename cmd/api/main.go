package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"kanban/api/internal/app"
	"kanban/api/internal/config"
	"kanban/api/internal/objstore"
	"kanban/api/internal/ratelimit"
	"kanban/api/internal/realtime"
	"kanban/api/internal/report"
	"kanban/api/internal/search"
	"kanban/api/internal/store"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	objects, closeObjects, err := openObjects(ctx, cfg)
	if err != nil {
		logger.Fatal("object store unavailable", zap.String("storage", cfg.Storage), zap.Error(err))
	}
	defer closeObjects()
	repo := store.NewRepository(objects)

	var limiterStore ratelimit.Store
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := ratelimit.NewRedisStore(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis connection failed", zap.Error(err))
		}
		defer redisStore.Close()
		limiterStore = redisStore
		logger.Info("using redis for rate limiting")
	} else {
		memoryStore := ratelimit.NewMemoryStore()
		go memoryStore.Run(ctx, cfg.RateWindow)
		limiterStore = memoryStore
	}
	limiter := ratelimit.NewLimiter(limiterStore, cfg.RateLimit, cfg.RateWindow)

	var index search.Index
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meili.Close()
		index = meili
	}
	searchService := search.NewService(index, repo)
	go searchService.ReindexAll(ctx)

	hub := realtime.NewHub(originChecker(cfg.CORSOrigin))
	go hub.Run(ctx)

	service, err := app.New(cfg, repo, searchService, report.NewService(nil), hub)
	if err != nil {
		logger.Fatal("service setup failed", zap.Error(err))
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.NewHTTPServer(service, limiter, hub).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("kanban api listening", zap.String("addr", cfg.Addr), zap.String("storage", cfg.Storage))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

func newLogger(level string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if strings.EqualFold(level, "debug") {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func openObjects(ctx context.Context, cfg config.Config) (objstore.Store, func(), error) {
	noop := func() {}
	switch cfg.Storage {
	case config.StorageMinIO:
		m, err := objstore.NewMinIO(ctx, objstore.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
		return m, noop, err
	case config.StoragePostgres:
		return openSQL(ctx, objstore.DriverPostgres, cfg.DatabaseURL)
	case config.StorageSQLite:
		return openSQL(ctx, objstore.DriverSQLite, cfg.SQLitePath)
	default:
		zap.L().Warn("using in-memory storage, boards are lost on restart")
		return objstore.NewMemory(), noop, nil
	}
}

func openSQL(ctx context.Context, driver, dsn string) (objstore.Store, func(), error) {
	db, err := objstore.OpenSQL(ctx, driver, dsn)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = db.Close() }, nil
}

// originChecker mirrors the CORS setting for websocket upgrades.
func originChecker(allowed string) func(r *http.Request) bool {
	if strings.TrimSpace(allowed) == "*" {
		return nil
	}
	origins := map[string]bool{}
	for _, origin := range strings.Split(allowed, ",") {
		origins[strings.TrimRight(strings.TrimSpace(origin), "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, err := url.Parse(origin); err != nil {
			return false
		}
		return origins[strings.TrimRight(origin, "/")]
	}
}

// cmd/storefront/app.go
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront/internal/api"
	tokens "storefront/internal/common/auth"
	"storefront/internal/common/cache"
	"storefront/internal/common/config"
	httpclient "storefront/internal/common/http"
	"storefront/internal/common/logger"
	"storefront/internal/common/observability"
	"storefront/internal/content"
	"storefront/internal/store"
)

type globalOptions struct {
	configPath  string
	metricsAddr string
}

// app holds everything one CLI invocation needs.
type app struct {
	cfg      *config.Config
	zap      *zap.Logger
	log      logger.Logger
	rdb      *redis.Client
	tokens   tokens.TokenStore
	provider *content.Provider
	obs      *observability.Observability
	metrics  *http.Server
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func newApp(ctx context.Context, opts globalOptions) (*app, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	a := &app{
		cfg: cfg,
		zap: zapLogger,
		log: logger.NewZapAdapter(zapLogger),
	}

	if cfg.RedisRequired() {
		a.rdb, err = cache.NewRedis(ctx, cfg.Cache.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.log.Debug("Redis connected", map[string]interface{}{"address": cfg.Cache.Redis.Address})
	}

	var rdb redis.UniversalClient
	if a.rdb != nil {
		rdb = a.rdb
	}
	a.tokens, err = tokens.NewTokenStore(cfg.Auth, cfg.Cache.KeyPrefix, rdb)
	if err != nil {
		a.close()
		return nil, err
	}

	storeOpts := store.Options{
		RestoreOnDeleteFailure: cfg.Content.RestoreOnDeleteFailure,
		Logger:                 a.log,
		Recorder:               observability.Nop{},
	}
	if cfg.Cache.Enabled && a.rdb != nil {
		storeOpts.Snapshots = cache.NewSnapshots(a.rdb, cfg.Cache.KeyPrefix, config.GetDuration(cfg.Cache.TTL))
	}

	addr := opts.metricsAddr
	if addr == "" && cfg.Metrics.Enabled {
		addr = cfg.Metrics.Address
	}
	if addr != "" {
		a.obs = observability.New(cfg.App.Name, nil)
		storeOpts.Recorder = a.obs
		a.serveMetrics(addr)
	}

	client := httpclient.NewClient(httpclient.Options{
		BaseURL:   cfg.API.Endpoint(),
		Timeout:   config.GetDuration(cfg.API.Timeout),
		Tokens:    a.tokens,
		RateLimit: cfg.API.RateLimit,
		Burst:     cfg.API.Burst,
		Breaker:   breakerSettings(cfg.API),
		Logger:    a.log,
	})

	// One-shot commands fetch only the domains they print.
	a.provider = content.New(api.New(client), a.tokens, content.Options{
		Lazy:   true,
		Store:  storeOpts,
		Logger: a.log,
	})
	return a, nil
}

func breakerSettings(cfg config.APIConfig) *httpclient.BreakerSettings {
	cb := cfg.CircuitBreaker
	if !cb.Enabled {
		return nil
	}
	return &httpclient.BreakerSettings{
		Name:             "storefront-api",
		MaxRequests:      cb.MaxRequests,
		Interval:         config.GetDuration(cb.Interval),
		Timeout:          config.GetDuration(cb.Timeout),
		FailureThreshold: cb.FailureThreshold,
		MinRequests:      cb.MinRequests,
	}
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metrics = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.log.Info("Metrics server listening", map[string]interface{}{"address": addr})
		if err := a.metrics.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			a.log.Error("Metrics server failed", map[string]interface{}{"error": err})
		}
	}()
}

func (a *app) close() {
	if a.provider != nil {
		a.provider.Close()
	}
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.metrics.Shutdown(ctx)
		cancel()
	}
	if a.obs != nil {
		a.obs.Shutdown()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.zap != nil {
		_ = a.zap.Sync()
	}
}

// Package server arma el handler HTTP completo a partir de la configuración:
// key store, cache, servicio de firma, interceptor JWS, controllers y router.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dropDatabas3/ofbmock/internal/config"
	healthctrl "github.com/dropDatabas3/ofbmock/internal/http/controllers/health"
	jwksctrl "github.com/dropDatabas3/ofbmock/internal/http/controllers/jwks"
	ofctrl "github.com/dropDatabas3/ofbmock/internal/http/controllers/openfinance"
	mw "github.com/dropDatabas3/ofbmock/internal/http/middlewares"
	"github.com/dropDatabas3/ofbmock/internal/http/router"
	"github.com/dropDatabas3/ofbmock/internal/jws"
	"github.com/dropDatabas3/ofbmock/internal/keys"
	"github.com/dropDatabas3/ofbmock/internal/metrics"
	"github.com/dropDatabas3/ofbmock/internal/mockdata"
	"github.com/dropDatabas3/ofbmock/internal/observability/logger"
	"github.com/dropDatabas3/ofbmock/internal/util"
)

// App es el resultado del wiring.
type App struct {
	Handler http.Handler
	// MetricsHandler sirve /metrics. Si Server.MetricsAddr está vacío ya está
	// montado en Handler.
	MetricsHandler http.Handler

	Keys   *keys.CachedProvider
	Signer *jws.Signer

	cleanup []func() error
}

// Close libera los recursos del key store.
func (a *App) Close() error {
	var errs []error
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		errs = append(errs, a.cleanup[i]())
	}
	return errors.Join(errs...)
}

// Options permite inyectar dependencias en tests.
type Options struct {
	// Store reemplaza el key store que indica la config.
	Store keys.Store
	// Registerer para las métricas; nil = prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	Version    string
}

// Build construye la App. cfg ya debe estar validada.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) (*App, error) {
	if log == nil {
		log = logger.L()
	}
	app := &App{}

	store := opts.Store
	if store == nil {
		s, closer, err := OpenKeyStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store = s
		if closer != nil {
			app.cleanup = append(app.cleanup, closer)
		}
	}

	if cfg.Keys.Source == "memory" || cfg.JWS.Bootstrap {
		k, created, err := keys.EnsureBootstrap(ctx, store, cfg.JWS.Algorithm, cfg.JWS.KeyID, config.Duration(cfg.JWS.KeyValidity))
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("keystore bootstrap failed: %w", err)
		}
		if created {
			log.Info("signing key generated", logger.KeyID(k.KID), logger.Alg(k.Algorithm), logger.KeySource(cfg.Keys.Source))
		}
	}

	app.Keys = keys.NewCachedProvider(store, config.Duration(cfg.Keys.CacheTTL))
	app.Signer = jws.NewSigner(app.Keys)

	policy, err := mw.NewPolicy(cfg.JWS.ProtectedPrefixes, cfg.JWS.ExcludedPrefixes, cfg.JWS.Patterns, cfg.JWS.Methods)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	interceptor := mw.NewInterceptor(app.Signer, mw.WithPolicy(policy), mw.WithMediaType(cfg.JWS.MediaType))

	if err := metrics.Register(opts.Registerer); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if pg, ok := store.(*keys.PGStore); ok {
		if err := metrics.RegisterPool(opts.Registerer, pg.Pool); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("metrics: %w", err)
		}
	}
	app.MetricsHandler = promhttp.Handler()
	if g, ok := opts.Registerer.(prometheus.Gatherer); ok {
		app.MetricsHandler = promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}

	data, err := mockdata.Load()
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	deps := router.Deps{
		OpenFinance: ofctrl.NewController(data),
		Health:      healthctrl.NewController(app.Keys, app.Signer, opts.Version),
		JWKS:        jwksctrl.NewController(app.Keys),
		Interceptor: interceptor,
		Logger:      log,
	}
	if cfg.Server.MetricsAddr == "" {
		deps.Metrics = app.MetricsHandler
	}
	app.Handler = router.New(deps)

	log.Info("jws signing configured",
		logger.Alg(cfg.JWS.Algorithm),
		logger.KeySource(cfg.Keys.Source),
		logger.String("media_type", interceptor.MediaType()),
		logger.Any("protected_prefixes", policy.ProtectedPrefixes),
	)
	return app, nil
}

// OpenKeyStore abre el backend de claves configurado. closer puede ser nil.
func OpenKeyStore(ctx context.Context, cfg *config.Config) (keys.Store, func() error, error) {
	switch cfg.Keys.Source {
	case "memory":
		return keys.NewMemoryStore(), nil, nil
	case "fs":
		s, err := keys.NewFileStore(cfg.Keys.FS.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case "pg":
		s, err := keys.NewPGStore(ctx, cfg.Keys.Postgres.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("%w (dsn %s)", err, util.MaskDSN(cfg.Keys.Postgres.DSN))
		}
		if cfg.Keys.Postgres.AutoMigrate {
			if err := s.Migrate(ctx); err != nil {
				s.Close()
				return nil, nil, fmt.Errorf("keys: migrate: %w", err)
			}
		}
		return s, func() error { s.Close(); return nil }, nil
	case "redis":
		s, err := keys.NewRedisStore(ctx, keys.RedisConfig{
			Addr:     cfg.Keys.Redis.Addr,
			Password: cfg.Keys.Redis.Password,
			DB:       cfg.Keys.Redis.DB,
			Prefix:   cfg.Keys.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("keys: unknown source %q", cfg.Keys.Source)
}

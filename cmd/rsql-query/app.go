package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vantutran2k1/rsql/internal/audit"
	"github.com/vantutran2k1/rsql/internal/filterstore"
	"github.com/vantutran2k1/rsql/internal/query"
	queryhttp "github.com/vantutran2k1/rsql/internal/query/http"
	"github.com/vantutran2k1/rsql/pkg/auth"
	"github.com/vantutran2k1/rsql/pkg/config"
	"github.com/vantutran2k1/rsql/pkg/logger"
	"github.com/vantutran2k1/rsql/pkg/metrics"
	"github.com/vantutran2k1/rsql/pkg/pprof"
	"github.com/vantutran2k1/rsql/pkg/tracing"
)

const serviceName = "rsql-query"

type Config struct {
	ApiPort     string             `mapstructure:"api"`
	PprofPort   string             `mapstructure:"pprof"`
	MetricsPort string             `mapstructure:"metrics"`
	CacheTTL    time.Duration      `mapstructure:"cache_ttl"`
	Warmer      query.WarmerConfig `mapstructure:"warmer"`

	RedisAddress string
	NatsURL      string
	AuditSubject string
	PostgresDSN  string
	Compiler     query.Config
	Tracing      tracing.Config
}

type app struct {
	config      Config
	httpServer  *http.Server
	redisClient *redis.Client
	nc          *nats.Conn
	pool        *pgxpool.Pool
	warmer      *query.Warmer
	tp          *sdktrace.TracerProvider
}

func loadConfig(path string) (*viper.Viper, Config, error) {
	v, err := config.Load(path)
	if err != nil {
		return nil, Config{}, err
	}
	v.SetDefault("query.api", ":8081")
	v.SetDefault("query.metrics", ":9092")
	v.SetDefault("query.cache_ttl", "5m")

	var cfg Config
	if err := v.UnmarshalKey("query", &cfg); err != nil {
		return nil, Config{}, fmt.Errorf("failed to unmarshal query config: %w", err)
	}
	if err := v.UnmarshalKey("compiler", &cfg.Compiler); err != nil {
		return nil, Config{}, fmt.Errorf("failed to unmarshal compiler config: %w", err)
	}
	if err := v.UnmarshalKey("tracing", &cfg.Tracing); err != nil {
		return nil, Config{}, fmt.Errorf("failed to unmarshal tracing config: %w", err)
	}

	cfg.RedisAddress = v.GetString("redis.addr")
	cfg.NatsURL = v.GetString("nats.url")
	cfg.AuditSubject = v.GetString("nats.audit_subject")
	cfg.PostgresDSN = v.GetString("postgres.dsn")

	return v, cfg, nil
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	v, cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(config.Logger(v))
	logger.Info("configuration loaded", "api", cfg.ApiPort, "metrics", cfg.MetricsPort)

	authenticator, err := auth.NewAuthenticator(v)
	if err != nil {
		return nil, fmt.Errorf("failed to init authenticator: %w", err)
	}

	tp, err := tracing.InitTracerProvider(ctx, serviceName, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracer: %w", err)
	}

	compiler, err := query.NewCompiler(cfg.Compiler)
	if err != nil {
		return nil, err
	}

	a := &app{config: cfg, tp: tp}
	var opts []query.ServiceOption

	if cfg.RedisAddress != "" {
		a.redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		if err := a.redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		cache, err := query.NewRedisCache(a.redisClient, cfg.CacheTTL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, query.WithCache(cache))
		logger.Info("connected to redis", "addr", cfg.RedisAddress)
	}

	if cfg.NatsURL != "" {
		a.nc, err = nats.Connect(cfg.NatsURL, nats.Name(serviceName))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to nats: %w", err)
		}
		opts = append(opts, query.WithPublisher(audit.NewPublisher(a.nc, cfg.AuditSubject)))
		logger.Info("connected to nats", "url", cfg.NatsURL, "subject", cfg.AuditSubject)
	}

	service := query.NewService(compiler, opts...)

	var store queryhttp.FilterStore
	if cfg.PostgresDSN != "" {
		a.pool, err = pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		if err := a.pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if _, err := a.pool.Exec(ctx, filterstore.Schema); err != nil {
			return nil, fmt.Errorf("failed to create saved_filters table: %w", err)
		}
		logger.Info("connected to postgres")

		filters := filterstore.New(a.pool)
		store = filters

		var notifier query.Notifier
		if cfg.Warmer.WebhookURL != "" {
			notifier = query.NewWebhookNotifier(cfg.Warmer.WebhookURL)
		}
		a.warmer = query.NewWarmer(filters, service, notifier, cfg.Warmer)
	}

	apiHandler := queryhttp.NewAPIHandler(service, store)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware(serviceName))
	r.Use(func(h http.Handler) http.Handler {
		return otelhttp.NewHandler(h, serviceName+"-http")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.With(authenticator.RequireAuth(auth.PermissionCompile)).Get("/v1/compile", apiHandler.HandleCompile)
	r.Group(func(r chi.Router) {
		r.Use(authenticator.RequireAuth(auth.PermissionFilters))
		r.Get("/v1/filters", apiHandler.HandleListFilters)
		r.Get("/v1/filters/{name}/compile", apiHandler.HandleCompileSaved)
	})

	a.httpServer = &http.Server{
		Addr:              cfg.ApiPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go pprof.StartServer(cfg.PprofPort)
	go metrics.StartMetricsServer(cfg.MetricsPort)

	return a, nil
}

func (a *app) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("rsql-query api starting", "addr", a.config.ApiPort)
		if err := a.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		logger.Info("http server stopped")
		return nil
	})

	if a.warmer != nil {
		g.Go(func() error {
			logger.Info("filter warmer starting")
			return a.warmer.Run(ctx)
		})
	}

	return g.Wait()
}

func (a *app) shutdown(ctx context.Context) error {
	logger.Info("shutting down query api")

	if err := a.httpServer.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			logger.Error("nats drain error", "error", err)
		}
	}

	if a.pool != nil {
		a.pool.Close()
	}

	if err := a.tp.Shutdown(ctx); err != nil {
		logger.Error("tracer shutdown error", "error", err)
	}

	logger.Info("rsql-query service shutdown gracefully")
	return nil
}

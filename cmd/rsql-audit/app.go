package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/nats-io/nats.go"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vantutran2k1/rsql/internal/audit"
	"github.com/vantutran2k1/rsql/pkg/config"
	"github.com/vantutran2k1/rsql/pkg/logger"
	"github.com/vantutran2k1/rsql/pkg/metrics"
	"github.com/vantutran2k1/rsql/pkg/pprof"
	"github.com/vantutran2k1/rsql/pkg/tracing"
)

const serviceName = "rsql-audit"

type Config struct {
	PprofPort   string                  `mapstructure:"pprof"`
	MetricsPort string                  `mapstructure:"metrics"`
	Workers     int                     `mapstructure:"workers"`
	QueueSize   int                     `mapstructure:"queue_size"`
	Queue       string                  `mapstructure:"queue_group"`
	Batch       audit.BatchWriterConfig `mapstructure:"batch"`

	NatsURL           string
	Subject           string
	ClickHouseAddress string
	ClickHouseDB      string
	Tracing           tracing.Config
}

type app struct {
	config      Config
	tp          *sdktrace.TracerProvider
	chConn      clickhouse.Conn
	nc          *nats.Conn
	batchWriter *audit.BatchWriter
	workers     *audit.WorkerPool
	sub         *nats.Subscription
}

func loadConfig(path string) (Config, logger.Config, error) {
	v, err := config.Load(path)
	if err != nil {
		return Config{}, logger.Config{}, err
	}
	v.SetDefault("audit.metrics", ":9094")
	v.SetDefault("audit.workers", 4)
	v.SetDefault("audit.queue_size", 1024)
	v.SetDefault("audit.queue_group", "rsql-audit")
	v.SetDefault("nats.url", nats.DefaultURL)
	v.SetDefault("clickhouse.addr", "localhost:9000")
	v.SetDefault("clickhouse.database", "rsql")

	var cfg Config
	if err := v.UnmarshalKey("audit", &cfg); err != nil {
		return Config{}, logger.Config{}, fmt.Errorf("failed to unmarshal audit config: %w", err)
	}
	if err := v.UnmarshalKey("tracing", &cfg.Tracing); err != nil {
		return Config{}, logger.Config{}, fmt.Errorf("failed to unmarshal tracing config: %w", err)
	}

	cfg.NatsURL = v.GetString("nats.url")
	cfg.Subject = v.GetString("nats.audit_subject")
	cfg.ClickHouseAddress = v.GetString("clickhouse.addr")
	cfg.ClickHouseDB = v.GetString("clickhouse.database")

	return cfg, config.Logger(v), nil
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, logCfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(logCfg)

	tp, err := tracing.InitTracerProvider(ctx, serviceName, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracer: %w", err)
	}

	chConn, err := connectClickHouse(ctx, cfg.ClickHouseAddress, cfg.ClickHouseDB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	if err := chConn.Exec(ctx, audit.CreateTable); err != nil {
		return nil, fmt.Errorf("failed to create audit table: %w", err)
	}
	logger.Info("connected to clickhouse", "addr", cfg.ClickHouseAddress)

	nc, err := nats.Connect(cfg.NatsURL, nats.Name(serviceName))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	logger.Info("connected to nats", "url", cfg.NatsURL)

	// The batch writer outlives ctx so that Close can flush what is left.
	batchWriter := audit.NewBatchWriter(context.WithoutCancel(ctx), audit.NewClickHouseWriter(chConn), cfg.Batch)
	workers := audit.NewWorkerPool(cfg.Workers, cfg.QueueSize, batchWriter)

	go pprof.StartServer(cfg.PprofPort)
	go metrics.StartMetricsServer(cfg.MetricsPort)

	return &app{
		config:      cfg,
		tp:          tp,
		chConn:      chConn,
		nc:          nc,
		batchWriter: batchWriter,
		workers:     workers,
	}, nil
}

func (a *app) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	a.workers.Start()

	g.Go(func() error {
		sub, err := a.nc.QueueSubscribe(a.config.Subject, a.config.Queue, func(msg *nats.Msg) {
			metrics.AuditEventsTotal.WithLabelValues("receive", audit.OutcomeOK).Inc()
			a.workers.Submit(audit.Job{Data: msg.Data})
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe to nats: %w", err)
		}
		a.sub = sub
		logger.Info("subscribed to nats subject", "subject", a.config.Subject, "queue", a.config.Queue)

		<-ctx.Done()
		logger.Info("draining nats subscription")
		if err := a.sub.Drain(); err != nil {
			return fmt.Errorf("nats drain error: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// shutdown runs after run has returned, so no more jobs are submitted.
func (a *app) shutdown(ctx context.Context) error {
	logger.Info("shutting down audit service")

	if a.sub != nil {
		for a.sub.IsValid() {
			select {
			case <-ctx.Done():
				logger.Warn("gave up waiting for nats drain")
				return ctx.Err()
			case <-time.After(50 * time.Millisecond):
			}
		}
	}

	a.workers.Stop()
	a.batchWriter.Close()

	a.nc.Close()
	if err := a.chConn.Close(); err != nil {
		logger.Error("clickhouse close error", "error", err)
	}

	if err := a.tp.Shutdown(ctx); err != nil {
		logger.Error("tracer shutdown error", "error", err)
	}

	logger.Info("rsql-audit service shut down gracefully")
	return nil
}

func connectClickHouse(ctx context.Context, addr, database string) (clickhouse.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{
				{Name: serviceName, Version: "0.1.0"},
			},
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, err
	}

	return conn, nil
}

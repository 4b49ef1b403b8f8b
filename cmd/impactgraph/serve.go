package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/efebarandurmaz/impactgraph/internal/api"
	"github.com/efebarandurmaz/impactgraph/internal/config"
	"github.com/efebarandurmaz/impactgraph/internal/observability"
	"github.com/efebarandurmaz/impactgraph/internal/query"
	"github.com/efebarandurmaz/impactgraph/internal/server"
	"github.com/gin-gonic/gin"
)

func runServe(ctx context.Context, cfg *config.Config) error {
	if level := observability.ParseLevel(cfg.Log.Level); level > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "impactgraph",
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	b, err := openBackend(ctx, cfg.Graph, cfg.Traversal.SnapshotTTL)
	if err != nil {
		_ = tp.Shutdown(context.Background())
		return err
	}
	slog.Info("Graph backend ready", "backend", b.name, "snapshot_ttl", cfg.Traversal.SnapshotTTL)

	metrics := observability.NewMetrics()
	svc := query.NewService(b.source, query.Options{
		Backend:      b.name,
		DefaultDepth: cfg.Traversal.DefaultDepth,
		MaxDepth:     cfg.Traversal.MaxDepth,
		Timeout:      cfg.Traversal.QueryTimeout,
		Metrics:      metrics,
		Logger:       slog.Default(),
	})

	gs := server.NewGracefulServer(
		&server.HealthConfig{Version: version},
		&server.ShutdownConfig{Timeout: cfg.Server.ShutdownTimeout},
	)
	gs.Health.RegisterCheck("graph", server.DataSourceHealthChecker(b.name, svc.Ping))

	srv := api.NewServer(&api.Config{
		ListenAddr:   cfg.Server.Addr,
		CORSOrigins:  cfg.Server.CORSOrigins,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ServiceName:  "impactgraph",
	}, svc, api.WithHealth(gs.Health.Handler()), api.WithMetrics(metrics.Handler()))

	gs.Shutdown.Add(server.HTTPServerShutdownHook("api", srv.Stop))

	if b.file != nil && cfg.Graph.Watch {
		watchCtx, stop := context.WithCancel(context.Background())
		if err := b.file.Watch(watchCtx, b.cache.Invalidate); err != nil {
			stop()
			slog.Warn("Graph file watch disabled", "path", cfg.Graph.Path, "error", err)
		} else {
			gs.Shutdown.Add(server.FileWatcherShutdownHook(stop))
		}
		gs.Health.RegisterCheck("graph-watcher", server.WatcherHealthChecker(cfg.Graph.Path, b.file.Watching))
	}

	gs.Shutdown.Add(server.DataSourceShutdownHook(b.name, b.Close))
	gs.Shutdown.Add(server.TracingShutdownHook(tp.Shutdown))

	gs.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		// Listen failed before any shutdown was requested.
		gs.Shutdown.Shutdown()
		if !gs.WaitWithTimeout(cfg.Server.ShutdownTimeout + time.Second) {
			slog.Warn("Shutdown hooks did not finish", "timeout", cfg.Server.ShutdownTimeout)
		}
		return err
	case <-gs.Shutdown.Done():
		return nil
	}
}

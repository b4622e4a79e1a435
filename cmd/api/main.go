package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bryanwahyu/docgen/internal/application"
	appdocs "github.com/bryanwahyu/docgen/internal/application/documents"
	"github.com/bryanwahyu/docgen/internal/config"
	domain "github.com/bryanwahyu/docgen/internal/domain/documents"
	"github.com/bryanwahyu/docgen/internal/infra/cache"
	"github.com/bryanwahyu/docgen/internal/infra/docx"
	"github.com/bryanwahyu/docgen/internal/infra/httpserver"
	"github.com/bryanwahyu/docgen/internal/infra/storage"
	"github.com/bryanwahyu/docgen/internal/logging"
	"github.com/bryanwahyu/docgen/internal/middleware"
)

func main() {
	// path config.yaml
	defaultPath := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	path := pflag.String("config", defaultPath, "path to the YAML config file")
	addr := pflag.String("addr", "", "listen address, overrides server.port")
	pflag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		slog.Error("config load error", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listen := cfg.Addr()
	if *addr != "" {
		listen = *addr
	}
	if err := run(ctx, cfg, listen, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, addr string, log *slog.Logger) error {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	health := map[string]middleware.HealthChecker{
		"storage": &middleware.StorageHealthChecker{Store: store},
	}

	var index domain.Index = cache.NewMemoryIndex()
	if cfg.Redis.Addr != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			return err
		}
		defer rdb.Close()
		ri := cache.NewRedisIndex(rdb, log)
		index = ri
		health["redis"] = middleware.CheckFunc(ri.Ping)
		log.Info("redis index enabled", "addr", cfg.Redis.Addr)
	}

	metrics := middleware.NewPromMetrics("docgen")
	svc := &appdocs.Service{
		Store:         store,
		Encoder:       docx.NewEncoder(),
		Clock:         application.SystemClock{},
		Index:         index,
		TTL:           cfg.TTL(),
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		Metrics:       metrics,
		Log:           log,
	}
	go svc.RunSweeper(ctx, cfg.SweepInterval())

	handler := httpserver.NewRouter(httpserver.Deps{
		Service:        svc,
		Metrics:        metrics,
		Health:         health,
		Limiter:        middleware.NewRateLimiter(ctx, cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSecond),
		Token:          cfg.Auth.Token,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Log:            log,
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr, "storage", cfg.Storage.Driver, "ttl", cfg.TTL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (domain.ArtifactStore, error) {
	if cfg.Storage.Driver == config.DriverMinio {
		return storage.NewMinio(ctx, storage.MinioOptions{
			Endpoint:  cfg.Minio.Endpoint,
			Region:    cfg.Minio.Region,
			Bucket:    cfg.Minio.BucketName,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			UseSSL:    cfg.Minio.UseSSL,
			Prefix:    cfg.Minio.Prefix,
		}, log)
	}
	return storage.NewDiskStore(cfg.Storage.Dir, log)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/starlightdeck/careon/api/controllers"
	"github.com/starlightdeck/careon/api/routes"
	"github.com/starlightdeck/careon/internal/app"
	"github.com/starlightdeck/careon/pkg/config"
	"github.com/starlightdeck/careon/pkg/instance"
	"github.com/starlightdeck/careon/pkg/logger"
	"github.com/starlightdeck/careon/pkg/redis"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logg.Debug(context.Background(), fmt.Sprintf(format, args...))
	})); err != nil {
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "failed to set GOMAXPROCS")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(ctx, "redis disabled; documents are guarded in-process only and redeem is not rate limited")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	wired, err := app.New(cfg, logg, app.Options{
		Registerer: registry,
		Redis:      redisClient,
	})
	if err != nil {
		logg.Error(ctx, "failed to wire services", err)
		os.Exit(1)
	}

	probes := map[string]controllers.Pinger{
		"bank":  wired.BankRepo,
		"codes": wired.CodesRepo,
	}
	params := routes.Params{
		Config:   cfg,
		Logger:   logg,
		Bank:     wired.Bank,
		Codes:    wired.Codes,
		Cashier:  wired.Cashier,
		Game:     wired.Game,
		Probes:   probes,
		Gatherer: registry,
	}
	if redisClient != nil {
		probes["redis"] = redisClient
		params.RateLimiter = redisClient
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"narrator": cfg.Narrator.Enabled(),
		"redis":    cfg.Redis.Enabled(),
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(params),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	lhttp "github.com/radieske/party-bet-platform/internal/live-service/http"
	"github.com/radieske/party-bet-platform/internal/live-service/ws"
	"github.com/radieske/party-bet-platform/internal/shared/cache"
	"github.com/radieske/party-bet-platform/internal/shared/config"
	"github.com/radieske/party-bet-platform/internal/shared/logger"
	"github.com/radieske/party-bet-platform/internal/shared/metrics"
	"github.com/radieske/party-bet-platform/internal/shared/projection"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	states := projection.NewRedisStore(rdb, cfg.ProjectionTTL)
	// origem liberada; o gateway aplica CORS
	hub := ws.NewHub(func(*http.Request) bool { return true }, states, log)
	if err := ws.StartRedisSubscriber(ctx, rdb, cfg.RedisPubSubChannel, hub, log); err != nil {
		log.Fatal("redis subscribe", zap.Error(err))
	}

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, map[string]metrics.HealthFunc{
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})

	api := &lhttp.API{States: states, Hub: hub, Log: log}
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("live-service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = msrv.Shutdown(shutdownCtx)
}

package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	gateway "github.com/radieske/party-bet-platform/internal/api-gateway"
	"github.com/radieske/party-bet-platform/internal/shared/config"
	"github.com/radieske/party-bet-platform/internal/shared/logger"
	"github.com/radieske/party-bet-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	h, err := gateway.NewHandler(cfg.GameURL, cfg.LiveURL)
	if err != nil {
		log.Fatal("gateway config", zap.Error(err))
	}

	metrics.StartMetricsServer(log, cfg.MetricsPort, nil)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("api-gateway listening", zap.String("addr", srv.Addr),
		zap.String("game", cfg.GameURL), zap.String("live", cfg.LiveURL))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

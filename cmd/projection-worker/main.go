package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/party-bet-platform/internal/game-service/ledger"
	"github.com/radieske/party-bet-platform/internal/projection-worker/consumer"
	"github.com/radieske/party-bet-platform/internal/projection-worker/resync"
	"github.com/radieske/party-bet-platform/internal/shared/cache"
	"github.com/radieske/party-bet-platform/internal/shared/config"
	"github.com/radieske/party-bet-platform/internal/shared/db"
	"github.com/radieske/party-bet-platform/internal/shared/kafka"
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

	// Postgres só para leitura dos snapshots na reconciliação
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()
	store := ledger.NewPostgres(pg)

	projector := projection.NewProjector(
		projection.NewRedisStore(rdb, cfg.ProjectionTTL),
		projection.NewBroadcaster(rdb, cfg.RedisPubSubChannel),
		log,
	)

	m := metrics.NewProjection(prometheus.DefaultRegisterer)
	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, map[string]metrics.HealthFunc{
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		"postgres": store.Ping,
	})

	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicGameEvents, "projection-worker")
	defer reader.Close()
	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicGameEventsDLQ)
	defer dlq.Close()

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Projector:  projector,
		DLQ:        dlq,
		OnConsumed: func() { m.Events.WithLabelValues("consumed").Inc() },
		OnApplied:  func() { m.Events.WithLabelValues("applied").Inc() },
		OnSkipped:  func() { m.Events.WithLabelValues("skipped").Inc() },
		OnError:    func(stage string) { m.Events.WithLabelValues(stage + "_error").Inc() },
	}

	rs := &resync.Resyncer{
		Log:        log,
		Ledger:     store,
		Projector:  projector,
		Projected:  projector.Store,
		Interval:   cfg.ResyncInterval,
		Window:     time.Hour,
		Now:        time.Now,
		OnRepaired: func(n int) { m.Events.WithLabelValues("resynced").Add(float64(n)) },
		OnError:    func(stage string) { m.Events.WithLabelValues(stage + "_error").Inc() },
	}
	go func() {
		if err := rs.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("resync stopped", zap.Error(err))
		}
	}()

	log.Info("projection-worker consuming", zap.String("topic", cfg.TopicGameEvents))
	if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = msrv.Shutdown(shutdownCtx)
}

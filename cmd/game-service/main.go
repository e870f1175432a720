package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/party-bet-platform/internal/game-service/game"
	ghttp "github.com/radieske/party-bet-platform/internal/game-service/http"
	"github.com/radieske/party-bet-platform/internal/game-service/ledger"
	kpub "github.com/radieske/party-bet-platform/internal/game-service/producer"
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

	// Postgres (ledger)
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()
	if err := db.Migrate(ctx, pg); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	store := ledger.NewPostgres(pg)

	checks := map[string]metrics.HealthFunc{"postgres": store.Ping}

	// Publicação: via Kafka (padrão) ou direto na projeção do Redis
	var pub game.Publisher
	switch cfg.ProjectionMode {
	case "direct":
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		pub = projection.NewProjector(
			projection.NewRedisStore(rdb, cfg.ProjectionTTL),
			projection.NewBroadcaster(rdb, cfg.RedisPubSubChannel),
			log,
		)
	default:
		writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicGameEvents)
		defer writer.Close()
		pub = kpub.NewKafkaPublisher(writer, cfg.TopicGameEvents)
	}

	m := metrics.NewGame(prometheus.DefaultRegisterer)
	ctl := game.New(store,
		game.WithPublisher(pub),
		game.WithLogger(log),
		game.WithMetrics(m),
		game.WithRules(cfg.StartingBalance, cfg.VolunteerMultiplier),
		game.WithPublishRetry(cfg.PublishMaxTries, func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		}),
	)

	// metrics/health
	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, checks)

	api := ghttp.NewServer(log, ctl)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("game-service listening", zap.String("addr", srv.Addr), zap.String("projection", cfg.ProjectionMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = msrv.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/party-bet-platform/internal/party-simulator/sim"
	"github.com/radieske/party-bet-platform/internal/shared/config"
	"github.com/radieske/party-bet-platform/internal/shared/logger"
	"github.com/radieske/party-bet-platform/internal/shared/metrics"
	"github.com/radieske/party-bet-platform/internal/shared/randutil"
)

var (
	roundsPlayed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simulator_rounds_total",
		Help: "Rodadas completas jogadas",
	})
	betsPlaced = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simulator_bets_total",
		Help: "Apostas feitas pelos bots",
	})
	roundErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simulator_round_errors_total",
		Help: "Rodadas interrompidas por erro",
	})
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

	prometheus.MustRegister(roundsPlayed, betsPlaced, roundErrors)
	metrics.StartMetricsServer(log, cfg.MetricsPort, nil)

	r := &sim.Runner{
		BaseURL:     cfg.GameURL,
		Client:      &http.Client{Timeout: 5 * time.Second},
		Log:         log,
		Rand:        randutil.Default(),
		Players:     int(cfg.SimPlayers),
		Contestants: int(cfg.SimContestants),
		MaxStake:    200,
		OnRound: func(res sim.RoundResult) {
			roundsPlayed.Inc()
			betsPlaced.Add(float64(res.Bets))
		},
	}

	ticker := time.NewTicker(cfg.SimInterval)
	defer ticker.Stop()

	var sessionID string
	var players []string
	for {
		if sessionID == "" {
			sessionID, players, err = r.NewSession(ctx)
			if err != nil {
				log.Warn("session setup failed", zap.Error(err))
			} else {
				log.Info("simulated session ready", zap.String("sessionId", sessionID), zap.Int("players", len(players)))
			}
		}
		if sessionID != "" {
			if _, err := r.PlayRound(ctx, sessionID, players); err != nil {
				roundErrors.Inc()
				log.Warn("round failed", zap.String("sessionId", sessionID), zap.Error(err))
				if errors.Is(err, sim.ErrNotEnoughVolunteers) {
					sessionID = "" // bots sem saldo: começa outra sessão
				}
			}
		}

		select {
		case <-ctx.Done():
			log.Info("simulator stopped")
			return
		case <-ticker.C:
		}
	}
}

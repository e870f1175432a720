// Package resync reconcilia periodicamente a projeção com o ledger.
// Publicações perdidas pelo game-service são recuperadas aqui: o snapshot do
// ledger carrega a versão atual e só é aplicado se a projeção estiver atrasada.
package resync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/party-bet-platform/internal/game-service/domain"
	"github.com/radieske/party-bet-platform/internal/game-service/game"
	"github.com/radieske/party-bet-platform/internal/shared/logger"
	"github.com/radieske/party-bet-platform/pkg/contracts/events"
)

const op = "resync"

type source interface {
	ActiveSessions(ctx context.Context, since time.Time) ([]string, error)
	Snapshot(ctx context.Context, sessionID string) (domain.Snapshot, error)
}

type applier interface {
	Apply(ctx context.Context, e events.GameStateChanged) (bool, error)
}

// versions lê a versão já projetada de uma sessão (0 quando ausente)
type versions interface {
	Version(ctx context.Context, sessionID string) (int64, error)
}

type Resyncer struct {
	Log       *zap.Logger
	Ledger    source
	Projector applier
	Projected versions // opcional: evita reaplicar sessões já em dia
	Interval  time.Duration
	Window    time.Duration // sessões OPEN alteradas há mais tempo são ignoradas
	Now       func() time.Time

	OnRepaired func(n int)
	OnError    func(string)
}

func (r *Resyncer) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Resyncer) fail(stage string) {
	if r.OnError != nil {
		r.OnError(stage)
	}
}

// Run executa Once a cada Interval até o contexto ser cancelado
func (r *Resyncer) Run(ctx context.Context) error {
	t := time.NewTicker(r.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if n, err := r.Once(ctx); err != nil {
				r.Log.Warn("resync failed", zap.Error(err))
			} else if n > 0 {
				r.Log.Info("projection repaired", zap.Int("sessions", n))
			}
		}
	}
}

// Once reaplica o snapshot de cada sessão ativa; devolve quantas estavam atrasadas
func (r *Resyncer) Once(ctx context.Context) (int, error) {
	now := r.now()
	ids, err := r.Ledger.ActiveSessions(ctx, now.Add(-r.Window))
	if err != nil {
		r.fail("list")
		return 0, err
	}

	repaired := 0
	for _, id := range ids {
		log := logger.Session(r.Log, id)
		snap, err := r.Ledger.Snapshot(ctx, id)
		if err != nil {
			r.fail("snapshot")
			log.Warn("resync snapshot failed", zap.Error(err))
			continue
		}
		if r.Projected != nil {
			projected, err := r.Projected.Version(ctx, id)
			if err != nil {
				r.fail("version")
				log.Warn("resync version read failed", zap.Error(err))
				continue
			}
			if projected >= snap.Session.Version {
				continue
			}
		}
		applied, err := r.Projector.Apply(ctx, game.SnapshotEvent(snap, op, "", now))
		if err != nil {
			r.fail("apply")
			log.Warn("resync apply failed", zap.Error(err))
			continue
		}
		if applied {
			repaired++
		}
	}
	if r.OnRepaired != nil && repaired > 0 {
		r.OnRepaired(repaired)
	}
	return repaired, ctx.Err()
}

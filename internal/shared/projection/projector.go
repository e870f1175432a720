package projection

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/party-bet-platform/internal/shared/logger"
	"github.com/radieske/party-bet-platform/pkg/contracts/events"
)

const broadcastTimeout = 500 * time.Millisecond

// Projector aplica eventos na projeção e avisa os observadores.
// Também satisfaz o Publisher do game-service no modo direto (sem Kafka).
type Projector struct {
	Store       *RedisStore
	Broadcaster *Broadcaster
	Log         *zap.Logger
}

func NewProjector(store *RedisStore, b *Broadcaster, log *zap.Logger) *Projector {
	return &Projector{Store: store, Broadcaster: b, Log: log}
}

// Apply grava o estado derivado do evento; versões antigas são ignoradas
func (p *Projector) Apply(ctx context.Context, e events.GameStateChanged) (bool, error) {
	st := Build(e)
	applied, err := p.Store.Apply(ctx, st)
	if err != nil || !applied {
		return false, err
	}

	if p.Broadcaster != nil {
		bctx, cancel := context.WithTimeout(ctx, broadcastTimeout)
		defer cancel()
		if err := p.Broadcaster.Publish(bctx, st); err != nil {
			// observadores convergem na próxima atualização ou no resync
			logger.Session(p.Log, st.SessionID).Warn("projection broadcast failed",
				zap.Int64("version", st.Version), zap.Error(err))
		}
	}
	return true, nil
}

func (p *Projector) Publish(ctx context.Context, e events.GameStateChanged) error {
	_, err := p.Apply(ctx, e)
	return err
}

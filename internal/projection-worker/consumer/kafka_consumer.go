package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/party-bet-platform/pkg/contracts/events"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type applier interface {
	Apply(ctx context.Context, e events.GameStateChanged) (bool, error)
}

// Processor consome game_events e aplica cada snapshot na projeção.
// Mensagens que não decodificam vão para a DLQ; falhas de Redis são só
// registradas, o resync periódico reconcilia a projeção com o ledger.
type Processor struct {
	Log       *zap.Logger
	Reader    messageReader
	Projector applier
	DLQ       messageWriter // opcional

	OnConsumed func()       // métricas
	OnApplied  func()       // métricas
	OnSkipped  func()       // versão antiga ou repetida
	OnError    func(string) // métricas por estágio
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

// Run inicia o loop de consumo até o contexto ser cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}
		p.handle(ctx, m)
	}
}

func (p *Processor) handle(ctx context.Context, m kafka.Message) {
	var ev events.GameStateChanged
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.SessionID == "" || ev.Version <= 0 {
		p.Log.Warn("invalid game event", zap.ByteString("key", m.Key), zap.Error(err))
		p.fail("decode")
		p.deadLetter(ctx, m, "decode")
		return
	}

	applied, err := p.Projector.Apply(ctx, ev)
	if err != nil {
		p.Log.Warn("projection apply failed",
			zap.String("sessionId", ev.SessionID), zap.Int64("version", ev.Version), zap.Error(err))
		p.fail("apply")
		return
	}
	if !applied {
		if p.OnSkipped != nil {
			p.OnSkipped()
		}
		p.Log.Debug("stale game event skipped",
			zap.String("sessionId", ev.SessionID), zap.Int64("version", ev.Version))
		return
	}
	if p.OnApplied != nil {
		p.OnApplied()
	}
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, reason string) {
	if p.DLQ == nil {
		return
	}
	err := p.DLQ.WriteMessages(ctx, kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Headers: append(m.Headers,
			kafka.Header{Key: "dlq_reason", Value: []byte(reason)},
			kafka.Header{Key: "source_topic", Value: []byte(m.Topic)},
		),
	})
	if err != nil {
		p.Log.Warn("dlq write failed", zap.Error(err))
		p.fail("dlq")
	}
}

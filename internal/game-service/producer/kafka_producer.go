package producer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/party-bet-platform/pkg/contracts/events"
)

// messageWriter é satisfeito por *kafka.Writer
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher publica os snapshots versionados no tópico de eventos do jogo.
// A chave é o código da sessão: com o balancer Hash todos os eventos de uma
// sessão caem na mesma partição e são consumidos em ordem.
type KafkaPublisher struct {
	Writer messageWriter
	Topic  string
}

func NewKafkaPublisher(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, Topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e events.GameStateChanged) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", e.Op, err)
	}
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.SessionID),
		Value: b,
		Time:  e.Ts,
		Headers: []kafka.Header{
			{Key: "op", Value: []byte(e.Op)},
		},
	})
}

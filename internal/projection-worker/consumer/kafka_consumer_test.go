package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/party-bet-platform/pkg/contracts/events"
)

// scriptedReader entrega as mensagens e cancela o contexto quando acabam
type scriptedReader struct {
	msgs   []kafka.Message
	cancel context.CancelFunc
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		if r.cancel != nil {
			r.cancel()
		}
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

type fakeProjector struct {
	seen    map[string]int64
	applied []events.GameStateChanged
	err     error
}

func (f *fakeProjector) Apply(_ context.Context, e events.GameStateChanged) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if e.Version <= f.seen[e.SessionID] {
		return false, nil
	}
	f.seen[e.SessionID] = e.Version
	f.applied = append(f.applied, e)
	return true, nil
}

type dlqWriter struct{ msgs []kafka.Message }

func (w *dlqWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func msg(t *testing.T, sid string, version int64) kafka.Message {
	t.Helper()
	b, err := json.Marshal(events.GameStateChanged{SessionID: sid, Version: version, Op: "placeBet"})
	require.NoError(t, err)
	return kafka.Message{Topic: "game_events", Key: []byte(sid), Value: b}
}

func TestProcessorAppliesInVersionOrder(t *testing.T) {
	proj := &fakeProjector{seen: map[string]int64{}}
	dlq := &dlqWriter{}
	stages := map[string]int{}
	var consumed, applied, skipped int

	p := &Processor{
		Log: zap.NewNop(),
		Reader: &scriptedReader{msgs: []kafka.Message{
			msg(t, "S1", 1),
			msg(t, "S1", 3),
			msg(t, "S1", 2),
			{Topic: "game_events", Key: []byte("S1"), Value: []byte("{not json")},
			msg(t, "S2", 1),
		}},
		Projector:  proj,
		DLQ:        dlq,
		OnConsumed: func() { consumed++ },
		OnApplied:  func() { applied++ },
		OnSkipped:  func() { skipped++ },
		OnError:    func(stage string) { stages[stage]++ },
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.Reader.(*scriptedReader).cancel = cancel
	assert.ErrorIs(t, p.Run(ctx), context.Canceled)

	assert.Equal(t, 5, consumed)
	assert.Equal(t, 3, applied)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 1, stages["decode"])
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "decode", string(dlq.msgs[0].Headers[0].Value))
	assert.Equal(t, int64(3), proj.seen["S1"])
	assert.Equal(t, int64(1), proj.seen["S2"])
}

func TestProcessorKeepsRunningOnApplyErrors(t *testing.T) {
	proj := &fakeProjector{seen: map[string]int64{}, err: errors.New("redis down")}
	stages := map[string]int{}
	p := &Processor{
		Log:       zap.NewNop(),
		Reader:    &scriptedReader{},
		Projector: proj,
		OnError:   func(stage string) { stages[stage]++ },
	}
	p.handle(context.Background(), msg(t, "S1", 1))
	p.handle(context.Background(), msg(t, "S1", 2))

	assert.Equal(t, 2, stages["apply"])
	assert.Empty(t, proj.applied)
}

func TestProcessorStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &Processor{Log: zap.NewNop(), Reader: &scriptedReader{}, Projector: &fakeProjector{seen: map[string]int64{}}}
	assert.ErrorIs(t, p.Run(ctx), context.Canceled)
}

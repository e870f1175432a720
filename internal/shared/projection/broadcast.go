package projection

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// Update é a mensagem do Pub/Sub consumida pelo live-service
type Update struct {
	SessionID string `json:"sessionId"`
	Version   int64  `json:"version"`
	Payload   State  `json:"payload"`
}

type Broadcaster struct {
	r       *redis.Client
	channel string
}

func NewBroadcaster(r *redis.Client, channel string) *Broadcaster {
	return &Broadcaster{r: r, channel: channel}
}

func (b *Broadcaster) Publish(ctx context.Context, st State) error {
	payload, err := json.Marshal(Update{SessionID: st.SessionID, Version: st.Version, Payload: st})
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, b.channel, payload).Err()
}

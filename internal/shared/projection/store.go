package projection

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// applyScript grava o estado só se a versão for maior que a armazenada.
// KEYS[1]=estado KEYS[2]=versão ARGV[1]=versão ARGV[2]=payload ARGV[3]=ttl em ms
var applyScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[2]) or '0')
local v = tonumber(ARGV[1])
if v <= cur then
  return 0
end
redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[3])
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// RedisStore guarda a projeção de cada sessão com TTL
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisStore(c *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{Client: c, TTL: ttl}
}

func stateKey(sessionID string) string   { return "game:state:" + sessionID }
func versionKey(sessionID string) string { return "game:version:" + sessionID }

// Apply grava o estado de forma idempotente; devolve false quando a versão
// já aplicada é igual ou mais nova
func (r *RedisStore) Apply(ctx context.Context, st State) (bool, error) {
	b, err := json.Marshal(st)
	if err != nil {
		return false, err
	}
	n, err := applyScript.Run(ctx, r.Client,
		[]string{stateKey(st.SessionID), versionKey(st.SessionID)},
		st.Version, b, r.TTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Get devolve o estado projetado; ok=false quando não há projeção
func (r *RedisStore) Get(ctx context.Context, sessionID string) (State, bool, error) {
	b, err := r.Client.Get(ctx, stateKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return State{}, false, err
	}
	return st, true, nil
}

// Version devolve a última versão aplicada (0 quando ausente)
func (r *RedisStore) Version(ctx context.Context, sessionID string) (int64, error) {
	v, err := r.Client.Get(ctx, versionKey(sessionID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/party-bet-platform/internal/shared/projection"
)

const writeTimeout = 5 * time.Second

// StateReader devolve o estado projetado atual de uma sessão
type StateReader interface {
	Get(ctx context.Context, sessionID string) (projection.State, bool, error)
}

// client serializa as escritas na conexão; gorilla não aceita escritores concorrentes
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
	sent map[string]int64 // última versão entregue por sessão
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(v)
}

func (c *client) write(v any) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

// sendState entrega o estado só se for mais novo que o último enviado à sessão.
// O estado inicial lido na assinatura pode perder a corrida para um Broadcast.
func (c *client) sendState(msg ServerMsg) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg.Version <= c.sent[msg.SessionID] {
		return false, nil
	}
	if err := c.write(msg); err != nil {
		return false, err
	}
	c.sent[msg.SessionID] = msg.Version
	return true, nil
}

func (c *client) forget(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sent, sessionID)
}

// Hub gerencia conexões WebSocket e assinaturas por sessão
type Hub struct {
	upgrader websocket.Upgrader
	states   StateReader
	log      *zap.Logger

	mu   sync.RWMutex
	subs map[string]map[*client]struct{} // sessionId -> conexões
}

// NewHub cria o hub; states pode ser nil (sem estado inicial na assinatura)
func NewHub(allowOrigin func(r *http.Request) bool, states StateReader, log *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		states:   states,
		log:      log,
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão; cada cliente pode
// acompanhar várias sessões
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	c := &client{conn: conn, sent: make(map[string]int64)}

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if msg.SessionID == "" {
				_ = c.send(ServerMsg{Type: "error", Error: "sessionId required"})
				continue
			}
			h.subscribe(msg.SessionID, c)
			h.sendCurrent(r.Context(), c, msg.SessionID)
		case "unsubscribe":
			h.unsubscribe(msg.SessionID, c)
			c.forget(msg.SessionID)
		case "ping":
			_ = c.send(ServerMsg{Type: "pong"})
		default:
			_ = c.send(ServerMsg{Type: "error", Error: "unknown message type"})
		}
	}

	h.mu.Lock()
	for id, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) subscribe(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sessionID]; !ok {
		h.subs[sessionID] = make(map[*client]struct{})
	}
	h.subs[sessionID][c] = struct{}{}
}

func (h *Hub) unsubscribe(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[sessionID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, sessionID)
		}
	}
}

// sendCurrent envia o estado atual logo após a assinatura
func (h *Hub) sendCurrent(ctx context.Context, c *client, sessionID string) {
	if h.states == nil {
		return
	}
	st, ok, err := h.states.Get(ctx, sessionID)
	if err != nil {
		h.log.Warn("read projection failed", zap.String("sessionId", sessionID), zap.Error(err))
		return
	}
	if ok {
		_, _ = c.sendState(ServerMsg{Type: "state", SessionID: sessionID, Version: st.Version, Payload: st})
	}
}

// Subscribers devolve quantas conexões acompanham a sessão
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// Broadcast envia a atualização para todos os inscritos na sessão
func (h *Hub) Broadcast(upd projection.Update) {
	h.mu.RLock()
	conns := make([]*client, 0, len(h.subs[upd.SessionID]))
	for c := range h.subs[upd.SessionID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	msg := ServerMsg{Type: "state", SessionID: upd.SessionID, Version: upd.Version, Payload: upd.Payload}
	for _, c := range conns {
		if _, err := c.sendState(msg); err != nil {
			h.log.Debug("ws write failed", zap.String("sessionId", upd.SessionID), zap.Error(err))
		}
	}
}

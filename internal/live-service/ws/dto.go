package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// SessionID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// ServerMsg é o envelope enviado aos clientes
type ServerMsg struct {
	Type      string `json:"type"` // state | pong | error
	SessionID string `json:"sessionId,omitempty"`
	Version   int64  `json:"version,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	Error     string `json:"error,omitempty"`
}

package topics

const (
	// Eventos do jogo (ledger -> projeção)
	GameEvents = "game_events"

	// DLQs
	GameEventsDLQ = "game_events_dlq"
)

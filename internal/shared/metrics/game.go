package metrics

import "github.com/prometheus/client_golang/prometheus"

// Game agrupa os contadores do game-service
type Game struct {
	Operations    *prometheus.CounterVec
	Bets          prometheus.Counter
	Payouts       prometheus.Counter
	PublishErrors prometheus.Counter
}

// NewGame registra os contadores no registerer informado
func NewGame(reg prometheus.Registerer) *Game {
	g := &Game{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "game_operations_total",
			Help: "operações do jogo por resultado",
		}, []string{"op", "result"}),
		Bets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "game_bets_total",
			Help: "apostas com alteração efetiva de valor",
		}),
		Payouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "game_payouts_total",
			Help: "soma dos prêmios pagos",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "game_publish_errors_total",
			Help: "falhas ao publicar eventos para a projeção",
		}),
	}
	reg.MustRegister(g.Operations, g.Bets, g.Payouts, g.PublishErrors)
	return g
}

// Projection agrupa os contadores do projection-worker
type Projection struct {
	Events *prometheus.CounterVec
}

func NewProjection(reg prometheus.Registerer) *Projection {
	p := &Projection{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "projection_events_total",
			Help: "eventos processados por estágio",
		}, []string{"stage"}),
	}
	reg.MustRegister(p.Events)
	return p
}

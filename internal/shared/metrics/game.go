package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// GameCollectors agrupa as métricas do motor de jogo.
// Os métodos batem com os callbacks expostos por game.Engine.
type GameCollectors struct {
	Started  prometheus.Counter
	Guesses  *prometheus.CounterVec // outcome: won | lost | continue
	Settled  *prometheus.CounterVec // status: won | lost
	Payout   prometheus.Counter
	Archived prometheus.Counter
	Errors   *prometheus.CounterVec // stage
}

// NewGameCollectors cria e registra as métricas no registerer informado
func NewGameCollectors(reg prometheus.Registerer) *GameCollectors {
	c := &GameCollectors{
		Started: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "game_sessions_started_total",
			Help: "partidas iniciadas (aposta debitada)",
		}),
		Guesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "game_guesses_total",
			Help: "palpites avaliados por resultado",
		}, []string{"outcome"}),
		Settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "game_sessions_settled_total",
			Help: "partidas encerradas por status",
		}, []string{"status"}),
		Payout: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "game_payout_units_total",
			Help: "unidades creditadas em vitórias (stake + ganho)",
		}),
		Archived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "game_sessions_archived_total",
			Help: "partidas movidas para o histórico",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "game_errors_total",
			Help: "falhas por estágio",
		}, []string{"stage"}),
	}
	reg.MustRegister(c.Started, c.Guesses, c.Settled, c.Payout, c.Archived, c.Errors)
	return c
}

func (c *GameCollectors) OnStarted() { c.Started.Inc() }

func (c *GameCollectors) OnGuess(outcome string) { c.Guesses.WithLabelValues(outcome).Inc() }

func (c *GameCollectors) OnSettled(status string, payout decimal.Decimal) {
	c.Settled.WithLabelValues(status).Inc()
	if payout.IsPositive() {
		c.Payout.Add(payout.InexactFloat64())
	}
}

func (c *GameCollectors) OnArchived() { c.Archived.Inc() }

func (c *GameCollectors) OnError(stage string) { c.Errors.WithLabelValues(stage).Inc() }

package topics

const (
	// Partidas
	GameStarted = "game_started"
	GameSettled = "game_settled"

	// DLQs
	GameSettledDLQ = "game_settled_dlq"
)

// Canal Redis Pub/Sub usado para notificar o game-service (ws) sobre partidas encerradas
const SettledBroadcastChannel = "game_settled_broadcast"

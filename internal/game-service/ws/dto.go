package ws

import "github.com/radieske/number-guess-platform/pkg/contracts/events"

// ClientMsg representa uma mensagem recebida do cliente WebSocket (só "ping").
type ClientMsg struct {
	Type string `json:"type"`
}

// Notification é o que o cliente recebe quando uma partida sua é liquidada.
type Notification struct {
	Type string             `json:"type"` // game_settled
	Game events.GameSettled `json:"game"`
}

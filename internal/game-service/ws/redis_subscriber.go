package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/number-guess-platform/pkg/contracts/events"
)

// StartRedisSubscriber escuta o canal de liquidações publicado pelo
// settlement-worker e repassa cada partida ao WebSocket do dono.
// A inscrição é confirmada antes de retornar.
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, hub *Hub, log *zap.Logger) error {
	sub := r.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close() // encerra a inscrição ao finalizar o contexto
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev events.GameSettled
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Warn("ws subscriber unmarshal error", zap.Error(err))
					continue
				}
				n := hub.Send(ev.UserID, Notification{Type: "game_settled", Game: ev})
				log.Debug("settlement pushed", zap.String("gameId", ev.GameID), zap.Int("connections", n))
			}
		}
	}()
	return nil
}

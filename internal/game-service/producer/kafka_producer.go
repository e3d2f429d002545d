package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/number-guess-platform/pkg/contracts/events"
)

// MessageWriter é o subconjunto do kafka.Writer usado aqui.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher publica o ciclo de vida das partidas; a chave é o userId
// para manter a ordem por usuário na mesma partição.
type KafkaPublisher struct {
	Started MessageWriter
	Settled MessageWriter
}

func NewKafkaPublisher(started, settled MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Started: started, Settled: settled}
}

func (p *KafkaPublisher) PublishGameStarted(ctx context.Context, e events.GameStarted) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.Started.WriteMessages(ctx, kafka.Message{Key: []byte(e.UserID), Value: b})
}

func (p *KafkaPublisher) PublishGameSettled(ctx context.Context, e events.GameSettled) error {
	if e.Ts.IsZero() {
		e.Ts = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.Settled.WriteMessages(ctx, kafka.Message{Key: []byte(e.UserID), Value: b})
}

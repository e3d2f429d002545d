package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/number-guess-platform/pkg/contracts/events"
)

// MessageReader é o subconjunto do kafka.Reader usado pelo Processor.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Repository interface {
	InsertSettlement(ctx context.Context, e events.GameSettled) (bool, error)
}

type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

var errInvalidEvent = errors.New("game_settled without gameId/userId")

// Processor consome game_settled, grava a auditoria e notifica o game-service.
// O offset só é commitado depois do processamento (ou do envio para a DLQ).
type Processor struct {
	Log         *zap.Logger
	Reader      MessageReader
	Repo        Repository
	Broadcaster Broadcaster
	Channel     string
	DLQ         MessageWriter // opcional

	Retries      int
	RetryBackoff time.Duration

	OnConsumed  func()       // métricas (counter++)
	OnPersist   func()       // métricas
	OnDuplicate func()       // métricas
	OnDLQ       func()       // métricas
	OnError     func(string) // métricas por fase
}

// Run inicia o loop principal de consumo até o contexto ser cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			p.onError("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		p.handle(ctx, m)

		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			p.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
			p.onError("commit")
		}
	}
}

func (p *Processor) handle(ctx context.Context, m kafka.Message) {
	var ev events.GameSettled
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		p.Log.Warn("invalid message", zap.Error(err))
		p.onError("decode")
		p.toDLQ(ctx, m, err)
		return
	}
	if ev.GameID == "" || ev.UserID == "" {
		p.onError("decode")
		p.toDLQ(ctx, m, errInvalidEvent)
		return
	}

	inserted, err := p.insertWithRetry(ctx, ev)
	if err != nil {
		p.Log.Error("settlement insert failed", zap.String("gameId", ev.GameID), zap.Error(err))
		p.onError("db_insert")
		p.toDLQ(ctx, m, err)
		return
	}
	if !inserted {
		p.Log.Debug("settlement already recorded", zap.String("gameId", ev.GameID))
		if p.OnDuplicate != nil {
			p.OnDuplicate()
		}
		return
	}
	if p.OnPersist != nil {
		p.OnPersist()
	}

	p.Log.Info("game settled",
		zap.String("gameId", ev.GameID),
		zap.String("userId", ev.UserID),
		zap.String("status", ev.Status),
		zap.String("payout", ev.Payout.String()),
	)

	if p.Broadcaster == nil {
		return
	}
	bctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := p.Broadcaster.Publish(bctx, p.Channel, m.Value); err != nil {
		p.Log.Warn("ws broadcast publish failed", zap.String("gameId", ev.GameID), zap.Error(err))
		p.onError("broadcast")
	}
}

// insertWithRetry tenta Retries vezes com backoff linear antes de desistir
func (p *Processor) insertWithRetry(ctx context.Context, ev events.GameSettled) (bool, error) {
	retries := p.Retries
	if retries <= 0 {
		retries = 3
	}
	var lastErr error
	for i := 0; i < retries; i++ {
		inserted, err := p.Repo.InsertSettlement(ctx, ev)
		if err == nil {
			return inserted, nil
		}
		lastErr = err
		if i < retries-1 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(time.Duration(i+1) * p.RetryBackoff):
			}
		}
	}
	return false, lastErr
}

func (p *Processor) toDLQ(ctx context.Context, m kafka.Message, cause error) {
	if p.DLQ == nil {
		return
	}
	err := p.DLQ.WriteMessages(ctx, kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Headers: []kafka.Header{
			{Key: "error", Value: []byte(cause.Error())},
			{Key: "source_topic", Value: []byte(m.Topic)},
		},
	})
	if err != nil {
		p.Log.Error("dlq write failed", zap.Error(err))
		p.onError("dlq")
		return
	}
	if p.OnDLQ != nil {
		p.OnDLQ()
	}
}

func (p *Processor) onError(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/number-guess-platform/internal/settlement-worker/consumer"
	"github.com/radieske/number-guess-platform/internal/settlement-worker/pubsub"
	"github.com/radieske/number-guess-platform/internal/settlement-worker/repository"
	"github.com/radieske/number-guess-platform/internal/shared/cache"
	"github.com/radieske/number-guess-platform/internal/shared/config"
	"github.com/radieske/number-guess-platform/internal/shared/db"
	"github.com/radieske/number-guess-platform/internal/shared/kafka"
	"github.com/radieske/number-guess-platform/internal/shared/logger"
	"github.com/radieske/number-guess-platform/internal/shared/metrics"
)

var (
	mConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_messages_consumed_total",
		Help: "mensagens game_settled lidas do Kafka",
	})
	mPersisted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_persisted_total",
		Help: "liquidações gravadas na auditoria",
	})
	mDuplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_duplicates_total",
		Help: "mensagens reentregues já gravadas",
	})
	mDLQ = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_dlq_total",
		Help: "mensagens enviadas para a DLQ",
	})
	mErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_errors_total",
		Help: "falhas por fase",
	}, []string{"stage"})
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "settlement-worker"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(mConsumed, mPersisted, mDuplicates, mDLQ, mErrors)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres: tabela de auditoria das liquidações
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()
	repo := repository.NewPostgresRepo(pg)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal("pg schema", zap.Error(err))
	}

	// Redis: broadcast para o WebSocket do game-service
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicGameSettled, "settlement-worker")
	defer reader.Close()

	p := &consumer.Processor{
		Log:          log,
		Reader:       reader,
		Repo:         repo,
		Broadcaster:  pubsub.NewRedisBroadcaster(rdb),
		Channel:      cfg.RedisPubSubChannel,
		Retries:      3,
		RetryBackoff: 200 * time.Millisecond,
		OnConsumed:   mConsumed.Inc,
		OnPersist:    mPersisted.Inc,
		OnDuplicate:  mDuplicates.Inc,
		OnDLQ:        mDLQ.Inc,
		OnError:      func(stage string) { mErrors.WithLabelValues(stage).Inc() },
	}
	if cfg.TopicGameSettledDLQ != "" {
		dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicGameSettledDLQ)
		defer dlq.Close()
		p.DLQ = dlq
	}

	health := func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	}
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, health, func(err error) {
		log.Error("metrics srv", zap.Error(err))
	})
	log.Info("settlement-worker started",
		zap.String("consume", cfg.TopicGameSettled),
		zap.String("dlq", cfg.TopicGameSettledDLQ),
		zap.String("broadcast", cfg.RedisPubSubChannel),
		zap.String("metrics", metricsSrv.Addr),
	)

	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("processor stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("settlement-worker stopped")
}

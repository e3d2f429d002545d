package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/number-guess-platform/internal/game"
	ghttp "github.com/radieske/number-guess-platform/internal/game-service/http"
	"github.com/radieske/number-guess-platform/internal/game-service/producer"
	"github.com/radieske/number-guess-platform/internal/game-service/ws"
	"github.com/radieske/number-guess-platform/internal/identity"
	"github.com/radieske/number-guess-platform/internal/session"
	"github.com/radieske/number-guess-platform/internal/shared/cache"
	"github.com/radieske/number-guess-platform/internal/shared/config"
	"github.com/radieske/number-guess-platform/internal/shared/db"
	"github.com/radieske/number-guess-platform/internal/shared/kafka"
	"github.com/radieske/number-guess-platform/internal/shared/logger"
	"github.com/radieske/number-guess-platform/internal/shared/metrics"
	"github.com/radieske/number-guess-platform/internal/store"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "game-service"
	}

	// Inicializa logger estruturado
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("store", cfg.StoreBackend))

	if cfg.InsecureSessionSecret() {
		log.Fatal("SESSION_SECRET must be set outside ENV=local")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis: sessões e canal de notificações (ausente no backend memory)
	var rdb *redis.Client
	if cfg.StoreBackend != "memory" {
		if rdb, err = cache.ConnectRedis(cfg.RedisAddr); err != nil {
			log.Fatal("redis connect", zap.Error(err))
		}
		defer rdb.Close()
	}

	// Record store: saldo, partida atual, histórico e identidades
	var (
		records store.RecordStore
		pg      *sql.DB
	)
	switch cfg.StoreBackend {
	case "postgres":
		if pg, err = db.ConnectPostgres(cfg.PostgresDSN); err != nil {
			log.Fatal("postgres connect", zap.Error(err))
		}
		defer pg.Close()
		ps := store.NewPostgres(pg)
		if err := ps.EnsureSchema(ctx); err != nil {
			log.Fatal("postgres schema", zap.Error(err))
		}
		records = ps
	case "redis":
		records = store.NewRedis(rdb)
	case "memory":
		records = store.NewMemory()
	default:
		log.Fatal("unknown STORE_BACKEND", zap.String("backend", cfg.StoreBackend))
	}

	var sessions session.Store = session.NewMemoryStore()
	if rdb != nil {
		sessions = session.NewRedisStore(rdb)
	}

	startingBalance, err := decimal.NewFromString(cfg.StartingBalance)
	if err != nil || !startingBalance.IsPositive() {
		log.Fatal("invalid STARTING_BALANCE", zap.String("value", cfg.StartingBalance))
	}
	rules := game.DefaultRules()
	rules.StartingBalance = startingBalance

	opts := []game.Option{game.WithRules(rules)}

	// Kafka producer: game_started e game_settled (opcional)
	if cfg.KafkaBrokers != "" {
		startedWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicGameStarted)
		defer startedWriter.Close()
		settledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicGameSettled)
		defer settledWriter.Close()
		opts = append(opts, game.WithPublisher(producer.NewKafkaPublisher(startedWriter, settledWriter)))
	}

	engine := game.NewEngine(log, records, opts...)

	// Métricas do motor
	collectors := metrics.NewGameCollectors(prometheus.DefaultRegisterer)
	engine.OnStarted = collectors.OnStarted
	engine.OnGuess = collectors.OnGuess
	engine.OnSettled = collectors.OnSettled
	engine.OnArchived = collectors.OnArchived
	engine.OnError = collectors.OnError

	api := &ghttp.API{
		Log:      log,
		Engine:   engine,
		Ledger:   session.NewLedger(sessions, cfg.SessionSecret, cfg.SessionTTL),
		Identity: identity.NewRecordProvider(records, 0),
		// sem provedor de email: o código vai para o log e, em local, na resposta
		Codes:       identity.LogSender{Log: log},
		ExposeCodes: cfg.Env == "local",
	}

	// WebSocket: liquidações confirmadas pelo settlement-worker chegam via Redis Pub/Sub
	if rdb != nil {
		api.Hub = ws.NewHub(log, func(r *http.Request) bool { return true })
		if err := ws.StartRedisSubscriber(ctx, rdb, cfg.RedisPubSubChannel, api.Hub, log); err != nil {
			log.Fatal("redis subscriber", zap.Error(err))
		}
	}

	health := func(ctx context.Context) error {
		if pg != nil {
			if err := pg.PingContext(ctx); err != nil {
				return err
			}
		}
		if rdb != nil {
			return rdb.Ping(ctx).Err()
		}
		return nil
	}
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, health, func(err error) {
		log.Error("metrics srv", zap.Error(err))
	})
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api srv", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}

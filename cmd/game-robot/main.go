package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/number-guess-platform/internal/game"
	gameclient "github.com/radieske/number-guess-platform/internal/game-client"
	"github.com/radieske/number-guess-platform/internal/shared/config"
	"github.com/radieske/number-guess-platform/internal/shared/logger"
	"github.com/radieske/number-guess-platform/internal/shared/metrics"
)

var (
	// Apostas fixas sorteadas pelos robôs
	betCatalog = []int64{10, 50, 100, 500}

	gamesPlayed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "robot_games_total",
		Help: "partidas jogadas pelos robôs por resultado",
	}, []string{"result"})
	guessesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "robot_guesses_total",
		Help: "palpites enviados",
	})
	robotErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "robot_errors_total",
		Help: "falhas por fase",
	}, []string{"stage"})
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "game-robot"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(gamesPlayed, guessesSent, robotErrors)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil, func(err error) {
		log.Error("metrics srv", zap.Error(err))
	})
	log.Info("game robot running",
		zap.String("target", cfg.GameServiceURL),
		zap.Int("players", cfg.RobotPlayers),
		zap.Duration("interval", cfg.RobotInterval),
	)

	var wg sync.WaitGroup
	for i := 0; i < cfg.RobotPlayers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			runPlayer(ctx, log.With(zap.Int("player", n)), cfg, int64(n))
		}(i)
	}
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}

// runPlayer cria uma conta verificada e joga partidas até o contexto acabar.
func runPlayer(ctx context.Context, log *zap.Logger, cfg config.Config, n int64) {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano() + n))
	c := gameclient.New(cfg.GameServiceURL)

	email := fmt.Sprintf("robot-%s@robots.local", uuid.NewString())
	// o código só volta na resposta quando o game-service roda com ENV=local
	code, err := c.Register(ctx, email, uuid.NewString())
	if err != nil {
		robotErrors.WithLabelValues("register").Inc()
		log.Error("register failed", zap.Error(err))
		return
	}
	if _, err := c.Verify(ctx, code); err != nil {
		robotErrors.WithLabelValues("verify").Inc()
		log.Error("verify failed", zap.Error(err))
		return
	}

	ticker := time.NewTicker(cfg.RobotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		p := game.StartParams{
			GameType:  2 + rnd.Intn(3),
			Attempts:  3 + rnd.Intn(5),
			BetAmount: decimal.NewFromInt(betCatalog[rnd.Intn(len(betCatalog))]),
		}
		out, err := c.Play(ctx, p, rnd.Int63())
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			var ae *gameclient.APIError
			if errors.As(err, &ae) {
				robotErrors.WithLabelValues(ae.Code).Inc()
			} else {
				robotErrors.WithLabelValues("play").Inc()
			}
			log.Warn("game failed", zap.Error(err))
			continue
		}

		guessesSent.Add(float64(out.Guesses))
		result := "lost"
		if out.Won {
			result = "won"
		}
		gamesPlayed.WithLabelValues(result).Inc()
		log.Info("game finished",
			zap.String("gameId", out.GameID),
			zap.String("result", result),
			zap.Int("guesses", out.Guesses),
			zap.String("balance", out.NewBalance.String()),
		)
	}
}

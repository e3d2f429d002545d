package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/number-guess-platform/internal/shared/config"
	"github.com/radieske/number-guess-platform/internal/shared/logger"
	"github.com/radieske/number-guess-platform/internal/shared/metrics"
)

var proxied = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "gateway_proxied_requests_total",
	Help: "requisições repassadas ao game-service",
}, []string{"method"})

func rp(to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil {
		return nil, err
	}
	return httputil.NewSingleHostReverseProxy(u), nil
}

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "api-gateway"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(proxied)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gameSvc, err := rp(cfg.GameServiceURL)
	if err != nil {
		log.Fatal("invalid GAME_SERVICE_URL", zap.String("url", cfg.GameServiceURL), zap.Error(err))
	}
	gameSvc.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream failed", zap.String("path", r.URL.Path), zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"success":false,"code":"STORAGE_UNAVAILABLE","error":"game service unavailable"}`))
	}

	mux := http.NewServeMux()

	// game (ex.: /api/game/auth/login -> game-service /auth/login)
	mux.Handle("/api/game/", http.StripPrefix("/api/game", countRequests(gameSvc)))

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil, func(err error) {
		log.Error("metrics srv", zap.Error(err))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           withCORS(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("api-gateway listening", zap.String("addr", srv.Addr), zap.String("upstream", cfg.GameServiceURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("gateway failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}

func countRequests(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied.WithLabelValues(r.Method).Inc()
		h.ServeHTTP(w, r)
	})
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/number-guess-platform/internal/game"
	"github.com/radieske/number-guess-platform/internal/game-service/dto"
	"github.com/radieske/number-guess-platform/internal/game-service/ws"
	"github.com/radieske/number-guess-platform/internal/identity"
	"github.com/radieske/number-guess-platform/internal/session"
	"github.com/radieske/number-guess-platform/internal/shared/apperr"
)

const sessionCookie = "session"

// API expõe autenticação e jogo via REST, mais o WebSocket de notificações.
type API struct {
	Log      *zap.Logger
	Engine   *game.Engine
	Ledger   *session.Ledger
	Identity identity.Provider
	Codes    identity.CodeSender // opcional
	Hub      *ws.Hub             // opcional

	// ExposeCodes devolve o código de verificação na resposta de register/login.
	ExposeCodes bool
}

// Router retorna o roteador HTTP com todas as rotas do game-service
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.requestLogger)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", a.register)
		r.Post("/login", a.login)
		r.With(a.requireSession(true)).Post("/verify", a.verify)
		r.With(a.requireSession(true)).Post("/logout", a.logout)
	})

	r.Route("/game", func(r chi.Router) {
		r.Use(a.requireSession(false))
		r.Post("/start", a.startGame)
		r.Get("/status", a.gameStatus)
		r.Post("/guess", a.guess)
		r.Post("/archive", a.archive)
		r.Get("/history", a.history)
	})

	if a.Hub != nil {
		r.With(a.requireSession(false)).Get("/ws", a.websocket)
	}
	return r
}

type ctxKey struct{}

func sessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(ctxKey{}).(*session.Session)
	return s
}

// tokenFrom lê o token do header Authorization, do cookie ou da query (WebSocket).
func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

// requireSession resolve a sessão do ledger; pendentes só passam com allowPending.
func (a *API) requireSession(allowPending bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := a.Ledger.Resolve(r.Context(), tokenFrom(r))
			if err != nil {
				a.writeError(w, r, err)
				return
			}
			if s.Pending && !allowPending {
				a.writeError(w, r, apperr.New(apperr.CodeNotAuthenticated, "verify your email before playing"))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, s)))
		})
	}
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.Log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("requestId", middleware.GetReqID(r.Context())),
		)
	})
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.GetCode(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		a.Log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("code", string(code)),
			zap.String("requestId", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, dto.ErrorResponse{Success: false, Code: string(code), Error: apperr.Message(err)})
}

func setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
}

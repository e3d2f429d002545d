// Package gameclient é o cliente HTTP do game-service usado pelo game-robot.
package gameclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/number-guess-platform/internal/game"
	"github.com/radieske/number-guess-platform/internal/game-service/dto"
)

// APIError é a resposta de erro do game-service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("game-service http %d %s: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Token   string
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Register cria a conta e guarda o token pendente. Retorna o código de
// verificação quando o servidor o expõe (ambiente local).
func (c *Client) Register(ctx context.Context, email, password string) (string, error) {
	var out dto.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", dto.RegisterRequest{Email: email, Password: password}, &out); err != nil {
		return "", err
	}
	c.Token = out.Token
	return out.VerificationCode, nil
}

func (c *Client) Verify(ctx context.Context, code string) (decimal.Decimal, error) {
	var out dto.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/verify", dto.VerifyRequest{Code: code}, &out); err != nil {
		return decimal.Zero, err
	}
	if out.Balance == nil {
		return decimal.Zero, nil
	}
	return *out.Balance, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*dto.AuthResponse, error) {
	var out dto.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", dto.LoginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	c.Token = out.Token
	return &out, nil
}

func (c *Client) Start(ctx context.Context, p game.StartParams) (*dto.StartGameResponse, error) {
	req := dto.StartGameRequest{
		GameType:  decimal.NewFromInt(int64(p.GameType)),
		BetAmount: p.BetAmount,
		Attempts:  decimal.NewFromInt(int64(p.Attempts)),
		Odds:      p.Odds,
	}
	var out dto.StartGameResponse
	if err := c.do(ctx, http.MethodPost, "/game/start", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Status(ctx context.Context) (*dto.StatusResponse, error) {
	var out dto.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/game/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Guess(ctx context.Context, digits []int) (*dto.GuessResponse, error) {
	var out dto.GuessResponse
	if err := c.do(ctx, http.MethodPost, "/game/guess", map[string][]int{"digits": digits}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Archive(ctx context.Context) (*dto.ArchiveResponse, error) {
	var out dto.ArchiveResponse
	if err := c.do(ctx, http.MethodPost, "/game/archive", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) History(ctx context.Context) ([]game.HistoryEntry, error) {
	var out dto.HistoryResponse
	if err := c.do(ctx, http.MethodGet, "/game/history", nil, &out); err != nil {
		return nil, err
	}
	return out.History, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		var e dto.ErrorResponse
		_ = json.NewDecoder(res.Body).Decode(&e)
		return &APIError{Status: res.StatusCode, Code: e.Code, Message: e.Error}
	}
	return json.NewDecoder(res.Body).Decode(out)
}

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/radieske/number-guess-platform/internal/game"
	"github.com/radieske/number-guess-platform/internal/game-service/dto"
	"github.com/radieske/number-guess-platform/internal/shared/apperr"
)

const maxBody = 64 << 10

func isForm(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data"
}

// fields lê o corpo JSON ou form como mapa campo -> valor JSON bruto.
// Valores de form viram strings JSON; campos vazios são ignorados.
func fields(r *http.Request) (map[string]json.RawMessage, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBody)
	out := map[string]json.RawMessage{}
	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			return nil, apperr.Wrap(apperr.CodeInvalidRequest, "malformed form body", err)
		}
		for k, vs := range r.PostForm {
			if len(vs) == 0 || strings.TrimSpace(vs[0]) == "" {
				continue
			}
			out[k], _ = json.Marshal(strings.TrimSpace(vs[0]))
		}
		return out, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return nil, apperr.Wrap(apperr.CodeInvalidRequest, "malformed JSON body", err)
	}
	return out, nil
}

// decode preenche dst a partir do corpo JSON ou form.
func decode(r *http.Request, dst any) error {
	f, err := fields(r)
	if err != nil {
		return err
	}
	b, _ := json.Marshal(f)
	if err := json.Unmarshal(b, dst); err != nil {
		return apperr.Wrap(apperr.CodeInvalidRequest, "invalid request fields", err)
	}
	return nil
}

// maxAttempts limita attempts antes da conversão para int.
var maxAttempts = decimal.NewFromInt(math.MaxInt32)

// startParams valida os limites ainda em decimal: IntPart de valores fora de
// int64 devolve só os bits baixos.
func startParams(req dto.StartGameRequest, maxGameType int) (game.StartParams, error) {
	if !req.GameType.IsInteger() || !req.Attempts.IsInteger() {
		return game.StartParams{}, apperr.New(apperr.CodeInvalidRequest, "game type and attempts must be whole numbers")
	}
	if req.GameType.IsNegative() || req.GameType.GreaterThan(decimal.NewFromInt(int64(maxGameType))) {
		return game.StartParams{}, apperr.New(apperr.CodeInvalidRequest, "game type must be between 1 and "+strconv.Itoa(maxGameType))
	}
	if req.Attempts.IsNegative() || req.Attempts.GreaterThan(maxAttempts) {
		return game.StartParams{}, apperr.New(apperr.CodeInvalidRequest, "attempts out of range")
	}
	if !req.BetAmount.IsPositive() {
		return game.StartParams{}, apperr.New(apperr.CodeInvalidRequest, "please select a bet amount")
	}
	return game.StartParams{
		GameType:  int(req.GameType.IntPart()),
		BetAmount: req.BetAmount,
		Attempts:  int(req.Attempts.IntPart()),
		Odds:      req.Odds,
	}, nil
}

// badDigit marca um campo ilegível; o motor o rejeita como palpite inválido
// depois de checar a partida.
const badDigit = -1

// decodeGuess aceita {"digits":[...]} ou os campos guess1..guessN.
// Só corpo malformado falha aqui; tamanho e faixa dos dígitos são do motor.
func decodeGuess(r *http.Request) (dto.GuessRequest, error) {
	f, err := fields(r)
	if err != nil {
		return dto.GuessRequest{}, err
	}
	if raw, ok := f["digits"]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return dto.GuessRequest{Digits: []int{badDigit}}, nil
		}
		ds := make([]int, len(items))
		for i, it := range items {
			ds[i] = digit(it)
		}
		return dto.GuessRequest{Digits: ds}, nil
	}

	var ds []int
	for i := 1; ; i++ {
		raw, ok := f["guess"+strconv.Itoa(i)]
		if !ok {
			break
		}
		ds = append(ds, digit(raw))
	}
	return dto.GuessRequest{Digits: ds}, nil
}

// digit aceita número ou string numérica; o resto vira badDigit.
func digit(raw json.RawMessage) int {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return badDigit
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return badDigit
	}
	return n
}

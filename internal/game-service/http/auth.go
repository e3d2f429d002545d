package httpapi

import (
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/number-guess-platform/internal/game-service/dto"
	"github.com/radieske/number-guess-platform/internal/identity"
)

// register cria a identidade e abre uma sessão pendente de verificação.
func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	id, err := a.Identity.Create(r.Context(), req.Email, req.Password, identity.Profile{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	token, s, err := a.Ledger.Open(r.Context(), id.UserID, id.Email, true, decimal.Zero)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.Log.Info("user registered", zap.String("userId", id.UserID))

	resp := dto.AuthResponse{
		Success: true,
		Token:   token,
		UserID:  id.UserID,
		Email:   id.Email,
		Pending: true,
		Message: "Registration successful. Verify your email to continue.",
	}
	a.deliverCode(r, &resp, id.VerificationCode)
	setSessionCookie(w, token, s.ExpiresAt)
	writeJSON(w, http.StatusCreated, resp)
}

// verify confere o código enviado por email, conclui a verificação da sessão
// pendente e aplica o saldo inicial.
func (a *API) verify(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	var req dto.VerifyRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.Identity.Verify(r.Context(), s.UserID, req.Code); err != nil {
		a.writeError(w, r, err)
		return
	}
	bal, err := a.Engine.EnsureBalance(r.Context(), s.UserID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.Ledger.Promote(r.Context(), s, bal); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AuthResponse{
		Success: true,
		UserID:  s.UserID,
		Email:   s.Email,
		Balance: &bal,
		Message: "Email verified successfully.",
	})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	id, err := a.Identity.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	resp := dto.AuthResponse{Success: true, UserID: id.UserID, Email: id.Email, Pending: !id.Verified}
	bal := decimal.Zero
	if id.Verified {
		if bal, err = a.Engine.EnsureBalance(r.Context(), id.UserID); err != nil {
			a.writeError(w, r, err)
			return
		}
		resp.Balance = &bal
	} else {
		code, err := a.Identity.IssueCode(r.Context(), id.UserID)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		resp.Message = "Verify your email to continue."
		a.deliverCode(r, &resp, code)
	}

	token, s, err := a.Ledger.Open(r.Context(), id.UserID, id.Email, !id.Verified, bal)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resp.Token = token
	setSessionCookie(w, token, s.ExpiresAt)
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.Ledger.Close(r.Context(), sessionFrom(r.Context())); err != nil {
		a.writeError(w, r, err)
		return
	}
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, dto.LogoutResponse{Success: true})
}

// deliverCode envia o código pelo CodeSender; falha de envio só é logada.
func (a *API) deliverCode(r *http.Request, resp *dto.AuthResponse, code string) {
	if code == "" {
		return
	}
	if a.Codes != nil {
		if err := a.Codes.SendVerificationCode(r.Context(), resp.Email, code); err != nil {
			a.Log.Warn("verification code delivery failed", zap.String("userId", resp.UserID), zap.Error(err))
		}
	}
	if a.ExposeCodes {
		resp.VerificationCode = code
	}
}

// Package apperr define a taxonomia de erros de domínio expostos ao cliente.
//
// Todo erro recuperável carrega um Code legível por máquina e uma mensagem
// para o usuário; o HTTP status é derivado do Code.
package apperr

import (
	"errors"
	"net/http"
)

// Code é o código de erro legível por máquina.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Jogo
	CodeInsufficientFunds    Code = "INSUFFICIENT_FUNDS"
	CodeNoActiveSession      Code = "NO_ACTIVE_SESSION"
	CodeSessionNotActive     Code = "SESSION_NOT_ACTIVE"
	CodeSessionAlreadyActive Code = "SESSION_ALREADY_ACTIVE"
	CodeNoAttemptsRemaining  Code = "NO_ATTEMPTS_REMAINING"
	CodeInvalidGuess         Code = "INVALID_GUESS"
	CodeInvalidRequest       Code = "INVALID_REQUEST"

	// Identidade / sessão
	CodeNotAuthenticated   Code = "NOT_AUTHENTICATED"
	CodeIdentityExists     Code = "IDENTITY_EXISTS"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"

	// Armazenamento
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
	CodeConcurrentUpdate   Code = "CONCURRENT_UPDATE"
)

// Error é o erro de domínio. Err (opcional) é a causa encadeada.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New cria um erro de domínio sem causa.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap cria um erro de domínio encadeando a causa.
func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// GetCode extrai o Code de qualquer erro; CodeUnknown se não for de domínio.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode verifica se o erro carrega o code informado.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// Message retorna a mensagem de usuário, ou uma genérica para erros desconhecidos.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "an unexpected error occurred"
}

// HTTPStatus mapeia o code para o status HTTP da resposta.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidGuess, CodeInvalidRequest:
		return http.StatusBadRequest

	case CodeNotAuthenticated, CodeInvalidCredentials:
		return http.StatusUnauthorized

	case CodeNoActiveSession:
		return http.StatusNotFound

	case CodeSessionNotActive,
		CodeSessionAlreadyActive,
		CodeNoAttemptsRemaining,
		CodeIdentityExists,
		CodeConcurrentUpdate:
		return http.StatusConflict

	case CodeInsufficientFunds:
		return http.StatusPaymentRequired

	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

package identity

import (
	"context"

	"go.uber.org/zap"
)

// CodeSender entrega o código de verificação ao dono do email.
type CodeSender interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}

// LogSender só registra o código no log; usado em ambiente local.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) SendVerificationCode(_ context.Context, email, code string) error {
	s.Log.Info("verification code issued", zap.String("email", email), zap.String("code", code))
	return nil
}

package email

import (
	"context"

	"go.uber.org/zap"
)

// SendResult is the outcome of a delivery attempt. Error is empty on
// success.
type SendResult struct {
	Success bool
	Error   string
}

func Succeeded() SendResult {
	return SendResult{Success: true}
}

func Failed(err error) SendResult {
	if err == nil {
		return SendResult{Error: "unknown error"}
	}
	return SendResult{Error: err.Error()}
}

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) SendResult
	SendTemplate(ctx context.Context, to []string, subject string, templateName string, data any) SendResult
}

// NoOpProvider accepts every message without delivering it.
type NoOpProvider struct {
	log *zap.Logger
}

func NewNoOp(log *zap.Logger) *NoOpProvider {
	return &NoOpProvider{log: log}
}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) SendResult {
	if p.log != nil {
		p.log.Debug("email delivery disabled", zap.Int("recipients", len(to)))
	}
	return Succeeded()
}

func (p *NoOpProvider) SendTemplate(ctx context.Context, to []string, subject string, templateName string, data any) SendResult {
	if _, err := Render(templateName, data); err != nil {
		return Failed(err)
	}
	return p.Send(ctx, to, subject, "")
}

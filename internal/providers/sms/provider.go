// Package sms delivers text messages. Gateway integrations plug in behind Provider.
package sms

import (
	"context"
	"errors"
	"strings"

	obslogger "github.com/smallbiznis/wastebill/internal/observability/logger"
	"go.uber.org/zap"
)

var ErrEmptyRecipient = errors.New("sms_empty_recipient")

type Provider interface {
	Send(ctx context.Context, to string, message string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to string, message string) error {
	return nil
}

// LogProvider writes each message to the log instead of a gateway.
type LogProvider struct {
	log      *zap.Logger
	senderID string
}

func NewLogProvider(log *zap.Logger, senderID string) *LogProvider {
	return &LogProvider{log: log.Named("sms.log"), senderID: senderID}
}

func (p *LogProvider) Send(ctx context.Context, to string, message string) error {
	if strings.TrimSpace(to) == "" {
		return ErrEmptyRecipient
	}
	p.log.Info("sms",
		zap.String("sender_id", p.senderID),
		obslogger.Recipient(to),
		zap.Int("length", len(message)),
	)
	return nil
}

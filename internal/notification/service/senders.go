package service

import (
	"context"

	notificationdomain "github.com/smallbiznis/wastebill/internal/notification/domain"
	"github.com/smallbiznis/wastebill/internal/providers/email"
	"github.com/smallbiznis/wastebill/internal/providers/sms"
)

type smsSender struct {
	provider sms.Provider
}

func (s smsSender) Notify(ctx context.Context, to string, n notificationdomain.Notification) error {
	return s.provider.Send(ctx, to, n.Body)
}

type emailSender struct {
	provider email.Provider
}

func (s emailSender) Notify(ctx context.Context, to string, n notificationdomain.Notification) error {
	return s.provider.Send(ctx, []string{to}, n.Subject, n.Body)
}

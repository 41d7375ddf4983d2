package sms

import (
	"strings"

	"github.com/smallbiznis/wastebill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.sms",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	switch strings.ToLower(strings.TrimSpace(cfg.SMS.Provider)) {
	case "log":
		return NewLogProvider(log, cfg.SMS.SenderID)
	default:
		return &NoOpProvider{}
	}
}

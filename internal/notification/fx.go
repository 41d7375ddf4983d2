package notification

import (
	"context"

	"github.com/smallbiznis/wastebill/internal/notification/repository"
	"github.com/smallbiznis/wastebill/internal/notification/service"
	paymentdomain "github.com/smallbiznis/wastebill/internal/payment/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(d *service.Dispatcher) paymentdomain.Notifier { return d }),
	fx.Invoke(registerDispatcher),
)

func registerDispatcher(lc fx.Lifecycle, d *service.Dispatcher) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			d.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			d.Stop()
			return nil
		},
	})
}

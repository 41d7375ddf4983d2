package scheduler

import (
	"context"

	notificationservice "github.com/smallbiznis/wastebill/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(func(d *notificationservice.Dispatcher) Drainer { return d }),
	fx.Provide(New),
	fx.Invoke(Register),
)

// Register ties the scheduler loop to the fx lifecycle.
func Register(lc fx.Lifecycle, sched *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return sched.Start()
		},
		OnStop: func(ctx context.Context) error {
			return sched.Stop(ctx)
		},
	})
}

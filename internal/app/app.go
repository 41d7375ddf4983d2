// Package app composes the fx graphs shared by the wastebill binaries.
package app

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wastebill/internal/authorization"
	"github.com/smallbiznis/wastebill/internal/clock"
	"github.com/smallbiznis/wastebill/internal/config"
	"github.com/smallbiznis/wastebill/internal/customer"
	"github.com/smallbiznis/wastebill/internal/health"
	"github.com/smallbiznis/wastebill/internal/invoice"
	"github.com/smallbiznis/wastebill/internal/ledger"
	"github.com/smallbiznis/wastebill/internal/migration"
	"github.com/smallbiznis/wastebill/internal/mpesa"
	"github.com/smallbiznis/wastebill/internal/notification"
	"github.com/smallbiznis/wastebill/internal/observability"
	"github.com/smallbiznis/wastebill/internal/payment"
	"github.com/smallbiznis/wastebill/internal/providers"
	"github.com/smallbiznis/wastebill/internal/ratelimit"
	"github.com/smallbiznis/wastebill/internal/report"
	"github.com/smallbiznis/wastebill/internal/scheduler"
	"github.com/smallbiznis/wastebill/internal/server"
	"github.com/smallbiznis/wastebill/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Snowflake node ids per process role. Processes writing concurrently must
// not share one.
const (
	NodeAPI       int64 = 1
	NodeScheduler int64 = 2
	NodeCLI       int64 = 3
)

// Infrastructure is config, logging, the database and the clock.
func Infrastructure(nodeID int64) fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(func() (*snowflake.Node, error) { return snowflake.NewNode(nodeID) }),
		db.Module,
		clock.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: log.Named("fx")}
			l.UseLogLevel(zap.DebugLevel)
			return l
		}),
	)
}

// Domain is every billing service plus its delivery providers.
var Domain = fx.Options(
	ratelimit.Module,
	providers.Module,
	ledger.Module,
	customer.Module,
	invoice.Module,
	notification.Module,
	payment.Module,
	mpesa.Module,
	report.Module,
	authorization.Module,
)

func API() fx.Option {
	return fx.Options(
		Infrastructure(NodeAPI),
		migration.Module,
		Domain,
		health.Module,
		server.Module,
	)
}

func Scheduler() fx.Option {
	return fx.Options(
		Infrastructure(NodeScheduler),
		Domain,
		scheduler.Module,
	)
}

// Run builds a short-lived graph, starts it, hands control to fn and stops
// the graph again. targets are passed to fx.Populate.
func Run(ctx context.Context, opts fx.Option, fn func(ctx context.Context) error, targets ...any) error {
	application := fx.New(opts, fx.Populate(targets...))
	if err := application.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := application.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(ctx)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStop()
	if err := application.Stop(stopCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/smallbiznis/wastebill/internal/app"
	"github.com/smallbiznis/wastebill/internal/authorization"
	customerdomain "github.com/smallbiznis/wastebill/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/wastebill/internal/invoice/domain"
	"github.com/smallbiznis/wastebill/internal/migration"
	mpesadomain "github.com/smallbiznis/wastebill/internal/mpesa/domain"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show wastebill version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "wastebill %s (%s)\n", version, commit)
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilSignal(cmd.Context(), app.API())
		},
	}
}

func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run issuance, M-Pesa reprocessing and notification jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilSignal(cmd.Context(), app.Scheduler())
		},
	}
}

func runUntilSignal(ctx context.Context, opts fx.Option) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return app.Run(ctx, opts, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
}

func newMigrateCmd() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Apply, roll back or inspect schema migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}

			var conn *gorm.DB
			return app.Run(commandContext(cmd), app.Infrastructure(app.NodeCLI), func(ctx context.Context) error {
				sqlDB, err := conn.DB()
				if err != nil {
					return err
				}
				switch action {
				case "down":
					if err := migration.Rollback(sqlDB, steps); err != nil {
						return err
					}
				case "up":
					if err := migration.RunMigrations(sqlDB); err != nil {
						return err
					}
				}
				v, dirty, err := migration.Version(sqlDB)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", v, dirty)
				return nil
			}, &conn)
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
	return cmd
}

func newIssueCmd() *cobra.Command {
	var (
		month int
		year  int
		day   string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue monthly invoices to active customers",
		Long:  "Issue the monthly charge invoice for every active customer, or only those collected on --day. Customers already invoiced for the period are skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if month == 0 {
				month = int(now.Month())
			}
			if year == 0 {
				year = now.Year()
			}

			var svc invoicedomain.Service
			return app.Run(commandContext(cmd), fx.Options(app.Infrastructure(app.NodeCLI), app.Domain), func(ctx context.Context) error {
				var (
					result invoicedomain.IssueResult
					err    error
				)
				if day != "" {
					period := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
					result, err = svc.IssueForCollectionDay(ctx, customerdomain.CollectionDay(day), period)
				} else {
					result, err = svc.IssueForMonth(ctx, month, year)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "period %s: issued=%d skipped=%d failed=%d\n",
					result.Period.Format("2006-01"), len(result.Invoices), result.Skipped, result.Failed)
				return nil
			}, &svc)
		},
	}

	cmd.Flags().IntVar(&month, "month", 0, "Billing month 1-12 (default current month)")
	cmd.Flags().IntVar(&year, "year", 0, "Billing year (default current year)")
	cmd.Flags().StringVar(&day, "day", "", "Only customers collected on this weekday")
	return cmd
}

func newCancelLatestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-latest",
		Short: "Cancel the most recently issued system-generated invoice",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc invoicedomain.Service
			return app.Run(commandContext(cmd), fx.Options(app.Infrastructure(app.NodeCLI), app.Domain), func(ctx context.Context) error {
				inv, err := svc.CancelLatestSystemGenerated(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s for customer %s\n", inv.InvoiceNumber, inv.CustomerID)
				return nil
			}, &svc)
		},
	}
}

func newReprocessCmd() *cobra.Command {
	var batch int

	cmd := &cobra.Command{
		Use:   "reprocess",
		Short: "Retry settlement of unprocessed M-Pesa transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc mpesadomain.Service
			return app.Run(commandContext(cmd), fx.Options(app.Infrastructure(app.NodeCLI), app.Domain), func(ctx context.Context) error {
				result, err := svc.Reprocess(ctx, batch)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "claimed=%d allocated=%d unmatched=%d failed=%d\n",
					result.Claimed, result.Allocated, result.Unmatched, result.Failed)
				return nil
			}, &svc)
		},
	}

	cmd.Flags().IntVar(&batch, "batch", 50, "Maximum transactions to claim")
	return cmd
}

func newRolesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "roles",
		Short: "List roles and their capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			enforcer, err := authorization.NewEnforcer()
			if err != nil {
				return err
			}
			svc := authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})
			return printRoles(cmd.OutOrStdout(), svc, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printRoles(w io.Writer, svc authorization.Service, jsonOutput bool) error {
	if jsonOutput {
		out := make(map[authorization.Role][]authorization.Capability, len(authorization.Roles))
		for _, role := range authorization.Roles {
			out[role] = svc.Capabilities(role)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, role := range authorization.Roles {
		caps := svc.Capabilities(role)
		fmt.Fprintf(w, "%s (%d)\n", role, len(caps))
		for _, c := range caps {
			fmt.Fprintf(w, "  %s:%s\n", c.Resource, c.Action)
		}
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

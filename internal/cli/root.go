// Package cli is the wastebill command line.
package cli

import "github.com/spf13/cobra"

var (
	version = "dev"
	commit  = "none"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "wastebill",
		Short:         "Waste collection billing",
		Long:          "wastebill issues monthly invoices to waste collection customers, settles M-Pesa and cash payments against them and reports on arrears.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSchedulerCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newIssueCmd())
	cmd.AddCommand(newCancelLatestCmd())
	cmd.AddCommand(newReprocessCmd())
	cmd.AddCommand(newRolesCmd())
	return cmd
}

func Execute() error {
	return newRootCmd().Execute()
}

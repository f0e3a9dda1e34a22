package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/metwrap/internal/config"
	"github.com/papapumpkin/metwrap/internal/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger [app]",
	Short: "Show or clear the record of completed commands",
	Long: `Lists the commands recorded in the run ledger, for one application or all
of them. Commands listed as done are skipped by "metwrap run" unless --force
is given; --forget clears an application's record so everything runs again.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLedger,
}

func init() {
	ledgerCmd.Flags().Bool("forget", false, "delete the recorded commands of the application")
	rootCmd.AddCommand(ledgerCmd)
}

func runLedger(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app := ""
	if len(args) == 1 {
		app = args[0]
	}

	ctx := context.Background()
	l, err := ledger.Open(ctx, cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer l.Close()

	if forget, _ := cmd.Flags().GetBool("forget"); forget {
		if app == "" {
			return fmt.Errorf("--forget needs an application")
		}
		n, err := l.Forget(ctx, app)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "forgot %d command(s) of %s\n", n, app)
		return nil
	}

	entries, err := l.Entries(ctx, app)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tAPP\tSTATE\tCOMMAND")
	for _, e := range entries {
		state := e.State
		if e.Error != "" {
			state += ": " + e.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.StartedAt.Local().Format(time.DateTime), e.App, state, e.Command)
	}
	return tw.Flush()
}

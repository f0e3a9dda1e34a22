package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/metwrap/internal/strsub"
	"github.com/papapumpkin/metwrap/internal/ui"
)

var parseCmd = &cobra.Command{
	Use:   "parse <template> <string>",
	Short: "Recover the time-info record a filled-in template came from",
	Long: `Matches the string against the template and prints the time-info record
the template would have produced it from. Templates may only shift valid,
by a single amount.

Example:
  metwrap parse '{init?fmt=%Y%m%d%H}/gfs.f{lead?fmt=%3H}' 2024050100/gfs.f006`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ti, err := strsub.ParseTemplate(args[0], args[1])
		if err != nil {
			return err
		}
		if ti == nil {
			return fmt.Errorf("%q does not match %q", args[1], args[0])
		}
		ui.NewWriter(cmd.OutOrStdout()).TimeInfo(*ti)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

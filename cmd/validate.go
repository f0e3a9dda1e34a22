package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/metwrap/internal/wrapper"
)

var validateCmd = &cobra.Command{
	Use:   "validate <app>",
	Short: "Check an application's configuration and executable",
	Long: `Checks that the MET executable for the application can be found and that
the configuration produces commands: the time loop, the lead sequence, the
filename templates and the skip rules are all resolved as a run would.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		w := wrapper.New(args[0], s.store, wrapper.Deps{})

		var errs []error
		if _, err := s.invoker().Validate(w.Tool()); err != nil {
			errs = append(errs, err)
		}
		jobs, err := w.Plan()
		if err != nil {
			errs = append(errs, err)
		}
		for _, j := range jobs {
			if j.Err != nil {
				errs = append(errs, fmt.Errorf("init %s lead %s: %w", j.Info.InitFmt, j.Info.LeadString, j.Err))
			}
		}

		s.printer.ValidateResult(w.App, len(jobs), errs)
		if len(errs) > 0 {
			return fmt.Errorf("%s: %d problem(s) found", w.App, len(errs))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

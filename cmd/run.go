package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papapumpkin/metwrap/internal/wrapper"
)

var runCmd = &cobra.Command{
	Use:   "run <app>",
	Short: "Run a MET application over every run time and lead",
	Long: `Builds the commands for the application and runs them in order. Commands
the ledger lists as completed are skipped unless --force is given. With
--plan the commands are read from a TOML or YAML plan written by
"metwrap plan" instead of being built from the configuration.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().Bool("dry-run", false, "print the commands without running them")
	runCmd.Flags().Bool("force", false, "rerun commands that already completed")
	runCmd.Flags().String("plan", "", "run the commands of a saved plan")
	_ = viper.BindPFlag("dry_run", runCmd.Flags().Lookup("dry-run"))
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")
	planPath, _ := cmd.Flags().GetString("plan")
	opts := wrapper.Options{DryRun: s.app.DryRun, Force: force}

	ctx, cancel := setupSignalContext(s.printer)
	defer cancel()

	deps := wrapper.Deps{}
	if !opts.DryRun {
		var closeDeps func()
		deps, closeDeps, err = s.deps(ctx)
		if err != nil {
			return err
		}
		defer closeDeps()
	}
	w := wrapper.New(args[0], s.store, deps)

	var jobs []wrapper.Job
	if planPath != "" {
		jobs, err = jobsFromPlanFile(w, planPath)
	} else {
		jobs, err = w.Plan()
	}
	if err != nil {
		return err
	}

	report := w.Execute(ctx, jobs, opts)
	s.printer.RunReport(w.App, report)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	return report.Err()
}

func jobsFromPlanFile(w *wrapper.Wrapper, path string) ([]wrapper.Job, error) {
	format := planFormat("", path)
	if format == wrapper.FormatText {
		return nil, fmt.Errorf("plan %s: only TOML and YAML plans can be run", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening plan: %w", err)
	}
	defer f.Close()
	entries, err := wrapper.ReadPlan(f, format)
	if err != nil {
		return nil, err
	}
	jobs := w.JobsFromPlan(entries)
	if len(jobs) == 0 {
		return nil, fmt.Errorf("plan %s has no commands for %s", path, w.App)
	}
	return jobs, nil
}

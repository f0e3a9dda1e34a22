package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/metwrap/internal/wrapper"
)

var planCmd = &cobra.Command{
	Use:   "plan <app>",
	Short: "List every command a run would execute",
	Long: `Builds the commands for every run time and lead of the application without
running anything. The plan is written as text, TOML or YAML; a TOML or YAML
plan can later be executed with "metwrap run --plan".`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().String("format", "", "plan format: text, toml or yaml (default from --output, else text)")
	planCmd.Flags().StringP("output", "o", "", "write the plan to a file instead of stdout")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	format = planFormat(format, output)

	w := wrapper.New(args[0], s.store, wrapper.Deps{})
	jobs, err := w.Plan()
	if err != nil {
		return err
	}

	if output == "" {
		return wrapper.WritePlan(cmd.OutOrStdout(), format, jobs)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating plan file: %w", err)
	}
	if err := wrapper.WritePlan(f, format, jobs); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing plan file: %w", err)
	}
	s.printer.Plan(w.App, jobs)
	s.printer.Info(fmt.Sprintf("plan written to %s", output))
	return nil
}

// planFormat returns the explicit format, or the one implied by the file
// extension of path.
func planFormat(format, path string) string {
	if format != "" {
		return strings.ToLower(format)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return wrapper.FormatTOML
	case ".yaml", ".yml":
		return wrapper.FormatYAML
	}
	return wrapper.FormatText
}

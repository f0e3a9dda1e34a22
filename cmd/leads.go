package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/metwrap/internal/leadseq"
	"github.com/papapumpkin/metwrap/internal/timeinfo"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List the forecast leads of a configuration",
	Long: `Resolves the forecast leads from LEAD_SEQ, INIT_SEQ or the lead groups
and prints them in order. INIT_SEQ needs a valid time, given with --valid.
With --groups the labeled lead groups are printed instead.`,
	Args: cobra.NoArgs,
	RunE: runLeads,
}

func init() {
	leadsCmd.Flags().String("valid", "", "valid time (YYYYMMDD[HH[MM[SS]]]) for INIT_SEQ")
	leadsCmd.Flags().Bool("wildcard", false, "report a wildcard lead when none are configured")
	leadsCmd.Flags().Bool("groups", false, "print the lead groups")
	rootCmd.AddCommand(leadsCmd)
}

func runLeads(cmd *cobra.Command, _ []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if groups, _ := cmd.Flags().GetBool("groups"); groups {
		gs, err := leadseq.Groups(s.store)
		if err != nil {
			return err
		}
		for _, g := range gs {
			letters := make([]string, 0, len(g.Leads))
			for _, o := range g.Leads {
				letters = append(letters, o.Letters())
			}
			fmt.Fprintf(out, "%s: %s\n", g.Label, strings.Join(letters, ", "))
		}
		return nil
	}

	var run *timeinfo.Input
	if raw, _ := cmd.Flags().GetString("valid"); raw != "" {
		valid, err := parseStamp(raw)
		if err != nil {
			return err
		}
		run = &timeinfo.Input{LoopBy: timeinfo.LoopByValid, Valid: timeinfo.At(valid)}
	}
	wildcard, _ := cmd.Flags().GetBool("wildcard")

	leads, err := leadseq.Resolve(s.store, run, wildcard)
	if err != nil {
		return err
	}
	for _, lead := range leads {
		if lead.IsWildcard() {
			fmt.Fprintln(out, timeinfo.Wildcard)
			continue
		}
		fmt.Fprintf(out, "%-8s %s\n", lead.Offset().Letters(), lead.String())
	}
	return nil
}

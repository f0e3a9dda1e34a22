package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/metwrap/internal/reltime"
	"github.com/papapumpkin/metwrap/internal/strsub"
	"github.com/papapumpkin/metwrap/internal/timeinfo"
)

var subCmd = &cobra.Command{
	Use:   "sub <template>",
	Short: "Fill in a filename template for one time",
	Long: `Computes the time-info record from the given times and substitutes it into
the template. Any two of --init, --valid and --lead (or --da-init with
--offset) describe the time. A template whose shift expands to a list prints
one line per expansion.

Example:
  metwrap sub '{init?fmt=%Y%m%d%H}/gfs.f{lead?fmt=%3H}' --init 2024050100 --lead 6`,
	Args: cobra.ExactArgs(1),
	RunE: runSub,
}

func init() {
	subCmd.Flags().String("init", "", "initialization time (YYYYMMDD[HH[MM[SS]]])")
	subCmd.Flags().String("valid", "", "valid time (YYYYMMDD[HH[MM[SS]]])")
	subCmd.Flags().String("da-init", "", "data assimilation time (YYYYMMDD[HH[MM[SS]]])")
	subCmd.Flags().String("lead", "", "forecast lead, hours when unitless")
	subCmd.Flags().String("offset", "", "data assimilation offset, hours when unitless")
	subCmd.Flags().String("loop-by", "", "driver when both --init and --valid are given (init or valid)")
	subCmd.Flags().String("custom", "", "value of the {custom} tag")
	subCmd.Flags().StringArray("tag", nil, "extra tag value as name=value (repeatable)")
	subCmd.Flags().Bool("skip-missing", false, "leave tags without a value unchanged")
	rootCmd.AddCommand(subCmd)
}

func runSub(cmd *cobra.Command, args []string) error {
	in, err := inputFromFlags(cmd)
	if err != nil {
		return err
	}
	ti, err := timeinfo.Calculate(in)
	if err != nil {
		return err
	}

	var opts []strsub.Option
	if skip, _ := cmd.Flags().GetBool("skip-missing"); skip {
		opts = append(opts, strsub.WithSkipMissing())
	}
	results, err := strsub.SubstituteAll(args[0], ti.Map(), opts...)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Fprintln(cmd.OutOrStdout(), r)
	}
	return nil
}

// inputFromFlags builds a Calculate input from the time flags of sub.
func inputFromFlags(cmd *cobra.Command) (timeinfo.Input, error) {
	var in timeinfo.Input
	for _, f := range []struct {
		name string
		dst  *timeinfo.Moment
	}{
		{"init", &in.Init},
		{"valid", &in.Valid},
		{"da-init", &in.DAInit},
	} {
		raw, _ := cmd.Flags().GetString(f.name)
		switch raw {
		case "":
			continue
		case timeinfo.Wildcard:
			*f.dst = timeinfo.AnyTime()
			continue
		}
		t, err := parseStamp(raw)
		if err != nil {
			return in, fmt.Errorf("--%s: %w", f.name, err)
		}
		*f.dst = timeinfo.At(t)
	}

	if raw, _ := cmd.Flags().GetString("lead"); raw != "" {
		if raw == timeinfo.Wildcard {
			in.Lead = timeinfo.AnyLead()
		} else {
			o, ok := reltime.Parse(raw, reltime.Hours)
			if !ok {
				return in, fmt.Errorf("--lead %q: expected a duration such as 6, 90M or 1d", raw)
			}
			in.Lead = timeinfo.LeadOf(o)
		}
	}
	if raw, _ := cmd.Flags().GetString("offset"); raw != "" {
		secs, ok := reltime.ParseSeconds(raw, reltime.Hours)
		if !ok {
			return in, fmt.Errorf("--offset %q: expected a fixed duration such as 6 or -3H", raw)
		}
		in.Offset = &secs
	}

	loopBy, _ := cmd.Flags().GetString("loop-by")
	switch strings.ToLower(loopBy) {
	case "":
	case "init":
		in.LoopBy = timeinfo.LoopByInit
	case "valid":
		in.LoopBy = timeinfo.LoopByValid
	default:
		return in, fmt.Errorf("--loop-by %q: expected init or valid", loopBy)
	}

	in.Custom, _ = cmd.Flags().GetString("custom")
	tags, _ := cmd.Flags().GetStringArray("tag")
	for _, tag := range tags {
		name, value, ok := strings.Cut(tag, "=")
		if !ok || name == "" {
			return in, fmt.Errorf("--tag %q: expected name=value", tag)
		}
		if in.Extra == nil {
			in.Extra = make(map[string]string)
		}
		in.Extra[name] = value
	}
	return in, nil
}

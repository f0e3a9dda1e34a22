package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/metwrap/internal/leadseq"
	"github.com/papapumpkin/metwrap/internal/timeinfo"
	"github.com/papapumpkin/metwrap/internal/timeloop"
)

var timesCmd = &cobra.Command{
	Use:   "times",
	Short: "List the run times of a configuration",
	Long: `Prints every run time the configuration loops over, one per line, as
init, valid and lead. With --leads each run time is crossed with the
resolved forecast leads.

Entries of an explicit <PREFIX>_LIST that cannot be parsed are reported and
skipped; a fatal configuration problem stops the listing.`,
	Args: cobra.NoArgs,
	RunE: runTimes,
}

func init() {
	timesCmd.Flags().String("custom", "", "value of the {custom} tag")
	timesCmd.Flags().Bool("leads", false, "cross each run time with the forecast leads")
	rootCmd.AddCommand(timesCmd)
}

func runTimes(cmd *cobra.Command, _ []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	custom, _ := cmd.Flags().GetString("custom")
	withLeads, _ := cmd.Flags().GetBool("leads")

	out := cmd.OutOrStdout()
	gen := timeloop.New(s.store, custom)
	defer gen.Close()

	failed := 0
	for {
		item, ok := gen.Next()
		if !ok {
			break
		}
		if item.Err != nil {
			failed++
			s.printer.Error(item.Err.Error())
			continue
		}

		leads := []timeinfo.Lead{timeinfo.SecondsLead(0)}
		if withLeads {
			run := item.Input
			leads, err = leadseq.Resolve(s.store, &run, false)
			if err != nil {
				return err
			}
		}
		for _, lead := range leads {
			in := item.Input
			in.Lead = lead
			ti, err := timeinfo.Calculate(in)
			if err != nil {
				failed++
				s.printer.Error(err.Error())
				continue
			}
			fmt.Fprintf(out, "init=%s valid=%s lead=%s\n", ti.InitFmt, ti.ValidFmt, ti.LeadString)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d run time(s) could not be produced", failed)
	}
	return nil
}

// parseStamp parses a %Y%m%d[%H[%M[%S]]] timestamp in UTC.
func parseStamp(s string) (time.Time, error) {
	for _, layout := range []string{"20060102150405", "200601021504", "2006010215", "20060102"} {
		if len(s) != len(layout) {
			continue
		}
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q: expected YYYYMMDD[HH[MM[SS]]]", s)
}

// Package ui prints human-oriented progress and summaries to stderr.
// Machine-readable results go to stdout from the commands themselves.
package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/papapumpkin/metwrap/internal/timeinfo"
	"github.com/papapumpkin/metwrap/internal/watch"
	"github.com/papapumpkin/metwrap/internal/wrapper"
)

// Printer writes styled output.
type Printer struct {
	w io.Writer
}

// New returns a Printer writing to stderr.
func New() *Printer {
	return &Printer{w: os.Stderr}
}

// NewWriter returns a Printer writing to w.
func NewWriter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Error prints an error message.
func (p *Printer) Error(msg string) {
	fmt.Fprintf(p.w, "%s %s\n", styleDanger.Render("error:"), msg)
}

// Warn prints a warning.
func (p *Printer) Warn(msg string) {
	fmt.Fprintf(p.w, "%s %s\n", styleWarn.Render("warning:"), msg)
}

// Info prints a de-emphasized message.
func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.w, styleMuted.Render(msg))
}

// Plan lists the jobs of app, marking the ones that will not run.
func (p *Printer) Plan(app string, jobs []wrapper.Job) {
	fmt.Fprintf(p.w, "\n%s\n", styleHeading.Render("plan: "+app))
	if len(jobs) == 0 {
		fmt.Fprintln(p.w, styleMuted.Render("  (no commands)"))
		return
	}
	for _, j := range jobs {
		when := styleMuted.Render(fmt.Sprintf("init %s lead %s", j.Info.InitFmt, j.Info.LeadString))
		switch {
		case j.Err != nil:
			fmt.Fprintf(p.w, "  %s %s\n      %v\n", styleDanger.Render(iconFailed), when, j.Err)
		case j.Skip != "":
			fmt.Fprintf(p.w, "  %s %s %s\n", styleWarn.Render(iconSkipped), when, styleMuted.Render(j.Skip))
		default:
			fmt.Fprintf(p.w, "  %s %s\n      %s\n", stylePlanned.Render(iconPlanned), when, j.Command.String())
		}
	}
	fmt.Fprintln(p.w)
}

// Outcome prints one finished job.
func (p *Printer) Outcome(o wrapper.Outcome) {
	cmd := o.Job.Command.String()
	switch o.Status {
	case wrapper.StatusDone:
		fmt.Fprintf(p.w, "%s %s %s\n", styleSuccess.Render(iconDone), cmd, styleMuted.Render("("+formatDuration(o.Duration)+")"))
	case wrapper.StatusFailed:
		fmt.Fprintf(p.w, "%s %s\n  %v\n", styleDanger.Render(iconFailed), cmd, o.Err)
	case wrapper.StatusSkipped:
		fmt.Fprintf(p.w, "%s %s %s\n", styleWarn.Render(iconSkipped), styleMuted.Render(o.Job.Info.InitFmt+" "+o.Job.Info.LeadString), styleMuted.Render("skipped: "+o.Reason))
	case wrapper.StatusPlanned:
		fmt.Fprintf(p.w, "%s %s\n", stylePlanned.Render(iconPlanned), cmd)
	}
}

// RunReport prints every outcome followed by a one-line summary.
func (p *Printer) RunReport(app string, r wrapper.Report) {
	for _, o := range r.Outcomes {
		p.Outcome(o)
	}
	summary := fmt.Sprintf("done: %d, skipped: %d, failed: %d", r.Count(wrapper.StatusDone), r.Count(wrapper.StatusSkipped), r.Count(wrapper.StatusFailed))
	if n := r.Count(wrapper.StatusPlanned); n > 0 {
		summary += fmt.Sprintf(", planned: %d", n)
	}
	if r.Count(wrapper.StatusFailed) > 0 {
		fmt.Fprintf(p.w, "%s %s\n", styleDanger.Render(iconFailed+" "+app), summary)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", styleSuccess.Render(iconDone+" "+app), summary)
}

// ValidateResult prints the outcome of validating the configuration of app.
func (p *Printer) ValidateResult(app string, jobs int, errs []error) {
	if len(errs) == 0 {
		fmt.Fprintf(p.w, "%s %d command(s), no errors\n", styleSuccess.Render(iconDone+" "+app), jobs)
		return
	}
	fmt.Fprintf(p.w, "%s %d error(s):\n", styleDanger.Render(iconFailed+" "+app), len(errs))
	for _, e := range errs {
		fmt.Fprintf(p.w, "  %s %v\n", styleDanger.Render("•"), e)
	}
}

// Arrival prints an input file reported by the watcher.
func (p *Printer) Arrival(a watch.Arrival) {
	fmt.Fprintf(p.w, "%s %s %s\n", styleHeading.Render(iconArrival), a.Rel,
		styleMuted.Render(fmt.Sprintf("init %s valid %s lead %s", a.Info.InitFmt, a.Info.ValidFmt, a.Info.LeadString)))
}

// TimeInfo prints every field of ti as an aligned table.
func (p *Printer) TimeInfo(ti timeinfo.TimeInfo) {
	m := ti.Map()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(p.w, "  %s %s\n", styleLabel.Render(k), formatValue(m[k]))
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case time.Time:
		return x.Format(timeinfo.StampLayout)
	case fmt.Stringer:
		return x.String()
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

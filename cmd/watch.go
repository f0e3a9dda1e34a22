package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/metwrap/internal/telemetry"
	"github.com/papapumpkin/metwrap/internal/timeinfo"
	"github.com/papapumpkin/metwrap/internal/ui"
	"github.com/papapumpkin/metwrap/internal/watch"
	"github.com/papapumpkin/metwrap/internal/wrapper"
)

var watchCmd = &cobra.Command{
	Use:   "watch <app>",
	Short: "Report input files as they arrive",
	Long: `Watches the application's input directory and reports every new file that
matches one of its input templates, together with the times recovered from
the file name. With --run, the commands for each arrival's time are run as
the file appears. Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Bool("scan", false, "report matching files already present before watching")
	watchCmd.Flags().Bool("run", false, "run the commands for each arrival")
	watchCmd.Flags().Bool("dry-run", false, "with --run, print the commands instead of running them")
	watchCmd.Flags().Bool("force", false, "with --run, rerun commands that already completed")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	scan, _ := cmd.Flags().GetBool("scan")
	run, _ := cmd.Flags().GetBool("run")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	force, _ := cmd.Flags().GetBool("force")
	opts := wrapper.Options{DryRun: dryRun || s.app.DryRun, Force: force}

	ctx, cancel := setupSignalContext(s.printer)
	defer cancel()

	deps := wrapper.Deps{}
	if run && !opts.DryRun {
		var closeDeps func()
		deps, closeDeps, err = s.deps(ctx)
		if err != nil {
			return err
		}
		defer closeDeps()
	}
	w := wrapper.New(args[0], s.store, deps)

	root, templates, err := w.WatchTemplates()
	if err != nil {
		return err
	}
	watcher, err := watch.NewWatcher(root, templates, &s.logger)
	if err != nil {
		return err
	}
	defer watcher.Stop()

	h := &arrivalHandler{w: w, printer: s.printer, emitter: deps.Emitter, run: run, opts: opts}
	if scan {
		present, err := watcher.Scan()
		if err != nil {
			return err
		}
		for _, a := range present {
			h.handle(ctx, a)
		}
	}

	if err := watcher.Start(); err != nil {
		return err
	}
	s.printer.Info(fmt.Sprintf("watching %s for %d template(s)", watcher.Dir, len(templates)))

	for {
		select {
		case <-ctx.Done():
			return nil
		case a, ok := <-watcher.Arrivals:
			if !ok {
				return nil
			}
			h.handle(ctx, a)
		}
	}
}

// arrivalHandler reports an arrival and optionally runs its commands.
type arrivalHandler struct {
	w       *wrapper.Wrapper
	printer *ui.Printer
	emitter *telemetry.Emitter
	run     bool
	opts    wrapper.Options
}

func (h *arrivalHandler) handle(ctx context.Context, a watch.Arrival) {
	h.printer.Arrival(a)
	evt := telemetry.Event{Kind: telemetry.KindInputArrived, App: h.w.App, Data: map[string]string{
		"path":  a.Path,
		"init":  a.Info.InitFmt,
		"valid": a.Info.ValidFmt,
		"lead":  a.Info.LeadString,
	}}
	if err := h.emitter.Emit(evt); err != nil {
		h.printer.Warn(err.Error())
	}
	if !h.run {
		return
	}

	jobs, err := h.w.JobsFor([]timeinfo.TimeInfo{*a.Info})
	if err != nil {
		h.printer.Error(err.Error())
		return
	}
	report := h.w.Execute(ctx, jobs, h.opts)
	h.printer.RunReport(h.w.App, report)
}

package wrapper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/papapumpkin/metwrap/internal/telemetry"
	"github.com/papapumpkin/metwrap/internal/timeinfo"
)

// ErrCommandsFailed is returned by Report.Err when any job failed.
var ErrCommandsFailed = errors.New("commands failed")

// Status is the outcome of one job.
type Status string

// Job outcomes.
const (
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusPlanned Status = "planned" // dry run
)

// Options control execution.
type Options struct {
	// DryRun logs each command instead of running it.
	DryRun bool
	// Force reruns commands the ledger already lists as completed.
	Force bool
}

// Outcome records what happened to one job.
type Outcome struct {
	Job      Job
	Status   Status
	Reason   string
	Err      error
	Duration time.Duration
}

// Report summarizes a run.
type Report struct {
	RunID    string
	Outcomes []Outcome
}

// Count returns how many jobs ended with status s.
func (r Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Err returns an error wrapping ErrCommandsFailed when any job failed.
func (r Report) Err() error {
	if n := r.Count(StatusFailed); n > 0 {
		return fmt.Errorf("%w: %d of %d", ErrCommandsFailed, n, len(r.Outcomes))
	}
	return nil
}

// Plan returns every job of the run without running anything.
func (w *Wrapper) Plan() ([]Job, error) {
	slots, err := w.slots()
	if err != nil {
		return nil, w.configError("", err)
	}
	return w.jobs(slots)
}

// JobsFor returns the jobs for explicit time-info records, as when an input
// arrival triggers a run for its own time.
func (w *Wrapper) JobsFor(infos []timeinfo.TimeInfo) ([]Job, error) {
	slots := make([]slot, 0, len(infos))
	for _, ti := range infos {
		slots = append(slots, slot{ti: ti})
	}
	return w.jobs(slots)
}

func (w *Wrapper) jobs(slots []slot) ([]Job, error) {
	s, err := w.settings()
	if err != nil {
		return nil, w.configError("", err)
	}
	jobs := make([]Job, 0, len(slots))
	for _, sl := range slots {
		jobs = append(jobs, w.build(s, sl))
	}
	return jobs, nil
}

// Run plans the run and executes it.
func (w *Wrapper) Run(ctx context.Context, opts Options) (Report, error) {
	jobs, err := w.Plan()
	if err != nil {
		return Report{}, err
	}
	return w.Execute(ctx, jobs, opts), nil
}

// Execute runs jobs in order. It stops early when ctx is cancelled; jobs not
// reached have no outcome.
func (w *Wrapper) Execute(ctx context.Context, jobs []Job, opts Options) Report {
	report := Report{RunID: telemetry.NewRunID()}
	dryRun := opts.DryRun || w.deps.Invoker == nil
	log := w.logger.With().Str("app", w.App).Str("run", report.RunID).Logger()

	if w.deps.Ledger != nil && !dryRun {
		if err := w.deps.Ledger.StartRun(ctx, report.RunID, w.App); err != nil {
			log.Warn().Err(err).Msg("cannot record run in ledger")
		}
	}
	w.emitRun(telemetry.KindRunStart, report.RunID, map[string]any{"jobs": len(jobs), "dry_run": dryRun})

	for _, job := range jobs {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Msg("run interrupted")
			break
		}
		o := w.execute(ctx, report.RunID, job, opts.Force, dryRun)
		report.Outcomes = append(report.Outcomes, o)

		ev := log.Info()
		if o.Status == StatusFailed {
			ev = log.Error().Err(o.Err)
		}
		ev.Str("status", string(o.Status)).
			Str("init", job.Info.InitFmt).
			Str("valid", job.Info.ValidFmt).
			Str("lead", job.Info.LeadString).
			Str("reason", o.Reason).
			Msg(job.Command.String())
	}

	w.emitRun(telemetry.KindRunDone, report.RunID, map[string]int{
		"done":    report.Count(StatusDone),
		"failed":  report.Count(StatusFailed),
		"skipped": report.Count(StatusSkipped),
		"planned": report.Count(StatusPlanned),
	})
	return report
}

func (w *Wrapper) execute(ctx context.Context, runID string, job Job, force, dryRun bool) Outcome {
	o := Outcome{Job: job}
	data := map[string]string{
		"init": job.Info.InitFmt, "valid": job.Info.ValidFmt, "lead": job.Info.LeadString,
		"command": job.Command.String(),
	}

	switch {
	case job.Err != nil:
		o.Status, o.Err = StatusFailed, job.Err
		data["error"] = job.Err.Error()
		w.emitRun(telemetry.KindCommandFailed, runID, data)
		return o
	case job.Skip != "":
		o.Status, o.Reason = StatusSkipped, job.Skip
		data["reason"] = job.Skip
		w.emitRun(telemetry.KindCommandSkipped, runID, data)
		return o
	}

	key := job.Key()
	if w.deps.Ledger != nil && !force {
		done, err := w.deps.Ledger.Completed(ctx, key)
		if err != nil {
			w.logger.Warn().Err(err).Msg("cannot read ledger")
		}
		if done {
			o.Status, o.Reason = StatusSkipped, "already completed"
			data["reason"] = o.Reason
			w.emitRun(telemetry.KindCommandSkipped, runID, data)
			return o
		}
	}

	if dryRun {
		o.Status, o.Reason = StatusPlanned, "dry run"
		return o
	}

	if job.OutputDir != "" {
		if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
			o.Status, o.Err = StatusFailed, fmt.Errorf("create output directory: %w", err)
			data["error"] = o.Err.Error()
			w.emitRun(telemetry.KindCommandFailed, runID, data)
			return o
		}
	}

	if w.deps.Ledger != nil {
		if err := w.deps.Ledger.Begin(ctx, key, w.App, runID, job.Command.String()); err != nil {
			w.logger.Warn().Err(err).Msg("cannot record command in ledger")
		}
	}
	w.emitRun(telemetry.KindCommandStart, runID, data)

	res, err := w.deps.Invoker.Invoke(ctx, job.Command)
	o.Duration = res.Duration
	if w.deps.Ledger != nil {
		if lerr := w.deps.Ledger.Finish(ctx, key, err); lerr != nil {
			w.logger.Warn().Err(lerr).Msg("cannot record outcome in ledger")
		}
	}
	data["duration"] = res.Duration.String()
	if err != nil {
		o.Status, o.Err = StatusFailed, err
		data["error"] = err.Error()
		w.emitRun(telemetry.KindCommandFailed, runID, data)
		return o
	}
	o.Status = StatusDone
	w.emitRun(telemetry.KindCommandDone, runID, data)
	return o
}

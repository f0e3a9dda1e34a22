package wrapper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/papapumpkin/metwrap/internal/config"
	"github.com/papapumpkin/metwrap/internal/ledger"
	"github.com/papapumpkin/metwrap/internal/mettool"
)

type fakeInvoker struct {
	mu    sync.Mutex
	calls []mettool.Command
	err   error
}

func (f *fakeInvoker) Invoke(_ context.Context, c mettool.Command) (mettool.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return mettool.Result{Duration: time.Millisecond}, f.err
}

// fixture lays out GFS-style inputs under a temporary directory:
// 2024050100/f000, 2024050100/f006 and 2024050112/f000.
type fixture struct {
	in, out string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{in: filepath.Join(root, "in"), out: filepath.Join(root, "out")}
	for _, rel := range []string{"2024050100/f000.grb2", "2024050100/f006.grb2", "2024050112/f000.grb2"} {
		path := filepath.Join(f.in, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("GRIB"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

// store builds a GRID_STAT configuration looping over two inits and two
// leads, with overrides applied on top.
func (f fixture) store(t *testing.T, overrides map[string]any) *config.Store {
	t.Helper()
	values := map[string]any{
		config.ClockTimeKey:         "20240501180000",
		"LOOP_BY":                   "INIT",
		"INIT_TIME_FMT":             "%Y%m%d%H",
		"INIT_BEG":                  "2024050100",
		"INIT_END":                  "2024050112",
		"INIT_INCREMENT":            "12H",
		"LEAD_SEQ":                  "0, 6",
		"GRID_STAT_INPUT_DIR":       f.in,
		"GRID_STAT_INPUT_TEMPLATE":  "{init?fmt=%Y%m%d%H}/f{lead?fmt=%3H}.grb2",
		"GRID_STAT_OUTPUT_DIR":      f.out,
		"GRID_STAT_OUTPUT_TEMPLATE": "{valid?fmt=%Y%m%d%H}/stat.txt",
		"GRID_STAT_ARGS":            "-v 2",
	}
	for k, v := range overrides {
		values[k] = v
	}
	s, err := config.FromMap(map[string]map[string]any{config.SectionConfig: values}, zerolog.Nop())
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	return s
}

func (f fixture) input(rel string) string  { return filepath.Join(f.in, rel) }
func (f fixture) output(rel string) string { return filepath.Join(f.out, rel) }

func TestPlan_ForEach(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	jobs, err := New("grid_stat", f.store(t, nil), Deps{}).Plan()
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(jobs) != 4 {
		t.Fatalf("Plan returned %d jobs, want 4", len(jobs))
	}

	want := mettool.Command{
		Tool: "grid_stat",
		Args: []string{f.input("2024050100/f006.grb2"), f.output("2024050106/stat.txt"), "-v", "2"},
	}
	if diff := cmp.Diff(want, jobs[1].Command); diff != "" {
		t.Errorf("second command mismatch (-want +got):\n%s", diff)
	}
	if jobs[1].OutputDir != f.output("2024050106") {
		t.Errorf("output dir = %s", jobs[1].OutputDir)
	}
	if jobs[3].Skip == "" || jobs[3].Err != nil {
		t.Errorf("init 12 lead 6 has no input; job = %+v", jobs[3])
	}
	for i := range 3 {
		if jobs[i].Skip != "" || jobs[i].Err != nil {
			t.Errorf("job %d should be runnable: skip %q err %v", i, jobs[i].Skip, jobs[i].Err)
		}
	}
}

func TestPlan_Mandatory(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	jobs, err := New("grid_stat", f.store(t, map[string]any{"GRID_STAT_MANDATORY": "true"}), Deps{}).Plan()
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !errors.Is(jobs[3].Err, ErrMissingInput) {
		t.Errorf("missing mandatory input error = %v, want ErrMissingInput", jobs[3].Err)
	}
}

func TestPlan_RuntimeFrequencies(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		freq   string
		inputs [][]string
	}{
		{
			freq: "RUN_ONCE",
			inputs: [][]string{
				{f.input("2024050100/f000.grb2"), f.input("2024050100/f006.grb2"), f.input("2024050112/f000.grb2")},
			},
		},
		{
			freq: "RUN_ONCE_PER_INIT_OR_VALID",
			inputs: [][]string{
				{f.input("2024050100/f000.grb2"), f.input("2024050100/f006.grb2")},
				{f.input("2024050112/f000.grb2")},
			},
		},
		{
			freq: "run_once_per_lead",
			inputs: [][]string{
				{f.input("2024050100/f000.grb2"), f.input("2024050112/f000.grb2")},
				{f.input("2024050100/f006.grb2")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.freq, func(t *testing.T) {
			t.Parallel()
			cfg := f.store(t, map[string]any{
				"GRID_STAT_RUNTIME_FREQ":    tt.freq,
				"GRID_STAT_OUTPUT_TEMPLATE": "",
			})
			jobs, err := New("grid_stat", cfg, Deps{}).Plan()
			if err != nil {
				t.Fatalf("Plan: %v", err)
			}
			var got [][]string
			for _, j := range jobs {
				if j.Err != nil || j.Skip != "" {
					t.Fatalf("job not runnable: skip %q err %v", j.Skip, j.Err)
				}
				got = append(got, j.Inputs)
			}
			if diff := cmp.Diff(tt.inputs, got); diff != "" {
				t.Errorf("inputs mismatch (-want +got):\n%s", diff)
			}
			if jobs[0].Output != f.out {
				t.Errorf("output = %q, want the output directory", jobs[0].Output)
			}
		})
	}
}

func TestPlan_SkipTimes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	jobs, err := New("grid_stat", f.store(t, map[string]any{"GRID_STAT_SKIP_TIMES": "%H:begin_end_incr(10,14,2)"}), Deps{}).Plan()
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if jobs[2].Skip == "" {
		t.Errorf("valid 2024050112 should be skipped")
	}
	if jobs[0].Skip != "" || jobs[1].Skip != "" {
		t.Errorf("valid hours 00 and 06 should run")
	}
}

func TestPlan_CustomLoop(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	cfg := f.store(t, map[string]any{
		"GRID_STAT_RUNTIME_FREQ": "RUN_ONCE",
		"CUSTOM_LOOP_LIST":       "gfs, hrrr",
		"GRID_STAT_ARGS":         "-model {custom}",
	})
	jobs, err := New("grid_stat", cfg, Deps{}).Plan()
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("Plan returned %d jobs, want 2", len(jobs))
	}
	for i, model := range []string{"gfs", "hrrr"} {
		args := jobs[i].Command.Args
		if args[len(args)-1] != model {
			t.Errorf("job %d args = %v, want model %s", i, args, model)
		}
	}
}

func TestPlan_FatalConfiguration(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name      string
		overrides map[string]any
	}{
		{"bad runtime freq", map[string]any{"GRID_STAT_RUNTIME_FREQ": "HOURLY"}},
		{"end before begin", map[string]any{"INIT_END": "2024043000"}},
		{"bad lead sequence", map[string]any{"LEAD_SEQ": "0, soon"}},
		{"skip times without format", map[string]any{"GRID_STAT_SKIP_TIMES": "12"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			jobs, err := New("grid_stat", f.store(t, tt.overrides), Deps{}).Plan()
			if !errors.Is(err, config.ErrInvalid) {
				t.Errorf("Plan error = %v, want ErrInvalid", err)
			}
			if jobs != nil {
				t.Errorf("Plan jobs = %d, want none", len(jobs))
			}
		})
	}
}

func TestRun_LedgerSkipsCompleted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	led, err := ledger.Open(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	defer led.Close()

	inv := &fakeInvoker{}
	w := New("grid_stat", f.store(t, nil), Deps{Invoker: inv, Ledger: led})

	report, err := w.Run(ctx, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Count(StatusDone) != 3 || report.Count(StatusSkipped) != 1 || report.Err() != nil {
		t.Fatalf("first run: done %d skipped %d err %v", report.Count(StatusDone), report.Count(StatusSkipped), report.Err())
	}
	if _, err := os.Stat(f.output("2024050106")); err != nil {
		t.Errorf("output directory not created: %v", err)
	}

	report, _ = w.Run(ctx, Options{})
	if report.Count(StatusSkipped) != 4 || len(inv.calls) != 3 {
		t.Errorf("second run: skipped %d, invocations %d; want 4 and 3", report.Count(StatusSkipped), len(inv.calls))
	}

	report, _ = w.Run(ctx, Options{Force: true})
	if report.Count(StatusDone) != 3 || len(inv.calls) != 6 {
		t.Errorf("forced run: done %d, invocations %d; want 3 and 6", report.Count(StatusDone), len(inv.calls))
	}
}

func TestRun_FailuresAndDryRun(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	inv := &fakeInvoker{err: errors.New("exit status 1")}
	report, err := New("grid_stat", f.store(t, nil), Deps{Invoker: inv}).Run(ctx, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !errors.Is(report.Err(), ErrCommandsFailed) || report.Count(StatusFailed) != 3 {
		t.Errorf("report err = %v, failed = %d", report.Err(), report.Count(StatusFailed))
	}

	f = newFixture(t)
	inv = &fakeInvoker{}
	report, err = New("grid_stat", f.store(t, nil), Deps{Invoker: inv}).Run(ctx, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Count(StatusPlanned) != 3 || len(inv.calls) != 0 {
		t.Errorf("dry run: planned %d, invocations %d", report.Count(StatusPlanned), len(inv.calls))
	}
	if _, err := os.Stat(f.out); !os.IsNotExist(err) {
		t.Errorf("dry run should not create outputs: %v", err)
	}
}

func TestExecute_Cancelled(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	w := New("grid_stat", f.store(t, nil), Deps{Invoker: &fakeInvoker{}})
	jobs, err := w.Plan()
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if report := w.Execute(ctx, jobs, Options{}); len(report.Outcomes) != 0 {
		t.Errorf("cancelled run produced %d outcomes", len(report.Outcomes))
	}
}

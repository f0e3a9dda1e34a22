// Package wrapper drives one MET application across a run: it enumerates
// the run times and forecast leads, resolves the filename templates for
// each, finds the inputs, and runs (or plans) the resulting commands.
package wrapper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/papapumpkin/metwrap/internal/config"
	"github.com/papapumpkin/metwrap/internal/mettool"
	"github.com/papapumpkin/metwrap/internal/reltime"
	"github.com/papapumpkin/metwrap/internal/telemetry"
)

// Per-application key suffixes. The full key is the upper-case application
// name, an underscore, and the suffix, e.g. GRID_STAT_INPUT_TEMPLATE.
const (
	KeyRuntimeFreq    = "RUNTIME_FREQ"
	KeyExe            = "EXE"
	KeyInputDir       = "INPUT_DIR"
	KeyInputTemplate  = "INPUT_TEMPLATE"
	KeyOutputDir      = "OUTPUT_DIR"
	KeyOutputTemplate = "OUTPUT_TEMPLATE"
	KeyArgs           = "ARGS"
	KeySkipTimes      = "SKIP_TIMES"
	KeyMandatory      = "MANDATORY"
	KeyCustomLoopList = "CUSTOM_LOOP_LIST"
)

// KeyMetBinDir names the directory holding the MET executables.
const KeyMetBinDir = "MET_BIN_DIR"

// Config is the read-only configuration the wrapper consumes.
type Config interface {
	HasOption(section, key string) bool
	GetString(section, key, def string) string
	GetBool(section, key string, def bool) (bool, error)
	GetInt(section, key string, def int) (int, error)
	GetIntList(section, key string) ([]int, error)
	GetOffset(section, key, def string, unit reltime.Unit) (reltime.Offset, error)
	Keys(section string) []string
	ClockTime() time.Time
	Logger() *zerolog.Logger
}

// Invoker runs a MET command.
type Invoker interface {
	Invoke(ctx context.Context, c mettool.Command) (mettool.Result, error)
}

// Ledger records command outcomes so completed work can be skipped.
type Ledger interface {
	StartRun(ctx context.Context, runID, app string) error
	Begin(ctx context.Context, key, app, runID, command string) error
	Finish(ctx context.Context, key string, runErr error) error
	Completed(ctx context.Context, key string) (bool, error)
}

// Deps are the collaborators a Wrapper uses to execute commands. Any may be
// nil: without an Invoker every run is a dry run, without a Ledger nothing
// is skipped or recorded, and a nil Emitter discards telemetry.
type Deps struct {
	Invoker Invoker
	Ledger  Ledger
	Emitter *telemetry.Emitter
}

// Wrapper runs one MET application.
type Wrapper struct {
	App string

	prefix string
	cfg    Config
	deps   Deps
	logger *zerolog.Logger
}

// New returns a Wrapper for app reading cfg.
func New(app string, cfg Config, deps Deps) *Wrapper {
	return &Wrapper{
		App:    app,
		prefix: strings.ToUpper(app) + "_",
		cfg:    cfg,
		deps:   deps,
		logger: cfg.Logger(),
	}
}

// key returns the application-specific name for suffix.
func (w *Wrapper) key(suffix string) string {
	return w.prefix + suffix
}

// appString reads <APP>_<suffix> from [config].
func (w *Wrapper) appString(suffix, def string) string {
	return w.cfg.GetString(config.SectionConfig, w.key(suffix), def)
}

// Tool returns the executable the application runs: <APP>_EXE when set,
// otherwise the lower-case application name.
func (w *Wrapper) Tool() string {
	return w.appString(KeyExe, strings.ToLower(w.App))
}

// BinDir returns MET_BIN_DIR from [config], falling back to [dir].
func BinDir(cfg Config) string {
	if dir := cfg.GetString(config.SectionConfig, KeyMetBinDir, ""); dir != "" {
		return dir
	}
	return cfg.GetString(config.SectionDir, KeyMetBinDir, "")
}

// customLoop returns the values of <APP>_CUSTOM_LOOP_LIST, falling back to
// CUSTOM_LOOP_LIST, or a single empty value when neither is set.
func (w *Wrapper) customLoop() ([]string, error) {
	key := w.key(KeyCustomLoopList)
	raw := w.cfg.GetString(config.SectionConfig, key, "")
	if raw == "" {
		key = KeyCustomLoopList
		raw = w.cfg.GetString(config.SectionConfig, key, "")
	}
	if raw == "" {
		return []string{""}, nil
	}
	values, ok := reltime.ExpandList(raw)
	if !ok {
		return nil, config.Invalid(config.SectionConfig, key, raw, "expected a comma-separated list")
	}
	if len(values) == 0 {
		return []string{""}, nil
	}
	return values, nil
}

func (w *Wrapper) emitRun(kind, runID string, data any) {
	if err := w.deps.Emitter.Emit(telemetry.Event{Kind: kind, RunID: runID, App: w.App, Data: data}); err != nil {
		w.logger.Warn().Err(err).Msg("cannot write telemetry")
	}
}

// configError records a fatal configuration error and returns it.
func (w *Wrapper) configError(runID string, err error) error {
	w.emitRun(telemetry.KindConfigError, runID, map[string]string{"error": err.Error()})
	return fmt.Errorf("%s: %w", w.App, err)
}

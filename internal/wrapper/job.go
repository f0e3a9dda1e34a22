package wrapper

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/papapumpkin/metwrap/internal/config"
	"github.com/papapumpkin/metwrap/internal/mettool"
	"github.com/papapumpkin/metwrap/internal/reltime"
	"github.com/papapumpkin/metwrap/internal/strsub"
	"github.com/papapumpkin/metwrap/internal/timeinfo"
)

// ErrMissingInput is the job error when a mandatory input does not exist.
var ErrMissingInput = errors.New("input file not found")

// Job is one command the run would execute.
type Job struct {
	App     string
	Info    timeinfo.TimeInfo
	Command mettool.Command
	Inputs  []string
	Output  string
	// OutputDir is created before the command runs.
	OutputDir string
	// Skip explains why the job will not run; empty when it will.
	Skip string
	// Err is set when the job could not be built.
	Err error
}

// Key identifies the job's work in the ledger. Two jobs with the same
// command line do the same work.
func (j Job) Key() string {
	return j.App + " " + j.Command.String()
}

// jobSettings are the per-application settings shared by every job.
type jobSettings struct {
	tool      string
	inputDir  string
	inputs    []string
	outputDir string
	output    string
	args      string
	mandatory bool
	skips     []skipRule
	env       map[string]string
}

func (w *Wrapper) settings() (jobSettings, error) {
	s := jobSettings{
		tool:      w.Tool(),
		inputDir:  w.dirSetting(KeyInputDir),
		inputs:    reltime.SplitList(w.templateSetting(KeyInputTemplate)),
		outputDir: w.dirSetting(KeyOutputDir),
		output:    w.templateSetting(KeyOutputTemplate),
		args:      w.appString(KeyArgs, ""),
		env:       make(map[string]string),
	}
	mandatory, err := w.cfg.GetBool(config.SectionConfig, w.key(KeyMandatory), false)
	if err != nil {
		return s, err
	}
	s.mandatory = mandatory
	if s.skips, err = w.skipRules(); err != nil {
		return s, err
	}
	for _, k := range w.cfg.Keys(config.SectionUserEnv) {
		s.env[k] = w.cfg.GetString(config.SectionUserEnv, k, "")
	}
	return s, nil
}

// dirSetting reads <APP>_<suffix> from [config], then from [dir].
func (w *Wrapper) dirSetting(suffix string) string {
	if v := w.appString(suffix, ""); v != "" {
		return v
	}
	return w.cfg.GetString(config.SectionDir, w.key(suffix), "")
}

// templateSetting reads <APP>_<suffix> from [config], then from
// [filename_templates].
func (w *Wrapper) templateSetting(suffix string) string {
	if v := w.appString(suffix, ""); v != "" {
		return v
	}
	return w.cfg.GetString(config.SectionTemplates, w.key(suffix), "")
}

// build resolves the command for one time-info record.
func (w *Wrapper) build(s jobSettings, sl slot) Job {
	job := Job{App: w.App, Info: sl.ti, Command: mettool.Command{Tool: s.tool}}
	if sl.err != nil {
		job.Err = sl.err
		return job
	}
	if skipped(s.skips, sl.ti) {
		job.Skip = "valid time " + sl.ti.ValidFmt + " is in " + w.key(KeySkipTimes)
		return job
	}

	values := sl.ti.Map()
	inputs, missing, err := findInputs(s.inputDir, s.inputs, values)
	if err != nil {
		job.Err = fmt.Errorf("%s: %w", w.key(KeyInputTemplate), err)
		return job
	}
	job.Inputs = inputs
	if len(missing) > 0 {
		if s.mandatory {
			job.Err = fmt.Errorf("%w: %s", ErrMissingInput, strings.Join(missing, ", "))
		} else {
			job.Skip = "missing input " + strings.Join(missing, ", ")
		}
		return job
	}

	if err := w.resolveOutput(&job, s, values); err != nil {
		job.Err = err
		return job
	}

	args := append([]string{}, job.Inputs...)
	if job.Output != "" {
		args = append(args, job.Output)
	}
	if s.args != "" {
		extra, err := strsub.Substitute(s.args, values)
		if err != nil {
			job.Err = fmt.Errorf("%s: %w", w.key(KeyArgs), err)
			return job
		}
		args = append(args, strings.Fields(extra)...)
	}
	job.Command.Args = args

	if len(s.env) > 0 {
		job.Command.Env = make(map[string]string, len(s.env))
		for k, v := range s.env {
			resolved, err := strsub.Substitute(v, values, strsub.WithSkipMissing())
			if err != nil {
				job.Err = fmt.Errorf("%s.%s: %w", config.SectionUserEnv, k, err)
				return job
			}
			job.Command.Env[k] = resolved
		}
	}
	return job
}

func (w *Wrapper) resolveOutput(job *Job, s jobSettings, values map[string]any) error {
	switch {
	case s.output != "":
		out, err := strsub.Substitute(joinDir(s.outputDir, s.output), values)
		if err != nil {
			return fmt.Errorf("%s: %w", w.key(KeyOutputTemplate), err)
		}
		job.Output = filepath.Clean(out)
		job.OutputDir = filepath.Dir(job.Output)
	case s.outputDir != "":
		out, err := strsub.Substitute(s.outputDir, values)
		if err != nil {
			return fmt.Errorf("%s: %w", w.key(KeyOutputDir), err)
		}
		job.Output = filepath.Clean(out)
		job.OutputDir = job.Output
	}
	return nil
}

// findInputs resolves each input template under dir and returns the files
// found, in template order, along with the paths or patterns that found
// nothing. Templates may resolve to glob patterns, including the "*" of a
// wildcard time.
func findInputs(dir string, templates []string, values map[string]any) (found, missing []string, err error) {
	for _, tmpl := range templates {
		paths, err := strsub.SubstituteAll(joinDir(dir, tmpl), values)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range paths {
			p = filepath.Clean(p)
			if strings.ContainsAny(p, "*?[") {
				matches, err := filepath.Glob(p)
				if err != nil {
					return nil, nil, fmt.Errorf("bad pattern %q: %w", p, err)
				}
				if len(matches) == 0 {
					missing = append(missing, p)
					continue
				}
				sort.Strings(matches)
				found = append(found, matches...)
				continue
			}
			if _, err := os.Stat(p); err != nil {
				missing = append(missing, p)
				continue
			}
			found = append(found, p)
		}
	}
	return found, missing, nil
}

// joinDir prefixes a template with a directory template. Neither is cleaned
// until after substitution, so tag options survive intact.
func joinDir(dir, tmpl string) string {
	if dir == "" || filepath.IsAbs(tmpl) {
		return tmpl
	}
	return strings.TrimSuffix(dir, string(filepath.Separator)) + string(filepath.Separator) + tmpl
}

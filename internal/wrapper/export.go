package wrapper

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.yaml.in/yaml/v3"

	"github.com/papapumpkin/metwrap/internal/mettool"
)

// Plan file formats.
const (
	FormatTOML = "toml"
	FormatYAML = "yaml"
	FormatText = "text"
)

// ErrUnknownFormat is returned for a plan format other than toml, yaml, or
// text.
var ErrUnknownFormat = errors.New("unknown plan format")

// PlanEntry is the exported form of a Job.
type PlanEntry struct {
	App     string          `toml:"app" yaml:"app"`
	Init    string          `toml:"init" yaml:"init"`
	Valid   string          `toml:"valid" yaml:"valid"`
	Lead    string          `toml:"lead" yaml:"lead"`
	Custom  string          `toml:"custom,omitempty" yaml:"custom,omitempty"`
	Command mettool.Command `toml:"command" yaml:"command"`
	Inputs  []string        `toml:"inputs,omitempty" yaml:"inputs,omitempty"`
	Output  string          `toml:"output,omitempty" yaml:"output,omitempty"`
	OutDir  string          `toml:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	Skip    string          `toml:"skip,omitempty" yaml:"skip,omitempty"`
	Error   string          `toml:"error,omitempty" yaml:"error,omitempty"`
}

// planFile is the document written by WritePlan.
type planFile struct {
	Jobs []PlanEntry `toml:"job" yaml:"jobs"`
}

// Entry returns the exported form of j.
func (j Job) Entry() PlanEntry {
	e := PlanEntry{
		App:     j.App,
		Init:    j.Info.InitFmt,
		Valid:   j.Info.ValidFmt,
		Lead:    j.Info.LeadString,
		Custom:  j.Info.Custom,
		Command: j.Command,
		Inputs:  j.Inputs,
		Output:  j.Output,
		OutDir:  j.OutputDir,
		Skip:    j.Skip,
	}
	if j.Err != nil {
		e.Error = j.Err.Error()
	}
	return e
}

// WritePlan writes jobs to out in the given format.
func WritePlan(out io.Writer, format string, jobs []Job) error {
	doc := planFile{Jobs: make([]PlanEntry, 0, len(jobs))}
	for _, j := range jobs {
		doc.Jobs = append(doc.Jobs, j.Entry())
	}

	switch strings.ToLower(format) {
	case FormatTOML:
		if err := toml.NewEncoder(out).Encode(doc); err != nil {
			return fmt.Errorf("encode plan as TOML: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode plan as YAML: %w", err)
		}
		return enc.Close()
	case FormatText:
		for _, e := range doc.Jobs {
			line := e.Command.String()
			switch {
			case e.Error != "":
				line = "# error: " + e.Error
			case e.Skip != "":
				line = "# skip: " + e.Skip
			}
			if _, err := fmt.Fprintln(out, line); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w %q", ErrUnknownFormat, format)
}

// ReadPlan decodes a plan written by WritePlan in TOML or YAML.
func ReadPlan(in io.Reader, format string) ([]PlanEntry, error) {
	var doc planFile
	switch strings.ToLower(format) {
	case FormatTOML:
		if err := toml.NewDecoder(in).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode TOML plan: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(in).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode YAML plan: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
	return doc.Jobs, nil
}

// JobsFromPlan turns plan entries for this application back into runnable
// jobs. Entries that recorded a skip or an error carry it over.
func (w *Wrapper) JobsFromPlan(entries []PlanEntry) []Job {
	var jobs []Job
	for _, e := range entries {
		if !strings.EqualFold(e.App, w.App) {
			continue
		}
		job := Job{App: w.App, Command: e.Command, Inputs: e.Inputs, Output: e.Output, OutputDir: e.OutDir, Skip: e.Skip}
		job.Info.InitFmt, job.Info.ValidFmt, job.Info.LeadString = e.Init, e.Valid, e.Lead
		if e.Error != "" {
			job.Err = errors.New(e.Error)
		}
		jobs = append(jobs, job)
	}
	return jobs
}

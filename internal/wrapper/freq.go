package wrapper

import (
	"strings"

	"github.com/papapumpkin/metwrap/internal/config"
	"github.com/papapumpkin/metwrap/internal/leadseq"
	"github.com/papapumpkin/metwrap/internal/timeinfo"
	"github.com/papapumpkin/metwrap/internal/timeloop"
)

// Freq is how often an application runs over the times of a run.
type Freq string

// Runtime frequencies.
const (
	RunOnce               Freq = "RUN_ONCE"                   // one command for the whole run
	RunOncePerInitOrValid Freq = "RUN_ONCE_PER_INIT_OR_VALID" // one command per run time, all leads
	RunOncePerLead        Freq = "RUN_ONCE_PER_LEAD"          // one command per lead, all run times
	RunOnceForEach        Freq = "RUN_ONCE_FOR_EACH"          // one command per run time and lead
)

// RuntimeFreq reads <APP>_RUNTIME_FREQ, defaulting to RUN_ONCE_FOR_EACH.
func (w *Wrapper) RuntimeFreq() (Freq, error) {
	raw := w.appString(KeyRuntimeFreq, string(RunOnceForEach))
	switch f := Freq(strings.ToUpper(raw)); f {
	case RunOnce, RunOncePerInitOrValid, RunOncePerLead, RunOnceForEach:
		return f, nil
	}
	return "", config.Invalid(config.SectionConfig, w.key(KeyRuntimeFreq), raw,
		"expected RUN_ONCE, RUN_ONCE_PER_INIT_OR_VALID, RUN_ONCE_PER_LEAD, or RUN_ONCE_FOR_EACH")
}

// slot is one time-info record a command is built for. err is set when the
// run time could not be produced.
type slot struct {
	ti  timeinfo.TimeInfo
	err error
}

// slots enumerates the time-info records of the run according to the
// runtime frequency. Configuration problems that affect the whole run are
// returned as an error; a bad entry in an explicit time list becomes a slot
// carrying the error.
func (w *Wrapper) slots() ([]slot, error) {
	freq, err := w.RuntimeFreq()
	if err != nil {
		return nil, err
	}
	customs, err := w.customLoop()
	if err != nil {
		return nil, err
	}

	var out []slot
	for _, custom := range customs {
		var s []slot
		switch freq {
		case RunOnce:
			s = []slot{w.calculate(w.wildcardInput(custom, timeinfo.AnyLead()))}
		case RunOncePerLead:
			s, err = w.perLead(custom)
		case RunOncePerInitOrValid:
			s, err = w.perRunTime(custom, false)
		default:
			s, err = w.perRunTime(custom, true)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s...)
	}
	return out, nil
}

func (w *Wrapper) wildcardInput(custom string, lead timeinfo.Lead) timeinfo.Input {
	clock := w.cfg.ClockTime()
	return timeinfo.Input{
		LoopBy: timeinfo.LoopByInit,
		Init:   timeinfo.AnyTime(),
		Valid:  timeinfo.AnyTime(),
		Lead:   lead,
		Now:    clock,
		Today:  clock.Format(timeloop.TodayLayout),
		Custom: custom,
	}
}

func (w *Wrapper) calculate(in timeinfo.Input) slot {
	ti, err := timeinfo.Calculate(in)
	return slot{ti: ti, err: err}
}

func (w *Wrapper) perLead(custom string) ([]slot, error) {
	leads, err := leadseq.Resolve(w.cfg, nil, true)
	if err != nil {
		return nil, err
	}
	out := make([]slot, 0, len(leads))
	for _, lead := range leads {
		out = append(out, w.calculate(w.wildcardInput(custom, lead)))
	}
	return out, nil
}

// perRunTime walks the time generator. With eachLead every run time is
// paired with each of its leads; otherwise the lead is the wildcard.
func (w *Wrapper) perRunTime(custom string, eachLead bool) ([]slot, error) {
	gen := timeloop.New(w.cfg, custom)
	defer gen.Close()

	var out []slot
	var firstErr error
	produced := false
	for in, err := range gen.All() {
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			out = append(out, slot{err: err})
			continue
		}
		produced = true
		if !eachLead {
			in.Lead = timeinfo.AnyLead()
			out = append(out, w.calculate(in))
			continue
		}
		leads, err := leadseq.Resolve(w.cfg, &in, false)
		if err != nil {
			return nil, err
		}
		for _, lead := range leads {
			withLead := in
			withLead.Lead = lead
			out = append(out, w.calculate(withLead))
		}
	}
	if !produced && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

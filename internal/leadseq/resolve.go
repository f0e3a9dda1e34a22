// Package leadseq resolves the forecast leads a run iterates over. Leads come
// from exactly one of LEAD_SEQ, INIT_SEQ, or lead groups (LEAD_SEQ_<n>, or
// LEAD_SEQ split by LEAD_SEQ_DIVISIONS).
package leadseq

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/papapumpkin/metwrap/internal/config"
	"github.com/papapumpkin/metwrap/internal/reltime"
	"github.com/papapumpkin/metwrap/internal/timeinfo"
)

// Configuration keys read by the resolver.
const (
	KeyLeadSeq        = "LEAD_SEQ"
	KeyInitSeq        = "INIT_SEQ"
	KeyLeadSeqMin     = "LEAD_SEQ_MIN"
	KeyLeadSeqMax     = "LEAD_SEQ_MAX"
	KeyDivisions      = "LEAD_SEQ_DIVISIONS"
	KeyDivisionsLabel = "LEAD_SEQ_DIVISIONS_LABEL"
)

// Defaults for the lead bounds. The maximum is far enough out to never
// filter a real lead.
const (
	DefaultMin = "0"
	DefaultMax = "4000Y"
)

// Config is the read-only configuration the resolver consumes.
type Config interface {
	HasOption(section, key string) bool
	GetString(section, key, def string) string
	GetIntList(section, key string) ([]int, error)
	GetOffset(section, key, def string, unit reltime.Unit) (reltime.Offset, error)
	Keys(section string) []string
	ClockTime() time.Time
	Logger() *zerolog.Logger
}

// Resolve returns the leads to process for run. run may be nil; it is only
// required, with a concrete valid time, when INIT_SEQ is used. When no leads
// are configured the result is a single wildcard lead if wildcardIfEmpty is
// set and a single zero lead otherwise. A configuration problem returns a
// nil slice and an error wrapping config.ErrInvalid.
func Resolve(cfg Config, run *timeinfo.Input, wildcardIfEmpty bool) ([]timeinfo.Lead, error) {
	leads, err := resolve(cfg, run)
	if err != nil {
		cfg.Logger().Error().Err(err).Msg("cannot resolve forecast leads")
		return nil, err
	}
	if len(leads) > 0 {
		return leads, nil
	}
	if wildcardIfEmpty {
		return []timeinfo.Lead{timeinfo.AnyLead()}, nil
	}
	return []timeinfo.Lead{timeinfo.SecondsLead(0)}, nil
}

func resolve(cfg Config, run *timeinfo.Input) ([]timeinfo.Lead, error) {
	hasLeadSeq := isSet(cfg, KeyLeadSeq)
	hasInitSeq := isSet(cfg, KeyInitSeq)
	hasDivisions := isSet(cfg, KeyDivisions)
	indexed := indexedKeys(cfg)

	var sources []string
	if hasLeadSeq && !hasDivisions {
		sources = append(sources, KeyLeadSeq)
	}
	if hasInitSeq {
		sources = append(sources, KeyInitSeq)
	}
	if len(indexed) > 0 {
		sources = append(sources, indexed[0].key)
	}
	if hasDivisions {
		sources = append(sources, KeyDivisions)
	}
	if len(sources) > 1 {
		return nil, config.Invalid(config.SectionConfig, sources[1], "", "cannot be combined with "+strings.Join(without(sources, sources[1]), ", "))
	}
	if len(sources) == 0 {
		return nil, nil
	}

	switch sources[0] {
	case KeyLeadSeq:
		return leadSeq(cfg)
	case KeyInitSeq:
		return initSeq(cfg, run)
	}
	groups, err := Groups(cfg)
	if err != nil {
		return nil, err
	}
	return flatten(groups), nil
}

func isSet(cfg Config, key string) bool {
	return cfg.GetString(config.SectionConfig, key, "") != ""
}

func without(list []string, drop string) []string {
	var out []string
	for _, s := range list {
		if s != drop {
			out = append(out, s)
		}
	}
	return out
}

// bounds returns LEAD_SEQ_MIN and LEAD_SEQ_MAX, in hours when unitless.
func bounds(cfg Config) (lo, hi reltime.Offset, err error) {
	lo, err = cfg.GetOffset(config.SectionConfig, KeyLeadSeqMin, DefaultMin, reltime.Hours)
	if err != nil {
		return lo, hi, err
	}
	hi, err = cfg.GetOffset(config.SectionConfig, KeyLeadSeqMax, DefaultMax, reltime.Hours)
	return lo, hi, err
}

// leadSeq parses LEAD_SEQ and keeps the leads within the configured bounds.
// Bounds are compared by adding each offset to the clock time, so month and
// year leads are measured from the start of the run rather than a run time.
func leadSeq(cfg Config) ([]timeinfo.Lead, error) {
	raw := cfg.GetString(config.SectionConfig, KeyLeadSeq, "")
	offsets, ok := reltime.ParseLeads(raw, reltime.Hours)
	if !ok {
		return nil, config.Invalid(config.SectionConfig, KeyLeadSeq, raw, "expected a list of leads such as 0,3,6 or begin_end_incr(0,12,3)")
	}
	minLead, maxLead, err := bounds(cfg)
	if err != nil {
		return nil, err
	}

	now := cfg.ClockTime()
	lo, hi := minLead.AddTo(now), maxLead.AddTo(now)
	leads := make([]timeinfo.Lead, 0, len(offsets))
	for _, o := range offsets {
		at := o.AddTo(now)
		if at.Before(lo) || at.After(hi) {
			continue
		}
		leads = append(leads, timeinfo.LeadOf(o))
	}
	return leads, nil
}

// initSeq derives the leads that reach the run's valid hour from each
// initialization hour in INIT_SEQ, repeating every 24 hours up to
// LEAD_SEQ_MAX.
func initSeq(cfg Config, run *timeinfo.Input) ([]timeinfo.Lead, error) {
	var valid time.Time
	ok := false
	if run != nil {
		valid, ok = run.Valid.Time()
	}
	if !ok {
		return nil, config.Invalid(config.SectionConfig, KeyInitSeq, "", "requires a valid time; set LOOP_BY = VALID")
	}
	if !isSet(cfg, KeyLeadSeqMax) {
		return nil, config.Invalid(config.SectionConfig, KeyLeadSeqMax, "", "must be set to use "+KeyInitSeq)
	}

	hours, err := cfg.GetIntList(config.SectionConfig, KeyInitSeq)
	if err != nil {
		return nil, err
	}
	minLead, maxLead, err := bounds(cfg)
	if err != nil {
		return nil, err
	}
	minHours, maxHours := minLead.HoursAt(valid), maxLead.HoursAt(valid)

	validHour := valid.Hour()
	var offsets []reltime.Offset
	for _, init := range hours {
		if init < 0 || init > 23 {
			return nil, config.Invalid(config.SectionConfig, KeyInitSeq, cfg.GetString(config.SectionConfig, KeyInitSeq, ""), "hours must be between 0 and 23")
		}
		lead := ((validHour-init)%24 + 24) % 24
		for ; int64(lead) <= maxHours; lead += 24 {
			if int64(lead) >= minHours {
				offsets = append(offsets, reltime.Offset{Hours: lead})
			}
		}
	}

	sort.SliceStable(offsets, func(i, j int) bool {
		return offsets[i].SecondsAt(valid) < offsets[j].SecondsAt(valid)
	})
	leads := make([]timeinfo.Lead, 0, len(offsets))
	for _, o := range offsets {
		leads = append(leads, timeinfo.LeadOf(o))
	}
	return leads, nil
}

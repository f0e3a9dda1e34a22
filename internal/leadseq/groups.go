package leadseq

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/papapumpkin/metwrap/internal/config"
	"github.com/papapumpkin/metwrap/internal/reltime"
	"github.com/papapumpkin/metwrap/internal/timeinfo"
)

// MaxDivisions bounds how many LEAD_SEQ_DIVISIONS windows are tried before
// giving up on placing every lead.
const MaxDivisions = 1000

// DefaultGroupLabel prefixes generated group labels.
const DefaultGroupLabel = "Group"

var indexedKey = regexp.MustCompile(`^LEAD_SEQ_(\d+)$`)

// Group is a labeled, ordered set of leads.
type Group struct {
	Label string
	Leads []reltime.Offset
}

type indexed struct {
	key   string
	index int
}

// indexedKeys returns the non-empty LEAD_SEQ_<n> keys in numeric order.
func indexedKeys(cfg Config) []indexed {
	var out []indexed
	for _, key := range cfg.Keys(config.SectionConfig) {
		m := indexedKey.FindStringSubmatch(key)
		if m == nil || !isSet(cfg, key) {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, indexed{key: key, index: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}

// Groups returns the configured lead groups: the LEAD_SEQ_<n> lists in index
// order, or LEAD_SEQ split into LEAD_SEQ_DIVISIONS-wide windows. It returns
// no groups when neither is configured.
func Groups(cfg Config) ([]Group, error) {
	if isSet(cfg, KeyDivisions) {
		if !isSet(cfg, KeyLeadSeq) {
			return nil, config.Invalid(config.SectionConfig, KeyLeadSeq, "", "must be set to use "+KeyDivisions)
		}
		return divisions(cfg)
	}

	var groups []Group
	for _, k := range indexedKeys(cfg) {
		raw := cfg.GetString(config.SectionConfig, k.key, "")
		leads, ok := reltime.ParseLeads(raw, reltime.Hours)
		if !ok {
			return nil, config.Invalid(config.SectionConfig, k.key, raw, "expected a list of leads")
		}
		label := cfg.GetString(config.SectionConfig, k.key+"_LABEL", "")
		if label == "" {
			label = fmt.Sprintf("%s%d", DefaultGroupLabel, k.index)
		}
		groups = append(groups, Group{Label: label, Leads: leads})
	}
	return groups, nil
}

// divisions splits LEAD_SEQ into consecutive windows of LEAD_SEQ_DIVISIONS,
// the first starting at zero. Window k spans k and k+1 divisions added to
// the clock time, so calendar divisions do not drift at month ends.
// Empty windows produce no group, but still advance the label index.
func divisions(cfg Config) ([]Group, error) {
	raw := cfg.GetString(config.SectionConfig, KeyLeadSeq, "")
	leads, ok := reltime.ParseLeads(raw, reltime.Hours)
	if !ok {
		return nil, config.Invalid(config.SectionConfig, KeyLeadSeq, raw, "expected a list of leads")
	}
	width, err := cfg.GetOffset(config.SectionConfig, KeyDivisions, "", reltime.Hours)
	if err != nil {
		return nil, err
	}

	now := cfg.ClockTime()
	if !width.AddTo(now).After(now) {
		return nil, config.Invalid(config.SectionConfig, KeyDivisions, width.Letters(), "must be a positive duration")
	}
	label := cfg.GetString(config.SectionConfig, KeyDivisionsLabel, DefaultGroupLabel)

	placed := make([]bool, len(leads))
	remaining := len(leads)
	var from reltime.Offset
	var groups []Group
	for i := 1; i <= MaxDivisions && remaining > 0; i++ {
		to := from.Add(width)
		start, end := from.AddTo(now), to.AddTo(now).Add(-time.Second)
		var members []reltime.Offset
		for j, lead := range leads {
			if placed[j] {
				continue
			}
			at := lead.AddTo(now)
			if at.Before(start) || at.After(end) {
				continue
			}
			members = append(members, lead)
			placed[j] = true
			remaining--
		}
		if len(members) > 0 {
			groups = append(groups, Group{Label: fmt.Sprintf("%s%d", label, i), Leads: members})
		}
		from = to
	}
	if remaining > 0 {
		return nil, config.Invalid(config.SectionConfig, KeyDivisions, width.Letters(),
			fmt.Sprintf("could not split %s using divisions within %d windows", KeyLeadSeq, MaxDivisions))
	}
	return groups, nil
}

// flatten concatenates group leads in group order. A lead already taken by
// an earlier group is skipped.
func flatten(groups []Group) []timeinfo.Lead {
	seen := make(map[timeinfo.Lead]bool)
	var out []timeinfo.Lead
	for _, g := range groups {
		for _, o := range g.Leads {
			lead := timeinfo.LeadOf(o)
			if seen[lead] {
				continue
			}
			seen[lead] = true
			out = append(out, lead)
		}
	}
	return out
}

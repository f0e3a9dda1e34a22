// Package timeinfo models the time-info record passed between the time loop,
// the lead resolver, and the template engine, and computes the full record
// from any two of init, valid, and lead.
package timeinfo

import (
	"time"

	"github.com/papapumpkin/metwrap/internal/reltime"
)

// Wildcard is the rendering of a wildcard init, valid, or lead value.
const Wildcard = "*"

// StampLayout is the canonical %Y%m%d%H%M%S rendering of timestamps.
const StampLayout = "20060102150405"

// LoopBy names which of init or valid drives a time-info record.
type LoopBy string

// Loop axes.
const (
	LoopByUnset LoopBy = ""
	LoopByInit  LoopBy = "init"
	LoopByValid LoopBy = "valid"
)

type momentKind uint8

const (
	momentUnset momentKind = iota
	momentConcrete
	momentWildcard
)

// Moment is an absolute timestamp, the wildcard, or unset. The zero value is
// unset.
type Moment struct {
	kind momentKind
	t    time.Time
}

// At returns a concrete Moment for t, converted to UTC.
func At(t time.Time) Moment {
	return Moment{kind: momentConcrete, t: t.UTC()}
}

// AnyTime returns the wildcard Moment.
func AnyTime() Moment {
	return Moment{kind: momentWildcard}
}

// IsSet reports whether the Moment is concrete or the wildcard.
func (m Moment) IsSet() bool { return m.kind != momentUnset }

// IsWildcard reports whether the Moment is the wildcard.
func (m Moment) IsWildcard() bool { return m.kind == momentWildcard }

// Time returns the timestamp and true when the Moment is concrete.
func (m Moment) Time() (time.Time, bool) {
	return m.t, m.kind == momentConcrete
}

// Equal reports whether two Moments are the same kind and instant.
func (m Moment) Equal(o Moment) bool {
	return m.kind == o.kind && m.t.Equal(o.t)
}

// String renders a concrete Moment as %Y%m%d%H%M%S, the wildcard as "*",
// and an unset Moment as the empty string.
func (m Moment) String() string {
	switch m.kind {
	case momentConcrete:
		return m.t.Format(StampLayout)
	case momentWildcard:
		return Wildcard
	}
	return ""
}

// LeadKind distinguishes the forms a forecast lead can take.
type LeadKind uint8

// Lead kinds.
const (
	LeadUnset    LeadKind = iota // no lead given
	LeadSeconds                  // fixed number of seconds
	LeadCalendar                 // uses months or years; length depends on the anchor date
	LeadWildcard                 // any lead
)

// Lead is a forecast lead: a fixed number of seconds, a calendar offset that
// uses months or years, or the wildcard. Callers switch on Kind.
type Lead struct {
	kind   LeadKind
	offset reltime.Offset
}

// LeadOf returns a Lead for o. Offsets using months or years keep their
// calendar form; all others become fixed seconds.
func LeadOf(o reltime.Offset) Lead {
	if o.HasCalendar() {
		return Lead{kind: LeadCalendar, offset: o}
	}
	s, _ := o.FixedSeconds()
	return SecondsLead(s)
}

// SecondsLead returns a fixed Lead of s seconds.
func SecondsLead(s int64) Lead {
	return Lead{kind: LeadSeconds, offset: reltime.Offset{Seconds: int(s)}}
}

// AnyLead returns the wildcard Lead.
func AnyLead() Lead {
	return Lead{kind: LeadWildcard}
}

// Kind returns the form of the lead.
func (l Lead) Kind() LeadKind { return l.kind }

// IsSet reports whether the lead was given.
func (l Lead) IsSet() bool { return l.kind != LeadUnset }

// IsWildcard reports whether the lead is the wildcard.
func (l Lead) IsWildcard() bool { return l.kind == LeadWildcard }

// Offset returns the lead as a relative offset. Fixed leads are normalized
// into days, hours, minutes, and seconds.
func (l Lead) Offset() reltime.Offset {
	if l.kind == LeadSeconds {
		return l.offset.Normalize()
	}
	return l.offset
}

// Seconds returns the fixed length of the lead. It is false for calendar
// and wildcard leads.
func (l Lead) Seconds() (int64, bool) {
	if l.kind != LeadSeconds {
		return 0, false
	}
	return l.offset.FixedSeconds()
}

// String renders the lead in words ("6 hours"), or "*" for the wildcard.
func (l Lead) String() string {
	switch l.kind {
	case LeadWildcard:
		return Wildcard
	case LeadUnset:
		return ""
	}
	return l.Offset().String()
}

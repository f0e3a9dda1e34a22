package timeinfo

import (
	"errors"
	"maps"
	"time"

	"github.com/papapumpkin/metwrap/internal/reltime"
)

// Sentinel errors returned by Calculate.
var (
	// ErrAmbiguousDriver indicates both init and valid were given without a
	// LoopBy to say which one drives the record.
	ErrAmbiguousDriver = errors.New("both init and valid are set and loop_by does not say which to use")
	// ErrNoDriver indicates none of init, valid, or da_init were given.
	ErrNoDriver = errors.New("one of init, valid, or da_init must be set")
)

// Input is the partial description Calculate completes. Any two of init,
// valid, and lead (or da_init with offset) are enough. The legacy
// LeadSeconds/LeadMinutes/LeadHours and OffsetHours fields are consulted only
// when Lead or Offset are not given.
type Input struct {
	LoopBy LoopBy
	Init   Moment
	Valid  Moment
	DAInit Moment
	Lead   Lead

	LeadSeconds *int64
	LeadMinutes *int64
	LeadHours   *int64

	Offset      *int64
	OffsetHours *int64

	Now    time.Time
	Today  string
	Custom string
	Extra  map[string]string
}

// TimeInfo is a fully computed time-info record. Init and Valid are always
// consistent with Lead, and DAInit is always Valid plus Offset.
type TimeInfo struct {
	LoopBy LoopBy
	Init   Moment
	Valid  Moment
	DAInit Moment
	Lead   Lead
	Offset int64

	Now    time.Time
	Today  string
	Custom string
	Extra  map[string]string

	InitFmt     string
	ValidFmt    string
	DAInitFmt   string
	LeadString  string
	LeadHours   int64
	LeadMinutes int64
	LeadSeconds int64
	OffsetHours int64
}

// Date returns DAInit; "date" is a synonym used by some templates.
func (ti TimeInfo) Date() Moment { return ti.DAInit }

// Cycle returns DAInit; "cycle" is a synonym used by some templates.
func (ti TimeInfo) Cycle() Moment { return ti.DAInit }

// Input returns the record as Calculate input. Calculate(ti.Input())
// reproduces ti.
func (ti TimeInfo) Input() Input {
	offset := ti.Offset
	return Input{
		LoopBy: ti.LoopBy,
		Init:   ti.Init,
		Valid:  ti.Valid,
		DAInit: ti.DAInit,
		Lead:   ti.Lead,
		Offset: &offset,
		Now:    ti.Now,
		Today:  ti.Today,
		Custom: ti.Custom,
		Extra:  maps.Clone(ti.Extra),
	}
}

// Calculate derives a complete TimeInfo from in. When both init and valid
// are given, LoopBy selects the one that is kept and the other is
// recomputed. DAInit is only used as the driver when neither init nor valid
// is given. Leads that use months or years stay in calendar form; all other
// leads are collapsed to the exact seconds between init and valid.
func Calculate(in Input) (TimeInfo, error) {
	out := TimeInfo{
		Now:    in.Now,
		Today:  in.Today,
		Custom: in.Custom,
		Extra:  maps.Clone(in.Extra),
	}

	lead := resolveLead(in)
	out.Offset = resolveOffset(in)

	init, valid := in.Init, in.Valid
	if init.IsSet() && valid.IsSet() {
		switch in.LoopBy {
		case LoopByInit:
			valid = Moment{}
		case LoopByValid:
			init = Moment{}
		default:
			if init.IsWildcard() && valid.IsWildcard() {
				valid = Moment{}
				break
			}
			return TimeInfo{}, ErrAmbiguousDriver
		}
	}

	switch {
	case init.IsSet():
		out.LoopBy = LoopByInit
		out.Init = init
		out.Valid = shift(init, lead, false)
	case valid.IsSet():
		out.LoopBy = LoopByValid
		out.Valid = valid
		out.Init = shift(valid, lead, true)
	case in.DAInit.IsSet():
		out.LoopBy = LoopByValid
		out.Valid = shiftSeconds(in.DAInit, -out.Offset)
		out.Init = shift(out.Valid, lead, true)
	default:
		return TimeInfo{}, ErrNoDriver
	}

	out.DAInit = shiftSeconds(out.Valid, out.Offset)

	out.InitFmt = out.Init.String()
	out.ValidFmt = out.Valid.String()
	out.DAInitFmt = out.DAInit.String()
	out.OffsetHours = floorDiv(out.Offset, 3600)

	if lead.IsWildcard() {
		out.Lead = lead
		out.LeadString = Wildcard
		return out, nil
	}

	total := leadSeconds(out, lead)
	out.LeadSeconds = total
	out.LeadMinutes = floorDiv(total, 60)
	out.LeadHours = floorDiv(total, 3600)
	if lead.Kind() == LeadCalendar {
		out.Lead = lead
	} else {
		out.Lead = SecondsLead(total)
	}
	out.LeadString = out.Lead.String()
	return out, nil
}

func resolveLead(in Input) Lead {
	switch {
	case in.Lead.IsSet():
		return in.Lead
	case in.LeadSeconds != nil:
		return SecondsLead(*in.LeadSeconds)
	case in.LeadMinutes != nil:
		return SecondsLead(*in.LeadMinutes * 60)
	case in.LeadHours != nil:
		h := *in.LeadHours
		return LeadOf(reltime.Offset{Days: int(h / 24), Hours: int(h % 24)})
	}
	return SecondsLead(0)
}

func resolveOffset(in Input) int64 {
	switch {
	case in.Offset != nil:
		return *in.Offset
	case in.OffsetHours != nil:
		return *in.OffsetHours * 3600
	}
	return 0
}

// shift moves m forward by lead, or backward when back is set. A wildcard
// Moment or lead yields the wildcard.
func shift(m Moment, lead Lead, back bool) Moment {
	t, ok := m.Time()
	if !ok || lead.IsWildcard() {
		return AnyTime()
	}
	o := lead.Offset()
	if back {
		return At(o.SubFrom(t))
	}
	return At(o.AddTo(t))
}

func shiftSeconds(m Moment, seconds int64) Moment {
	t, ok := m.Time()
	if !ok {
		return m
	}
	return At(t.Add(time.Duration(seconds) * time.Second))
}

// leadSeconds returns the exact seconds between init and valid, or the
// length of the lead itself when either end is the wildcard.
func leadSeconds(ti TimeInfo, lead Lead) int64 {
	init, okInit := ti.Init.Time()
	valid, okValid := ti.Valid.Time()
	if okInit && okValid {
		return int64(valid.Sub(init) / time.Second)
	}
	if s, ok := lead.Seconds(); ok {
		return s
	}
	ref := ti.Now
	if ref.IsZero() {
		ref = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return lead.Offset().SecondsAt(ref)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

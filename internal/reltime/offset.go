// Package reltime implements calendar-aware relative time offsets and the
// small expression language used to describe them in configuration: unit
// suffixed durations, comma-separated lists, begin_end_incr ranges, and the
// packed time strings understood by the MET executables.
package reltime

import (
	"fmt"
	"strings"
	"time"
)

// Offset is a signed calendar offset. Years and months have no fixed length,
// so an Offset that uses them can only be converted to seconds relative to a
// reference time. Offset is a value type; arithmetic returns new values.
type Offset struct {
	Years   int
	Months  int
	Days    int
	Hours   int
	Minutes int
	Seconds int
}

// FromSeconds returns a normalized Offset spanning the given number of
// seconds, expressed in days, hours, minutes, and seconds.
func FromSeconds(seconds int64) Offset {
	return Offset{Seconds: int(seconds)}.Normalize()
}

// IsZero reports whether every component is zero.
func (o Offset) IsZero() bool {
	return o == Offset{}
}

// HasCalendar reports whether the offset uses years or months.
func (o Offset) HasCalendar() bool {
	return o.Years != 0 || o.Months != 0
}

// FixedSeconds returns the length of the offset in seconds. The second
// return value is false when the offset uses years or months, since those
// cannot be converted without an anchor date.
func (o Offset) FixedSeconds() (int64, bool) {
	if o.HasCalendar() {
		return 0, false
	}
	return int64(o.Days)*86400 + int64(o.Hours)*3600 + int64(o.Minutes)*60 + int64(o.Seconds), true
}

// SecondsAt returns the exact number of seconds the offset spans when it
// ends at ref, i.e. ref - (ref - o). Month and year lengths are those of
// the months preceding ref.
func (o Offset) SecondsAt(ref time.Time) int64 {
	return int64(ref.Sub(o.SubFrom(ref)) / time.Second)
}

// HoursAt returns the offset in whole hours relative to ref, floor-divided.
func (o Offset) HoursAt(ref time.Time) int64 {
	return floorDiv(o.SecondsAt(ref), 3600)
}

// Negate returns the offset with every component sign-flipped.
func (o Offset) Negate() Offset {
	return Offset{
		Years:   -o.Years,
		Months:  -o.Months,
		Days:    -o.Days,
		Hours:   -o.Hours,
		Minutes: -o.Minutes,
		Seconds: -o.Seconds,
	}
}

// Add returns the component-wise sum of two offsets.
func (o Offset) Add(other Offset) Offset {
	return Offset{
		Years:   o.Years + other.Years,
		Months:  o.Months + other.Months,
		Days:    o.Days + other.Days,
		Hours:   o.Hours + other.Hours,
		Minutes: o.Minutes + other.Minutes,
		Seconds: o.Seconds + other.Seconds,
	}
}

// Normalize folds seconds into minutes, minutes into hours, hours into days,
// and months into years. Each carried component keeps the sign of its source.
func (o Offset) Normalize() Offset {
	n := o
	carry := func(v *int, into *int, size int) {
		q := *v / size
		*into += q
		*v -= q * size
	}
	carry(&n.Seconds, &n.Minutes, 60)
	carry(&n.Minutes, &n.Hours, 60)
	carry(&n.Hours, &n.Days, 24)
	carry(&n.Months, &n.Years, 12)
	return n
}

// AddTo applies the offset to t. Years and months are applied first and the
// day of month is clipped to the length of the target month, so January 31
// plus one month is the last day of February. Days and smaller units are
// then added as elapsed time.
func (o Offset) AddTo(t time.Time) time.Time {
	if o.HasCalendar() {
		total := t.Year()*12 + int(t.Month()) - 1 + o.Years*12 + o.Months
		year, month := floorDivInt(total, 12), time.Month(total-floorDivInt(total, 12)*12+1)
		day := t.Day()
		if last := daysIn(year, month); day > last {
			day = last
		}
		t = time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	}
	if o.Days != 0 {
		t = t.AddDate(0, 0, o.Days)
	}
	d := time.Duration(o.Hours)*time.Hour + time.Duration(o.Minutes)*time.Minute + time.Duration(o.Seconds)*time.Second
	return t.Add(d)
}

// SubFrom returns t minus the offset.
func (o Offset) SubFrom(t time.Time) time.Time {
	return o.Negate().AddTo(t)
}

// String renders the offset with unit names, e.g. "1 day 3 hours".
func (o Offset) String() string {
	return o.Format(true, false)
}

// Letters renders the offset in compact unit-letter form, e.g. "1d3H". A
// single-component offset renders to a string that Parse accepts.
func (o Offset) Letters() string {
	return o.Format(true, true)
}

// Format renders the nonzero components from years down to seconds. With
// letters set each component is written as <value><unit letter>, otherwise
// as "<value> <unit name>" with the name pluralized when plural is set. A
// zero offset renders as "0 hours" (or "0H"). When every nonzero component
// is negative the offset is negated and prefixed with "-"; components of
// mixed sign each carry their own sign, as in "1m-1H".
func (o Offset) Format(plural, letters bool) string {
	hasNeg, hasPos := false, false
	for _, c := range o.components() {
		hasNeg = hasNeg || c.value < 0
		hasPos = hasPos || c.value > 0
	}
	negative := hasNeg && !hasPos
	if negative {
		o = o.Negate()
	}

	var parts []string
	for _, c := range o.components() {
		if c.value == 0 {
			continue
		}
		parts = append(parts, renderComponent(c.value, c.unit, plural, letters))
	}
	if len(parts) == 0 {
		parts = append(parts, renderComponent(0, Hours, plural, letters))
	}

	sep := " "
	if letters {
		sep = ""
	}
	out := strings.Join(parts, sep)
	if negative {
		out = "-" + out
	}
	return out
}

type component struct {
	value int
	unit  Unit
}

func (o Offset) components() []component {
	return []component{
		{o.Years, Years},
		{o.Months, Months},
		{o.Days, Days},
		{o.Hours, Hours},
		{o.Minutes, Minutes},
		{o.Seconds, Seconds},
	}
}

func renderComponent(value int, unit Unit, plural, letters bool) string {
	if letters {
		return fmt.Sprintf("%d%c", value, unit)
	}
	name := unit.Name()
	if plural && value != 1 && value != -1 {
		name += "s"
	}
	return fmt.Sprintf("%d %s", value, name)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorDivInt(a, b int) int {
	return int(floorDiv(int64(a), int64(b)))
}

package reltime

import (
	"regexp"
	"strconv"
	"strings"
)

// Unit is a single-letter time unit. The letters are case-sensitive: "m" is
// months while "M" is minutes.
type Unit byte

// Supported units.
const (
	Years   Unit = 'Y'
	Months  Unit = 'm'
	Days    Unit = 'd'
	Hours   Unit = 'H'
	Minutes Unit = 'M'
	Seconds Unit = 'S'
)

// Name returns the singular English name of the unit.
func (u Unit) Name() string {
	switch u {
	case Years:
		return "year"
	case Months:
		return "month"
	case Days:
		return "day"
	case Hours:
		return "hour"
	case Minutes:
		return "minute"
	case Seconds:
		return "second"
	}
	return string(u)
}

// Valid reports whether u is one of the supported unit letters.
func (u Unit) Valid() bool {
	switch u {
	case Years, Months, Days, Hours, Minutes, Seconds:
		return true
	}
	return false
}

var durationPattern = regexp.MustCompile(`^(-?)(\d+)([a-zA-Z]?)$`)

// Parse converts a duration expression such as "3H", "-1d", or "90" into an
// Offset with exactly one component set. When the expression has no unit
// letter, defaultUnit is used. The boolean result is false when the string
// does not match the grammar or names an unknown unit; callers must treat
// that as a misconfigured field rather than substituting a default.
func Parse(s string, defaultUnit Unit) (Offset, bool) {
	m := durationPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Offset{}, false
	}
	value, err := strconv.Atoi(m[2])
	if err != nil {
		return Offset{}, false
	}
	if m[1] == "-" {
		value = -value
	}
	unit := defaultUnit
	if m[3] != "" {
		unit = Unit(m[3][0])
	}
	return withUnit(value, unit)
}

func withUnit(value int, unit Unit) (Offset, bool) {
	switch unit {
	case Years:
		return Offset{Years: value}, true
	case Months:
		return Offset{Months: value}, true
	case Days:
		return Offset{Days: value}, true
	case Hours:
		return Offset{Hours: value}, true
	case Minutes:
		return Offset{Minutes: value}, true
	case Seconds:
		return Offset{Seconds: value}, true
	}
	return Offset{}, false
}

// ParseSeconds parses a duration expression and returns its fixed length in
// seconds. It fails for unparsable expressions and for expressions in years
// or months.
func ParseSeconds(s string, defaultUnit Unit) (int64, bool) {
	o, ok := Parse(s, defaultUnit)
	if !ok {
		return 0, false
	}
	return o.FixedSeconds()
}

// ParseLeads parses a lead list expression: comma-separated durations and
// begin_end_incr ranges, each optionally suffixed with a unit letter. Order
// and duplicates are preserved exactly as written. The boolean result is
// false if any item fails to parse.
func ParseLeads(s string, defaultUnit Unit) ([]Offset, bool) {
	items, ok := ExpandList(s)
	if !ok {
		return nil, false
	}
	leads := make([]Offset, 0, len(items))
	for _, item := range items {
		o, ok := Parse(item, defaultUnit)
		if !ok {
			return nil, false
		}
		leads = append(leads, o)
	}
	return leads, true
}

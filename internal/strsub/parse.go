package strsub

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/papapumpkin/metwrap/internal/reltime"
	"github.com/papapumpkin/metwrap/internal/timeinfo"
)

// capture records what one regexp group of an inverted template holds.
type capture struct {
	group string // "init", "valid", "da_init", "lead", "offset", or a plain tag name
	unit  byte   // strftime or lead directive letter; 0 for plain tags
}

// inverse is a template compiled for reverse parsing.
type inverse struct {
	re         *regexp.Regexp
	captures   []capture
	validShift int64
}

// ParseTemplate matches s against tmpl and returns the time-info record the
// template would have produced it from. A string that does not match the
// template returns nil and no error. Templates that shift anything other
// than valid, or shift valid by more than one amount, fail with
// ErrCannotInvert.
func ParseTemplate(tmpl, s string) (*timeinfo.TimeInfo, error) {
	t, err := Compile(tmpl)
	if err != nil {
		return nil, err
	}
	return t.Parse(s)
}

// Parse is ParseTemplate for a compiled template.
func (t *Template) Parse(s string) (*timeinfo.TimeInfo, error) {
	inv, err := t.invert()
	if err != nil {
		return nil, err
	}
	m := inv.re.FindStringSubmatch(s)
	if m == nil {
		return nil, nil
	}

	fields := make(map[string]map[byte]string)
	extra := make(map[string]string)
	for i, c := range inv.captures {
		value := m[i+1]
		if c.unit == 0 {
			if prev, ok := extra[c.group]; ok && prev != value {
				return nil, nil
			}
			extra[c.group] = value
			continue
		}
		parts := fields[c.group]
		if parts == nil {
			parts = make(map[byte]string)
			fields[c.group] = parts
		}
		if prev, ok := parts[c.unit]; ok && prev != value {
			return nil, nil
		}
		parts[c.unit] = value
	}

	in, ok := buildInput(fields, inv.validShift)
	if !ok {
		return nil, nil
	}
	if len(extra) > 0 {
		in.Extra = extra
	}
	ti, err := timeinfo.Calculate(in)
	if err != nil {
		return nil, err
	}
	return &ti, nil
}

// CheckInvertible returns the error Parse would fail with for any input, or
// nil when the template can be reverse parsed.
func (t *Template) CheckInvertible() error {
	_, err := t.invert()
	return err
}

func (t *Template) invert() (*inverse, error) {
	inv := &inverse{}
	var b strings.Builder
	b.WriteByte('^')
	shiftSeen := false
	for _, seg := range t.segments {
		if seg.tag == nil {
			b.WriteString(regexp.QuoteMeta(seg.literal))
			continue
		}
		tag := seg.tag
		group := canonicalGroup(tag.Name)
		if tag.hasShift() && group != "valid" {
			return nil, &TagError{Tag: tag.Raw, Err: ErrCannotInvert, Detail: "shift is only supported on valid"}
		}
		if group == "valid" {
			if len(tag.Shifts) > 1 {
				return nil, &TagError{Tag: tag.Raw, Err: ErrCannotInvert, Detail: "shift expands to more than one value"}
			}
			if shiftSeen && tag.Shifts[0] != inv.validShift {
				return nil, &TagError{Tag: tag.Raw, Err: ErrCannotInvert, Detail: "valid is shifted by different amounts"}
			}
			shiftSeen = true
			inv.validShift = tag.Shifts[0]
		}

		var err error
		switch group {
		case "init", "valid", "da_init":
			err = inv.timePattern(&b, tag, group)
		case "lead", "offset":
			inv.durationPattern(&b, tag.Format, group)
		default:
			b.WriteString("(.+?)")
			inv.captures = append(inv.captures, capture{group: tag.Name})
		}
		if err != nil {
			return nil, err
		}
	}
	b.WriteByte('$')

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, &TagError{Tag: t.raw, Err: ErrBadTag, Detail: err.Error()}
	}
	inv.re = re
	return inv, nil
}

func canonicalGroup(name string) string {
	switch name {
	case "cycle", "date":
		return "da_init"
	}
	return name
}

// timePattern appends a pattern for a strftime format. Directives become
// fixed-width groups; everything else is matched literally.
func (inv *inverse) timePattern(b *strings.Builder, tag *Tag, group string) error {
	format := tag.Format
	if format == "" {
		format = defaultTimeFormat
	}
	format = timeWidth.ReplaceAllString(format, "%$1")
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 == len(format) {
			b.WriteString(regexp.QuoteMeta(format[i : i+1]))
			continue
		}
		i++
		d := format[i]
		var pattern string
		switch d {
		case '%':
			b.WriteString("%")
			continue
		case 'Y':
			pattern = `(\d{4})`
		case 'y', 'm', 'd', 'H', 'M', 'S':
			pattern = `(\d{2})`
		case 'j':
			pattern = `(\d{3})`
		case 'b':
			pattern = `([A-Za-z]{3})`
		case 's':
			pattern = `(\d+)`
		default:
			return &TagError{Tag: tag.Raw, Err: ErrBadTag, Detail: "cannot parse directive %" + string(d)}
		}
		b.WriteString(pattern)
		inv.captures = append(inv.captures, capture{group: group, unit: d})
	}
	return nil
}

// durationPattern appends a pattern for a lead or offset format. A directive
// with an explicit width matches exactly that many digits; one without
// matches any number.
func (inv *inverse) durationPattern(b *strings.Builder, format, group string) {
	if format == "" {
		format = "%s"
	}
	last := 0
	for _, loc := range durationDirective.FindAllStringSubmatchIndex(format, -1) {
		b.WriteString(regexp.QuoteMeta(format[last:loc[0]]))
		last = loc[1]

		letters := format[loc[4]:loc[5]]
		if letters == "s" {
			b.WriteString(`(-?\d+)`)
			inv.captures = append(inv.captures, capture{group: group, unit: 's'})
			continue
		}
		width := 0
		switch {
		case loc[2] >= 0:
			width, _ = strconv.Atoi(format[loc[2]:loc[3]])
		case len(letters) > 1:
			width = len(letters)
		}
		if width > 0 {
			b.WriteString(`(-?\d{` + strconv.Itoa(width) + `})`)
		} else {
			b.WriteString(`(-?\d+)`)
		}
		inv.captures = append(inv.captures, capture{group: group, unit: letters[0]})
	}
	b.WriteString(regexp.QuoteMeta(format[last:]))
}

func buildInput(fields map[string]map[byte]string, validShift int64) (timeinfo.Input, bool) {
	var in timeinfo.Input

	for _, group := range []string{"init", "valid", "da_init"} {
		parts, ok := fields[group]
		if !ok {
			continue
		}
		t, ok := assembleTime(parts)
		if !ok {
			return in, false
		}
		switch group {
		case "init":
			in.Init = timeinfo.At(t)
		case "valid":
			in.Valid = timeinfo.At(t.Add(-time.Duration(validShift) * time.Second))
		case "da_init":
			in.DAInit = timeinfo.At(t)
		}
	}

	if parts, ok := fields["lead"]; ok {
		secs, ok := assembleSeconds(parts)
		if !ok {
			return in, false
		}
		in.Lead = timeinfo.SecondsLead(secs)
	}
	if parts, ok := fields["offset"]; ok {
		secs, ok := assembleSeconds(parts)
		if !ok {
			return in, false
		}
		in.Offset = &secs
	}

	initT, hasInit := in.Init.Time()
	validT, hasValid := in.Valid.Time()
	switch {
	case hasInit && hasValid:
		in.LoopBy = timeinfo.LoopByInit
		if !in.Lead.IsSet() {
			in.Lead = timeinfo.SecondsLead(int64(validT.Sub(initT) / time.Second))
		}
	case !hasInit && !hasValid && !in.DAInit.IsSet():
		in.LoopBy = timeinfo.LoopByInit
		in.Init, in.Valid = timeinfo.AnyTime(), timeinfo.AnyTime()
		if !in.Lead.IsSet() {
			in.Lead = timeinfo.AnyLead()
		}
	}
	return in, true
}

// assembleTime builds a UTC timestamp from strftime components. Missing
// components default to the start of 1900, as strptime does. It fails when
// the components do not name a real calendar time.
func assembleTime(parts map[byte]string) (time.Time, bool) {
	num := func(d byte, def int) (int, bool) {
		s, ok := parts[d]
		if !ok {
			return def, true
		}
		n, err := strconv.Atoi(s)
		return n, err == nil
	}

	if s, ok := parts['s']; ok {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(n, 0).UTC(), true
	}

	year, ok := num('Y', 1900)
	if !ok {
		return time.Time{}, false
	}
	if _, has := parts['Y']; !has {
		if yy, has := parts['y']; has {
			n, err := strconv.Atoi(yy)
			if err != nil {
				return time.Time{}, false
			}
			year = 2000 + n
			if n >= 69 {
				year = 1900 + n
			}
		}
	}

	month, ok := num('m', 1)
	if !ok {
		return time.Time{}, false
	}
	if abbr, has := parts['b']; has {
		t, err := time.Parse("Jan", strings.ToUpper(abbr[:1])+strings.ToLower(abbr[1:]))
		if err != nil {
			return time.Time{}, false
		}
		month = int(t.Month())
	}

	hour, okH := num('H', 0)
	minute, okM := num('M', 0)
	second, okS := num('S', 0)
	if !okH || !okM || !okS || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, false
	}
	if month < 1 || month > 12 {
		return time.Time{}, false
	}

	if jday, has := parts['j']; has {
		n, err := strconv.Atoi(jday)
		if err != nil || n < 1 {
			return time.Time{}, false
		}
		t := time.Date(year, time.January, n, hour, minute, second, 0, time.UTC)
		if t.Year() != year {
			return time.Time{}, false
		}
		return t, true
	}

	day, ok := num('d', 1)
	if !ok {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

func assembleSeconds(parts map[byte]string) (int64, bool) {
	if s, ok := parts['s']; ok {
		n, err := strconv.ParseInt(s, 10, 64)
		return n, err == nil
	}
	var o reltime.Offset
	negative := false
	for unit, s := range parts {
		if digits, ok := strings.CutPrefix(s, "-"); ok {
			negative, s = true, digits
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		switch unit {
		case 'd':
			o.Days = n
		case 'H':
			o.Hours = n
		case 'M':
			o.Minutes = n
		case 'S':
			o.Seconds = n
		}
	}
	secs, _ := o.FixedSeconds()
	if negative {
		secs = -secs
	}
	return secs, true
}

package strsub

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
	"github.com/spf13/cast"

	"github.com/papapumpkin/metwrap/internal/reltime"
	"github.com/papapumpkin/metwrap/internal/timeinfo"
)

// Default formats for tags written without fmt.
const (
	defaultTimeFormat  = "%Y%m%d%H%M%S"
	defaultTodayFormat = "%Y%m%d"
	todayLayout        = "20060102"
)

// durationDirective matches lead directives: %H, %3H, %.3H, %HHH, and %s.
var durationDirective = regexp.MustCompile(`%(?:\.?(\d+))?(d+|H+|M+|S+|s)`)

// timeWidth matches a width prefix on a timestamp directive, e.g. %2H.
var timeWidth = regexp.MustCompile(`%\.?\d+([A-Za-z])`)

// render formats one tag value with the given shift applied. values is the
// full value map, used to anchor calendar offsets.
func render(tag *Tag, v any, shift int64, values map[string]any) (string, error) {
	switch val := v.(type) {
	case time.Time:
		return formatTime(tag, val, shift, defaultTimeFormat), nil
	case int:
		return formatDuration(tag.Format, int64(val)+shift), nil
	case int32:
		return formatDuration(tag.Format, int64(val)+shift), nil
	case int64:
		return formatDuration(tag.Format, val+shift), nil
	case reltime.Offset:
		return formatOffset(tag.Format, val.Add(reltime.FromSeconds(shift)), values), nil
	case string:
		if tag.Name == "today" && val != timeinfo.Wildcard {
			if t, err := time.ParseInLocation(todayLayout, val, time.UTC); err == nil {
				return formatTime(tag, t, shift, defaultTodayFormat), nil
			}
		}
		return val, nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", &TagError{Tag: tag.Raw, Err: ErrBadTag, Detail: err.Error()}
	}
	return s, nil
}

func formatTime(tag *Tag, t time.Time, shift int64, def string) string {
	t = t.UTC().Add(time.Duration(shift) * time.Second)
	if tag.Truncate > 0 {
		unix := t.Unix()
		t = time.Unix(unix-mod(unix, tag.Truncate), 0).UTC()
	}
	format := tag.Format
	if format == "" {
		format = def
	}
	return strftime.Format(timeWidth.ReplaceAllString(format, "%$1"), t)
}

// formatDuration renders a number of seconds using lead directives. The
// seconds are split across the units the format names, largest first, so
// "%H" of 102 hours is "102" while "%d%H" is "0406". A width is a minimum;
// values that need more digits are never cut. A negative value puts its sign
// on the largest unit, and the sign counts toward that unit's width.
func formatDuration(format string, total int64) string {
	if format == "" {
		return strconv.FormatInt(total, 10)
	}

	var present []byte
	for _, m := range durationDirective.FindAllStringSubmatch(format, -1) {
		if m[2] != "s" {
			present = append(present, m[2][0])
		}
	}

	negative := total < 0
	remaining := total
	if negative {
		remaining = -total
	}
	parts := make(map[byte]int64, len(present))
	largest := byte(0)
	for _, unit := range []byte("dHMS") {
		if !containsByte(present, unit) {
			continue
		}
		if largest == 0 {
			largest = unit
		}
		size := unitSeconds(unit)
		parts[unit] = remaining / size
		remaining %= size
	}

	return durationDirective.ReplaceAllStringFunc(format, func(d string) string {
		m := durationDirective.FindStringSubmatch(d)
		if m[2] == "s" {
			return strconv.FormatInt(total, 10)
		}
		unit := m[2][0]
		width := 2
		switch {
		case m[1] != "":
			width, _ = strconv.Atoi(m[1])
		case len(m[2]) > 1:
			width = len(m[2])
		}
		return zfill(parts[unit], width, negative && unit == largest)
	})
}

// formatOffset renders a calendar offset. Offsets with months or years are
// measured against the record's valid time, then init, then now.
func formatOffset(format string, o reltime.Offset, values map[string]any) string {
	if format == "" {
		return o.Letters()
	}
	if s, ok := o.FixedSeconds(); ok {
		return formatDuration(format, s)
	}
	return formatDuration(format, o.SecondsAt(anchor(values)))
}

func anchor(values map[string]any) time.Time {
	for _, key := range []string{"valid", "init", "now"} {
		if t, ok := values[key].(time.Time); ok {
			return t
		}
	}
	return time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func unitSeconds(unit byte) int64 {
	switch unit {
	case 'd':
		return 86400
	case 'H':
		return 3600
	case 'M':
		return 60
	}
	return 1
}

func zfill(v int64, width int, negative bool) string {
	digits := strconv.FormatInt(v, 10)
	if negative {
		width--
	}
	if pad := width - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	if negative {
		return "-" + digits
	}
	return digits
}

func containsByte(list []byte, b byte) bool {
	for _, c := range list {
		if c == b {
			return true
		}
	}
	return false
}

func mod(a, b int64) int64 {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}

package reltime

import (
	"fmt"
	"strconv"
	"strings"
)

// SecondsToMETTime renders a duration in the packed [H...]HHMMSS form the
// MET tools expect. When minutes and seconds are both zero and the hour
// field fits in five digits, only the zero-padded hours are written ("06");
// forceHMS always writes the minutes and seconds.
func SecondsToMETTime(total int64, forceHMS bool) string {
	sign := ""
	if total < 0 {
		sign = "-"
		total = -total
	}
	hours := fmt.Sprintf("%02d", total/3600)
	minutes := fmt.Sprintf("%02d", total/60%60)
	seconds := fmt.Sprintf("%02d", total%60)

	if forceHMS || len(hours) > 5 || minutes != "00" || seconds != "00" {
		return sign + hours + minutes + seconds
	}
	return sign + hours
}

// METTimeToSeconds parses a packed MET time string. Strings of up to five
// digits are hours; longer strings end in two-digit minutes and seconds with
// the remaining leading digits as hours.
func METTimeToSeconds(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return 0, false
	}

	var total int64
	if len(s) <= 5 {
		h, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		total = h * 3600
	} else {
		h, err1 := strconv.ParseInt(s[:len(s)-4], 10, 64)
		m, err2 := strconv.ParseInt(s[len(s)-4:len(s)-2], 10, 64)
		sec, err3 := strconv.ParseInt(s[len(s)-2:], 10, 64)
		if err1 != nil || err2 != nil || err3 != nil || m > 59 || sec > 59 {
			return 0, false
		}
		total = h*3600 + m*60 + sec
	}
	if negative {
		total = -total
	}
	return total, true
}

// DurationToMETTime parses a duration expression with Parse and renders it
// as a packed MET time string. Calendar offsets cannot be packed.
func DurationToMETTime(s string, defaultUnit Unit, forceHMS bool) (string, bool) {
	seconds, ok := ParseSeconds(s, defaultUnit)
	if !ok {
		return "", false
	}
	return SecondsToMETTime(seconds, forceHMS), true
}

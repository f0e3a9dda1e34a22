package reltime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var beginEndIncrPattern = regexp.MustCompile(
	`^(.*?)begin_end_incr\(\s*(-?\d+)\s*,\s*(-?\d+)\s*,\s*(-?\d+)\s*(?:,\s*(\d+)\s*)?\)(.*)$`)

// SplitList splits a comma-separated configuration list into trimmed items.
// Commas inside parentheses or square brackets do not split, so
// "begin_end_incr(0,6,3)H, 12" yields two items. A single pair of enclosing
// square brackets around the whole list is removed. Empty items are dropped.
func SplitList(s string) []string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") && balanced(s[1:len(s)-1]) {
		s = s[1 : len(s)-1]
	}

	var items []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				items = appendItem(items, s[start:i])
				start = i + 1
			}
		}
	}
	return appendItem(items, s[start:])
}

func appendItem(items []string, item string) []string {
	item = strings.TrimSpace(item)
	item = strings.Trim(item, `'"`)
	if item == "" {
		return items
	}
	return append(items, item)
}

func balanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// ExpandList splits s with SplitList and replaces every begin_end_incr item
// with its expansion, keeping the order in which items were written. The
// boolean result is false if a begin_end_incr expression is malformed.
func ExpandList(s string) ([]string, bool) {
	var out []string
	for _, item := range SplitList(s) {
		if !strings.Contains(item, "begin_end_incr") {
			out = append(out, item)
			continue
		}
		expanded, ok := ExpandBeginEndIncr(item)
		if !ok {
			return nil, false
		}
		out = append(out, expanded...)
	}
	return out, true
}

// ExpandBeginEndIncr expands an expression of the form
// "<prefix>begin_end_incr(begin,end,incr[,precision])<suffix>" into the
// inclusive arithmetic sequence from begin to end. Each value is zero-filled
// to precision digits when given and wrapped in the prefix and suffix text,
// so "begin_end_incr(0,6,3)H" yields "0H", "3H", "6H". Descending ranges
// need a negative increment. When begin equals end a single value is
// produced regardless of the increment.
func ExpandBeginEndIncr(item string) ([]string, bool) {
	m := beginEndIncrPattern.FindStringSubmatch(strings.TrimSpace(item))
	if m == nil {
		return nil, false
	}
	begin, err1 := strconv.Atoi(m[2])
	end, err2 := strconv.Atoi(m[3])
	incr, err3 := strconv.Atoi(m[4])
	if err1 != nil || err2 != nil || err3 != nil {
		return nil, false
	}
	precision := 0
	if m[5] != "" {
		p, err := strconv.Atoi(m[5])
		if err != nil {
			return nil, false
		}
		precision = p
	}

	values, ok := inclusiveRange(begin, end, incr)
	if !ok {
		return nil, false
	}

	prefix, suffix := strings.TrimSpace(m[1]), strings.TrimSpace(m[6])
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, prefix+zeroFill(v, precision)+suffix)
	}
	return out, true
}

func inclusiveRange(begin, end, incr int) ([]int, bool) {
	if begin == end {
		return []int{begin}, true
	}
	if incr == 0 {
		return nil, false
	}
	var values []int
	if begin < end {
		for v := begin; incr > 0 && v <= end; v += incr {
			values = append(values, v)
		}
	} else {
		for v := begin; incr < 0 && v >= end; v += incr {
			values = append(values, v)
		}
	}
	return values, true
}

// zeroFill pads the decimal form of v with zeros to width characters; a
// minus sign counts toward the width.
func zeroFill(v, width int) string {
	if width <= 0 {
		return strconv.Itoa(v)
	}
	return fmt.Sprintf("%0*d", width, v)
}

// ParseIntList expands a list expression and converts every item to an int.
func ParseIntList(s string) ([]int, bool) {
	items, ok := ExpandList(s)
	if !ok {
		return nil, false
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		v, err := strconv.Atoi(item)
		if err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

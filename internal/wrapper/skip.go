package wrapper

import (
	"strconv"
	"strings"

	"github.com/ncruces/go-strftime"

	"github.com/papapumpkin/metwrap/internal/config"
	"github.com/papapumpkin/metwrap/internal/reltime"
	"github.com/papapumpkin/metwrap/internal/timeinfo"
)

// skipRule skips valid times whose rendering with format is one of values.
type skipRule struct {
	format string
	values []string
}

// skipRules parses <APP>_SKIP_TIMES, a list of "format:value" items such as
// "%m:begin_end_incr(3,11,1)", "%d:30,31". An item without a format belongs
// to the format before it.
func (w *Wrapper) skipRules() ([]skipRule, error) {
	key := w.key(KeySkipTimes)
	raw := w.appString(KeySkipTimes, "")
	if raw == "" {
		return nil, nil
	}
	items, ok := reltime.ExpandList(raw)
	if !ok {
		return nil, config.Invalid(config.SectionConfig, key, raw, "expected format:values items such as %m:begin_end_incr(3,11,1)")
	}

	var rules []skipRule
	for _, item := range items {
		format, value, found := strings.Cut(item, ":")
		if found && strings.HasPrefix(format, "%") {
			if len(rules) == 0 || rules[len(rules)-1].format != format {
				rules = append(rules, skipRule{format: format})
			}
			rules[len(rules)-1].values = append(rules[len(rules)-1].values, strings.TrimSpace(value))
			continue
		}
		if len(rules) == 0 {
			return nil, config.Invalid(config.SectionConfig, key, raw, "the first item must start with a time format such as %m:")
		}
		rules[len(rules)-1].values = append(rules[len(rules)-1].values, item)
	}
	return rules, nil
}

// skipped reports whether ti's valid time matches any rule. Wildcard valid
// times are never skipped.
func skipped(rules []skipRule, ti timeinfo.TimeInfo) bool {
	valid, ok := ti.Valid.Time()
	if !ok {
		return false
	}
	for _, r := range rules {
		rendered := strftime.Format(r.format, valid)
		for _, v := range r.values {
			if sameValue(rendered, v) {
				return true
			}
		}
	}
	return false
}

// sameValue compares numerically when both sides are integers, so "3"
// matches a zero-padded "03".
func sameValue(a, b string) bool {
	if a == b {
		return true
	}
	x, errA := strconv.Atoi(a)
	y, errB := strconv.Atoi(b)
	return errA == nil && errB == nil && x == y
}

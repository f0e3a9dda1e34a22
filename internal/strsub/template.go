// Package strsub resolves {name?fmt=...?shift=...} placeholders in filename
// and argument templates against time-info values, and inverts a template to
// recover a time-info record from a concrete filename.
package strsub

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/papapumpkin/metwrap/internal/reltime"
)

// Sentinel errors returned by this package.
var (
	// ErrMissingTag indicates a template tag has no value.
	ErrMissingTag = errors.New("template tag has no value")
	// ErrBadTag indicates a tag option could not be parsed.
	ErrBadTag = errors.New("malformed template tag")
	// ErrMultipleValues indicates a shift list expanded a template to more
	// than one string where only one was expected.
	ErrMultipleValues = errors.New("template expands to more than one value")
	// ErrCannotInvert indicates a template uses shifts that reverse parsing
	// does not support.
	ErrCannotInvert = errors.New("template cannot be inverted")
)

// TagError reports a problem with a single template tag.
type TagError struct {
	Tag    string
	Detail string
	Err    error
}

// Error implements the error interface.
func (e *TagError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Tag, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Tag, e.Err, e.Detail)
}

// Unwrap returns the sentinel the error wraps.
func (e *TagError) Unwrap() error {
	return e.Err
}

var tagPattern = regexp.MustCompile(`\{(\w+)((?:\?\w+=[^?{}]*)*)\}`)

// Tag is one parsed placeholder.
type Tag struct {
	Raw    string
	Name   string
	Format string

	// Shift is the raw shift expression; Shifts holds its expansion in
	// seconds. A tag without a shift has a single zero shift.
	Shift  string
	Shifts []int64

	// Truncate is the interval in seconds a timestamp is floored to before
	// formatting. Zero means no truncation.
	Truncate int64
}

func (t Tag) hasShift() bool {
	return t.Shift != ""
}

type segment struct {
	literal string
	tag     *Tag
}

// Template is a parsed template: literal text interleaved with tags. Text in
// braces that is not a well-formed tag is kept as literal text.
type Template struct {
	raw      string
	segments []segment
}

// Compile parses tmpl. It fails only when a tag option is malformed.
func Compile(tmpl string) (*Template, error) {
	t := &Template{raw: tmpl}
	last := 0
	for _, loc := range tagPattern.FindAllStringSubmatchIndex(tmpl, -1) {
		if loc[0] > last {
			t.segments = append(t.segments, segment{literal: tmpl[last:loc[0]]})
		}
		tag, err := parseTag(tmpl[loc[0]:loc[1]], tmpl[loc[2]:loc[3]], tmpl[loc[4]:loc[5]])
		if err != nil {
			return nil, err
		}
		t.segments = append(t.segments, segment{tag: tag})
		last = loc[1]
	}
	if last < len(tmpl) {
		t.segments = append(t.segments, segment{literal: tmpl[last:]})
	}
	return t, nil
}

func parseTag(raw, name, options string) (*Tag, error) {
	tag := &Tag{Raw: raw, Name: strings.ToLower(name), Shifts: []int64{0}}
	if options == "" {
		return tag, nil
	}
	for _, opt := range strings.Split(options[1:], "?") {
		key, value, _ := strings.Cut(opt, "=")
		switch strings.ToLower(key) {
		case "fmt":
			tag.Format = value
		case "shift":
			shifts, ok := parseShifts(value)
			if !ok {
				return nil, &TagError{Tag: raw, Err: ErrBadTag, Detail: "invalid shift " + value}
			}
			tag.Shift, tag.Shifts = value, shifts
		case "truncate":
			n, ok := reltime.ParseSeconds(value, reltime.Seconds)
			if !ok || n <= 0 {
				return nil, &TagError{Tag: raw, Err: ErrBadTag, Detail: "invalid truncate " + value}
			}
			tag.Truncate = n
		default:
			return nil, &TagError{Tag: raw, Err: ErrBadTag, Detail: "unknown option " + key}
		}
	}
	return tag, nil
}

func parseShifts(expr string) ([]int64, bool) {
	items, ok := reltime.ExpandList(expr)
	if !ok || len(items) == 0 {
		return nil, false
	}
	shifts := make([]int64, 0, len(items))
	for _, item := range items {
		s, ok := reltime.ParseSeconds(item, reltime.Seconds)
		if !ok {
			return nil, false
		}
		shifts = append(shifts, s)
	}
	return shifts, true
}

// String returns the template text.
func (t *Template) String() string {
	return t.raw
}

// Tags returns the template's tags in order of appearance.
func (t *Template) Tags() []Tag {
	var tags []Tag
	for _, seg := range t.segments {
		if seg.tag != nil {
			tags = append(tags, *seg.tag)
		}
	}
	return tags
}

// HasTags reports whether the template contains any tag.
func (t *Template) HasTags() bool {
	for _, seg := range t.segments {
		if seg.tag != nil {
			return true
		}
	}
	return false
}

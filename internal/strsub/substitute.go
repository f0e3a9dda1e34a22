package strsub

import (
	"strings"
)

// Option configures substitution.
type Option func(*options)

type options struct {
	skipMissing bool
}

// WithSkipMissing leaves tags that have no value unchanged in the output
// instead of failing. It is used for staged substitution, where a later pass
// fills in the remaining tags.
func WithSkipMissing() Option {
	return func(o *options) { o.skipMissing = true }
}

// Substitute resolves every tag in tmpl against values and returns the single
// resulting string. A tag whose shift expands to several values makes the
// template multi-valued; use SubstituteAll for those.
func Substitute(tmpl string, values map[string]any, opts ...Option) (string, error) {
	out, err := SubstituteAll(tmpl, values, opts...)
	if err != nil {
		return "", err
	}
	if len(out) != 1 {
		return "", &TagError{Tag: tmpl, Err: ErrMultipleValues}
	}
	return out[0], nil
}

// SubstituteAll resolves every tag in tmpl against values. Each tag
// contributes one rendering per shift value, and the result holds every
// combination in template order.
func SubstituteAll(tmpl string, values map[string]any, opts ...Option) ([]string, error) {
	t, err := Compile(tmpl)
	if err != nil {
		return nil, err
	}
	return t.Execute(values, opts...)
}

// Execute resolves the compiled template against values. See SubstituteAll.
func (t *Template) Execute(values map[string]any, opts ...Option) ([]string, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	results := []string{""}
	for _, seg := range t.segments {
		if seg.tag == nil {
			for i := range results {
				results[i] += seg.literal
			}
			continue
		}
		choices, err := renderTag(seg.tag, values, o)
		if err != nil {
			return nil, err
		}
		results = cross(results, choices)
	}
	return results, nil
}

func renderTag(tag *Tag, values map[string]any, o options) ([]string, error) {
	v, ok := lookup(values, tag.Name)
	if !ok {
		if o.skipMissing {
			return []string{tag.Raw}, nil
		}
		return nil, &TagError{Tag: tag.Raw, Err: ErrMissingTag}
	}
	out := make([]string, 0, len(tag.Shifts))
	for _, shift := range tag.Shifts {
		s, err := render(tag, v, shift, values)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// lookup finds name in values, ignoring case.
func lookup(values map[string]any, name string) (any, bool) {
	if v, ok := values[name]; ok {
		return v, true
	}
	for k, v := range values {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func cross(prefixes, suffixes []string) []string {
	if len(suffixes) == 1 {
		for i := range prefixes {
			prefixes[i] += suffixes[0]
		}
		return prefixes
	}
	out := make([]string, 0, len(prefixes)*len(suffixes))
	for _, p := range prefixes {
		for _, s := range suffixes {
			out = append(out, p+s)
		}
	}
	return out
}

package wrapper

import (
	"path/filepath"
	"strings"

	"github.com/papapumpkin/metwrap/internal/config"
)

// WatchTemplates returns the directory to watch for new inputs and the input
// templates relative to it. Leading directory components of <APP>_INPUT_DIR
// that contain no template tags form the root; the rest is folded into each
// template.
func (w *Wrapper) WatchTemplates() (root string, templates []string, err error) {
	s, err := w.settings()
	if err != nil {
		return "", nil, err
	}
	if s.inputDir == "" {
		return "", nil, config.Invalid(config.SectionConfig, w.key(KeyInputDir), "", "an input directory is required to watch")
	}
	if len(s.inputs) == 0 {
		return "", nil, config.Invalid(config.SectionConfig, w.key(KeyInputTemplate), "", "at least one input template is required")
	}

	root, rest := splitStatic(filepath.ToSlash(s.inputDir))
	for _, tmpl := range s.inputs {
		tmpl = strings.TrimPrefix(filepath.ToSlash(tmpl), "/")
		if rest != "" {
			tmpl = rest + "/" + tmpl
		}
		templates = append(templates, tmpl)
	}
	return filepath.FromSlash(root), templates, nil
}

// splitStatic splits a slash path before the first component holding a
// template tag.
func splitStatic(dir string) (static, templated string) {
	parts := strings.Split(strings.TrimSuffix(dir, "/"), "/")
	for i, p := range parts {
		if strings.Contains(p, "{") {
			static = strings.Join(parts[:i], "/")
			if static == "" && strings.HasPrefix(dir, "/") {
				static = "/"
			}
			return static, strings.Join(parts[i:], "/")
		}
	}
	return strings.Join(parts, "/"), ""
}

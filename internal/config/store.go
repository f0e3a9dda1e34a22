package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/papapumpkin/metwrap/internal/reltime"
)

// Sections of a MET run configuration.
const (
	SectionConfig    = "config"
	SectionDir       = "dir"
	SectionTemplates = "filename_templates"
	SectionUserEnv   = "user_env_vars"
)

// ClockTimeKey is the optional [config] key that pins the run's clock time.
const ClockTimeKey = "CLOCK_TIME"

// ClockTimeLayout is the layout of CLOCK_TIME values (%Y%m%d%H%M%S).
const ClockTimeLayout = "20060102150405"

// maxReferenceDepth bounds nested {KEY} expansion so a self-referencing value
// cannot loop forever.
const maxReferenceDepth = 10

var referencePattern = regexp.MustCompile(`\{(?:ENV\[(\w+)\]|(\w+)(?:\.(\w+))?)\}`)

// Store is a read-only, sectioned key/value view of a MET run configuration.
// Keys are case-insensitive. The clock time is fixed when the Store is built
// and never changes afterwards.
type Store struct {
	v      *viper.Viper
	clock  time.Time
	logger zerolog.Logger
}

// Read builds a Store from the given TOML/YAML files, applied in order so
// later files override earlier ones, followed by "section.KEY=value"
// overrides. An override without a section applies to [config].
func Read(paths []string, overrides []string, logger zerolog.Logger) (*Store, error) {
	v := viper.New()
	for i, p := range paths {
		v.SetConfigFile(p)
		var err error
		if i == 0 {
			err = v.ReadInConfig()
		} else {
			err = v.MergeInConfig()
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
	}
	for _, o := range overrides {
		name, value, ok := strings.Cut(o, "=")
		if !ok {
			return nil, fmt.Errorf("override %q: expected section.KEY=value", o)
		}
		section, key, found := strings.Cut(strings.TrimSpace(name), ".")
		if !found {
			section, key = SectionConfig, section
		}
		v.Set(path(section, key), value)
	}
	return newStore(v, logger)
}

// FromMap builds a Store from in-memory sections, e.g.
// {"config": {"LEAD_SEQ": "0,3,6"}}.
func FromMap(sections map[string]map[string]any, logger zerolog.Logger) (*Store, error) {
	v := viper.New()
	raw := make(map[string]any, len(sections))
	for name, values := range sections {
		raw[name] = values
	}
	if err := v.MergeConfigMap(raw); err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	return newStore(v, logger)
}

func newStore(v *viper.Viper, logger zerolog.Logger) (*Store, error) {
	s := &Store{v: v, logger: logger}
	clock := time.Now().UTC().Truncate(time.Second)
	if s.HasOption(SectionConfig, ClockTimeKey) {
		raw := s.GetString(SectionConfig, ClockTimeKey, "")
		t, err := time.ParseInLocation(ClockTimeLayout, raw, time.UTC)
		if err != nil {
			return nil, Invalid(SectionConfig, ClockTimeKey, raw, "expected %Y%m%d%H%M%S")
		}
		clock = t
	}
	s.clock = clock
	return s, nil
}

func path(section, key string) string {
	return strings.ToLower(section) + "." + strings.ToLower(key)
}

// ClockTime returns the moment the run began. It is the anchor for {now}
// and {today} template tags.
func (s *Store) ClockTime() time.Time {
	return s.clock
}

// Logger returns the logger configuration errors are reported through.
func (s *Store) Logger() *zerolog.Logger {
	return &s.logger
}

// HasOption reports whether key is present in section, even if its value is
// an empty string.
func (s *Store) HasOption(section, key string) bool {
	return s.v.IsSet(path(section, key))
}

// Keys returns the upper-cased names of every key in section, sorted.
func (s *Store) Keys(section string) []string {
	prefix := strings.ToLower(section) + "."
	var keys []string
	for _, k := range s.v.AllKeys() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, strings.ToUpper(strings.TrimPrefix(k, prefix)))
		}
	}
	sort.Strings(keys)
	return keys
}

// GetUnsubstituted returns the literal value of key, or def when the key is
// absent.
func (s *Store) GetUnsubstituted(section, key, def string) string {
	if !s.HasOption(section, key) {
		return def
	}
	return s.literal(section, key)
}

func (s *Store) literal(section, key string) string {
	val := s.v.Get(path(section, key))
	switch list := val.(type) {
	case []any:
		items := make([]string, 0, len(list))
		for _, item := range list {
			items = append(items, cast.ToString(item))
		}
		return strings.Join(items, ",")
	case []string:
		return strings.Join(list, ",")
	case []int:
		items := make([]string, 0, len(list))
		for _, item := range list {
			items = append(items, cast.ToString(item))
		}
		return strings.Join(items, ",")
	}
	str, err := cast.ToStringE(val)
	if err != nil {
		s.logger.Warn().Str("section", section).Str("key", key).Err(err).Msg("value is not a scalar")
		return ""
	}
	return str
}

// GetRaw returns the value of key with references to other settings
// ({KEY}, {SECTION.KEY}) and environment variables ({ENV[NAME]}) expanded.
// Template tags such as {init?fmt=%Y} are left untouched. When the key is
// absent def is returned, also expanded.
func (s *Store) GetRaw(section, key, def string) string {
	return s.expand(section, s.GetUnsubstituted(section, key, def))
}

// GetString returns GetRaw with surrounding whitespace removed.
func (s *Store) GetString(section, key, def string) string {
	return strings.TrimSpace(s.GetRaw(section, key, def))
}

func (s *Store) expand(section, value string) string {
	for i := 0; i < maxReferenceDepth && strings.Contains(value, "{"); i++ {
		next := referencePattern.ReplaceAllStringFunc(value, func(ref string) string {
			return s.resolveReference(section, ref)
		})
		if next == value {
			break
		}
		value = next
	}
	return value
}

func (s *Store) resolveReference(section, ref string) string {
	m := referencePattern.FindStringSubmatch(ref)
	if env := m[1]; env != "" {
		if val, ok := os.LookupEnv(env); ok {
			return val
		}
		s.logger.Warn().Str("variable", env).Msg("environment variable referenced in configuration is not set")
		return ref
	}
	if m[3] != "" {
		if s.HasOption(m[2], m[3]) {
			return s.literal(m[2], m[3])
		}
		return ref
	}
	for _, sec := range []string{section, SectionConfig, SectionDir, SectionTemplates, SectionUserEnv} {
		if s.HasOption(sec, m[2]) {
			return s.literal(sec, m[2])
		}
	}
	return ref
}

// GetBool returns key parsed as a boolean, or def when the key is absent or
// empty.
func (s *Store) GetBool(section, key string, def bool) (bool, error) {
	raw := s.GetString(section, key, "")
	if raw == "" {
		return def, nil
	}
	b, err := cast.ToBoolE(raw)
	if err != nil {
		return false, Invalid(section, key, raw, "expected a boolean")
	}
	return b, nil
}

// GetInt returns key parsed as an integer, or def when the key is absent or
// empty.
func (s *Store) GetInt(section, key string, def int) (int, error) {
	raw := s.GetString(section, key, "")
	if raw == "" {
		return def, nil
	}
	n, err := cast.ToIntE(raw)
	if err != nil {
		return 0, Invalid(section, key, raw, "expected an integer")
	}
	return n, nil
}

// GetIntList returns key expanded as a list of integers. An absent or empty
// key yields an empty list.
func (s *Store) GetIntList(section, key string) ([]int, error) {
	raw := s.GetString(section, key, "")
	if raw == "" {
		return nil, nil
	}
	list, ok := reltime.ParseIntList(raw)
	if !ok {
		return nil, Invalid(section, key, raw, "expected a comma-separated list of integers")
	}
	return list, nil
}

// GetOffset returns key parsed as a duration expression, using unit when
// the value has no unit letter. def is parsed the same way when the key is
// absent or empty.
func (s *Store) GetOffset(section, key, def string, unit reltime.Unit) (reltime.Offset, error) {
	raw := s.GetString(section, key, "")
	if raw == "" {
		raw = def
	}
	o, ok := reltime.Parse(raw, unit)
	if !ok {
		return reltime.Offset{}, Invalid(section, key, raw, "expected a duration such as 3H, 30M, or 1d")
	}
	return o, nil
}

// Settings returns every key of every section as literal strings, keyed
// "SECTION.KEY". It is used to record the effective configuration of a run.
func (s *Store) Settings() map[string]string {
	out := make(map[string]string)
	for _, k := range s.v.AllKeys() {
		section, key, ok := strings.Cut(k, ".")
		if !ok {
			continue
		}
		out[section+"."+strings.ToUpper(key)] = s.literal(section, key)
	}
	return out
}

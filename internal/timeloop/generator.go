// Package timeloop produces the sequence of run times a MET run loops over,
// from either an explicit list or a begin/end/increment range.
package timeloop

import (
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
	"github.com/rs/zerolog"

	"github.com/papapumpkin/metwrap/internal/config"
	"github.com/papapumpkin/metwrap/internal/reltime"
	"github.com/papapumpkin/metwrap/internal/strsub"
	"github.com/papapumpkin/metwrap/internal/timeinfo"
)

// DefaultIncrement is the range step used when <PREFIX>_INCREMENT is absent
// or blank.
const DefaultIncrement = "60"

// minIncrement is the smallest range step accepted, in seconds.
const minIncrement = 60

// TodayLayout is the rendering of the {today} tag.
const TodayLayout = "20060102"

// Config is the read-only configuration the generator consumes.
type Config interface {
	HasOption(section, key string) bool
	GetString(section, key, def string) string
	GetBool(section, key string, def bool) (bool, error)
	GetOffset(section, key, def string, unit reltime.Unit) (reltime.Offset, error)
	ClockTime() time.Time
	Logger() *zerolog.Logger
}

// Item is one element of the sequence. Err is non-nil when the element could
// not be produced; Input is then the zero value.
type Item struct {
	Input timeinfo.Input
	Err   error
}

type mode uint8

const (
	modeUnstarted mode = iota
	modeList
	modeRange
	modeDone
)

// Generator lazily yields one time-info input per run time. It holds no
// resources; Close exists for symmetry with other iterators. A Generator is
// not safe for concurrent use.
type Generator struct {
	cfg    Config
	logger *zerolog.Logger
	custom string

	mode    mode
	loopBy  timeinfo.LoopBy
	prefix  string
	format  string
	list    []string
	pos     int
	current time.Time
	end     time.Time
	incr    reltime.Offset
}

// New returns a Generator reading cfg. custom is stamped on every yielded
// input as the {custom} value.
func New(cfg Config, custom string) *Generator {
	return &Generator{cfg: cfg, logger: cfg.Logger(), custom: custom}
}

// Reset rewinds the generator so the next call to Next starts over.
func (g *Generator) Reset() {
	*g = Generator{cfg: g.cfg, logger: g.logger, custom: g.custom}
}

// Close releases the generator. It is a no-op.
func (g *Generator) Close() error {
	return nil
}

// Next returns the next item and true, or false once the sequence is
// exhausted. A fatal configuration problem produces exactly one item
// carrying the error, after which the sequence ends. In list mode a bad
// entry produces an error item and the sequence continues.
func (g *Generator) Next() (Item, bool) {
	if g.mode == modeUnstarted {
		if err := g.start(); err != nil {
			g.mode = modeDone
			return Item{Err: err}, true
		}
	}

	switch g.mode {
	case modeList:
		if g.pos >= len(g.list) {
			g.mode = modeDone
			return Item{}, false
		}
		raw := g.list[g.pos]
		g.pos++
		t, err := g.parseTime(g.prefix+"_LIST", raw)
		if err != nil {
			return Item{Err: err}, true
		}
		return Item{Input: g.input(t)}, true

	case modeRange:
		if g.current.After(g.end) {
			g.mode = modeDone
			return Item{}, false
		}
		t := g.current
		g.current = g.incr.AddTo(g.current)
		return Item{Input: g.input(t)}, true
	}
	return Item{}, false
}

// All returns the remaining sequence as an iterator of (input, error) pairs.
func (g *Generator) All() iter.Seq2[timeinfo.Input, error] {
	return func(yield func(timeinfo.Input, error) bool) {
		for {
			item, ok := g.Next()
			if !ok || !yield(item.Input, item.Err) {
				return
			}
		}
	}
}

// LoopBy resolves the loop axis from LOOP_BY, falling back to the legacy
// LOOP_BY_INIT boolean.
func LoopBy(cfg Config) (timeinfo.LoopBy, error) {
	if raw := cfg.GetString(config.SectionConfig, "LOOP_BY", ""); raw != "" {
		switch strings.ToUpper(raw) {
		case "INIT", "RETRO":
			return timeinfo.LoopByInit, nil
		case "VALID", "REALTIME":
			return timeinfo.LoopByValid, nil
		}
		return timeinfo.LoopByUnset, config.Invalid(config.SectionConfig, "LOOP_BY", raw, "expected INIT, RETRO, VALID, or REALTIME")
	}
	if cfg.HasOption(config.SectionConfig, "LOOP_BY_INIT") {
		byInit, err := cfg.GetBool(config.SectionConfig, "LOOP_BY_INIT", true)
		if err != nil {
			return timeinfo.LoopByUnset, err
		}
		if byInit {
			return timeinfo.LoopByInit, nil
		}
		return timeinfo.LoopByValid, nil
	}
	return timeinfo.LoopByUnset, config.Invalid(config.SectionConfig, "LOOP_BY", "", "must be set to INIT or VALID")
}

func (g *Generator) start() error {
	loopBy, err := LoopBy(g.cfg)
	if err != nil {
		return g.fail(err)
	}
	g.loopBy = loopBy
	g.prefix = strings.ToUpper(string(loopBy))

	fmtKey := g.prefix + "_TIME_FMT"
	g.format = g.cfg.GetString(config.SectionConfig, fmtKey, "")
	if g.format == "" {
		return g.fail(config.Invalid(config.SectionConfig, fmtKey, "", "must be set"))
	}

	if raw := g.cfg.GetString(config.SectionConfig, g.prefix+"_LIST", ""); raw != "" {
		items, ok := reltime.ExpandList(raw)
		if !ok {
			return g.fail(config.Invalid(config.SectionConfig, g.prefix+"_LIST", raw, "expected a comma-separated list of times"))
		}
		g.mode, g.list = modeList, items
		return nil
	}
	return g.startRange()
}

func (g *Generator) startRange() error {
	begKey, endKey, incrKey := g.prefix+"_BEG", g.prefix+"_END", g.prefix+"_INCREMENT"

	begRaw := g.cfg.GetString(config.SectionConfig, begKey, "")
	if begRaw == "" {
		return g.fail(config.Invalid(config.SectionConfig, begKey, "", "must be set when "+g.prefix+"_LIST is not"))
	}
	beg, err := g.parseTime(begKey, begRaw)
	if err != nil {
		return err
	}

	endRaw := g.cfg.GetString(config.SectionConfig, endKey, begRaw)
	end, err := g.parseTime(endKey, endRaw)
	if err != nil {
		return err
	}

	incr, err := g.cfg.GetOffset(config.SectionConfig, incrKey, DefaultIncrement, reltime.Seconds)
	if err != nil {
		return g.fail(err)
	}
	if step := incr.AddTo(beg).Sub(beg); step < minIncrement*time.Second {
		return g.fail(config.Invalid(config.SectionConfig, incrKey, incr.Letters(), fmt.Sprintf("must be at least %d seconds", minIncrement)))
	}

	if beg.After(end) {
		return g.fail(config.Invalid(config.SectionConfig, endKey, endRaw, "must not be before "+begKey+" "+begRaw))
	}

	g.mode, g.current, g.end, g.incr = modeRange, beg, end, incr
	return nil
}

// parseTime substitutes {now} and {today} into raw and parses the result
// with the configured time format.
func (g *Generator) parseTime(key, raw string) (time.Time, error) {
	clock := g.cfg.ClockTime()
	value, err := strsub.Substitute(raw, map[string]any{
		"now":   clock,
		"today": clock.Format(TodayLayout),
	}, strsub.WithSkipMissing())
	if err != nil {
		return time.Time{}, g.fail(config.Invalid(config.SectionConfig, key, raw, err.Error()))
	}
	t, err := strftime.Parse(g.format, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, g.fail(config.Invalid(config.SectionConfig, key, value, "does not match "+g.prefix+"_TIME_FMT "+g.format))
	}
	return t.UTC(), nil
}

func (g *Generator) input(t time.Time) timeinfo.Input {
	clock := g.cfg.ClockTime()
	in := timeinfo.Input{
		LoopBy: g.loopBy,
		Now:    clock,
		Today:  clock.Format(TodayLayout),
		Custom: g.custom,
	}
	if g.loopBy == timeinfo.LoopByInit {
		in.Init = timeinfo.At(t)
	} else {
		in.Valid = timeinfo.At(t)
	}
	return in
}

func (g *Generator) fail(err error) error {
	g.logger.Error().Err(err).Msg("cannot build run times")
	return err
}

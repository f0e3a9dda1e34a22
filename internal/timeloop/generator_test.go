package timeloop

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/papapumpkin/metwrap/internal/config"
	"github.com/papapumpkin/metwrap/internal/timeinfo"
)

func newStore(t *testing.T, values map[string]any) *config.Store {
	t.Helper()
	values[config.ClockTimeKey] = "20240501123456"
	s, err := config.FromMap(map[string]map[string]any{config.SectionConfig: values}, zerolog.Nop())
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	return s
}

// collect drains g, rendering each item as its driving time or "error".
func collect(g *Generator) []string {
	var out []string
	for in, err := range g.All() {
		if err != nil {
			out = append(out, "error")
			continue
		}
		m := in.Init
		if in.LoopBy == timeinfo.LoopByValid {
			m = in.Valid
		}
		out = append(out, m.String())
	}
	return out
}

func TestGenerator_Range(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values map[string]any
		want   []string
	}{
		{
			name: "init every six hours",
			values: map[string]any{
				"LOOP_BY": "INIT", "INIT_TIME_FMT": "%Y%m%d%H",
				"INIT_BEG": "2021020100", "INIT_END": "2021020112", "INIT_INCREMENT": "6H",
			},
			want: []string{"20210201000000", "20210201060000", "20210201120000"},
		},
		{
			name: "end defaults to begin",
			values: map[string]any{
				"LOOP_BY": "VALID", "VALID_TIME_FMT": "%Y%m%d%H",
				"VALID_BEG": "2021020100",
			},
			want: []string{"20210201000000"},
		},
		{
			name: "blank increment uses sixty seconds",
			values: map[string]any{
				"LOOP_BY": "realtime", "VALID_TIME_FMT": "%Y%m%d%H%M",
				"VALID_BEG": "202102010000", "VALID_END": "202102010002", "VALID_INCREMENT": "",
			},
			want: []string{"20210201000000", "20210201000100", "20210201000200"},
		},
		{
			name: "calendar increment",
			values: map[string]any{
				"LOOP_BY": "RETRO", "INIT_TIME_FMT": "%Y%m",
				"INIT_BEG": "202111", "INIT_END": "202202", "INIT_INCREMENT": "1m",
			},
			want: []string{"20211101000000", "20211201000000", "20220101000000", "20220201000000"},
		},
		{
			name: "now relative bounds",
			values: map[string]any{
				"LOOP_BY": "INIT", "INIT_TIME_FMT": "%Y%m%d%H",
				"INIT_BEG": "{now?fmt=%Y%m%d%H?shift=-1d}", "INIT_END": "{today}00", "INIT_INCREMENT": "12H",
			},
			want: []string{"20240430120000", "20240501000000"},
		},
		{
			name: "legacy loop_by_init",
			values: map[string]any{
				"LOOP_BY_INIT": "false", "VALID_TIME_FMT": "%Y%m%d",
				"VALID_BEG": "20210201", "VALID_END": "20210202", "VALID_INCREMENT": "1d",
			},
			want: []string{"20210201000000", "20210202000000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := collect(New(newStore(t, tt.values), ""))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("run times mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGenerator_ListPartialFailure(t *testing.T) {
	t.Parallel()

	g := New(newStore(t, map[string]any{
		"LOOP_BY": "INIT", "INIT_TIME_FMT": "%Y%m%d%H",
		"INIT_LIST": "2021020104, 202102010412",
	}), "")

	first, ok := g.Next()
	if !ok || first.Err != nil {
		t.Fatalf("first item = %+v, %v; want a run time", first, ok)
	}
	if got := first.Input.Init.String(); got != "20210201040000" {
		t.Errorf("first init = %s", got)
	}

	second, ok := g.Next()
	if !ok || !errors.Is(second.Err, config.ErrInvalid) {
		t.Fatalf("second item = %+v, %v; want an ErrInvalid item", second, ok)
	}

	if item, ok := g.Next(); ok {
		t.Errorf("third item = %+v, want exhausted", item)
	}
}

func TestGenerator_ListKeepsOrder(t *testing.T) {
	t.Parallel()

	g := New(newStore(t, map[string]any{
		"LOOP_BY": "VALID", "VALID_TIME_FMT": "%Y%m%d%H",
		"VALID_LIST": "2021020112, 2021020100, begin_end_incr(2021020200,2021020202,1)",
		"VALID_BEG":  "1999010100",
	}), "")
	want := []string{"20210201120000", "20210201000000", "20210202000000", "20210202010000", "20210202020000"}
	if diff := cmp.Diff(want, collect(g)); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerator_FatalConfiguration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values map[string]any
		key    string
	}{
		{
			name:   "end before begin",
			values: map[string]any{"LOOP_BY": "INIT", "INIT_TIME_FMT": "%Y%m%d%H", "INIT_BEG": "2021112012", "INIT_END": "2020112012"},
			key:    "INIT_END",
		},
		{
			name:   "no loop_by",
			values: map[string]any{"INIT_TIME_FMT": "%Y%m%d%H", "INIT_BEG": "2021112012"},
			key:    "LOOP_BY",
		},
		{
			name:   "bad loop_by",
			values: map[string]any{"LOOP_BY": "LEAD", "INIT_TIME_FMT": "%Y%m%d%H", "INIT_BEG": "2021112012"},
			key:    "LOOP_BY",
		},
		{
			name:   "no time format",
			values: map[string]any{"LOOP_BY": "INIT", "INIT_BEG": "2021112012"},
			key:    "INIT_TIME_FMT",
		},
		{
			name:   "increment too small",
			values: map[string]any{"LOOP_BY": "INIT", "INIT_TIME_FMT": "%Y%m%d%H", "INIT_BEG": "2021112012", "INIT_INCREMENT": "59"},
			key:    "INIT_INCREMENT",
		},
		{
			name:   "negative increment",
			values: map[string]any{"LOOP_BY": "INIT", "INIT_TIME_FMT": "%Y%m%d%H", "INIT_BEG": "2021112012", "INIT_INCREMENT": "-6H"},
			key:    "INIT_INCREMENT",
		},
		{
			name:   "unparsable begin",
			values: map[string]any{"LOOP_BY": "INIT", "INIT_TIME_FMT": "%Y%m%d%H", "INIT_BEG": "yesterday"},
			key:    "INIT_BEG",
		},
		{
			name:   "missing begin",
			values: map[string]any{"LOOP_BY": "INIT", "INIT_TIME_FMT": "%Y%m%d%H"},
			key:    "INIT_BEG",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := New(newStore(t, tt.values), "")
			item, ok := g.Next()
			if !ok {
				t.Fatal("Next() = exhausted, want one error item")
			}
			var cfgErr *config.Error
			if !errors.As(item.Err, &cfgErr) || cfgErr.Key != tt.key {
				t.Errorf("error = %v, want a config error for %s", item.Err, tt.key)
			}
			if item, ok := g.Next(); ok {
				t.Errorf("Next() after a fatal error = %+v, want exhausted", item)
			}
		})
	}
}

func TestGenerator_ResetAndStamps(t *testing.T) {
	t.Parallel()

	g := New(newStore(t, map[string]any{
		"LOOP_BY": "INIT", "INIT_TIME_FMT": "%Y%m%d%H",
		"INIT_BEG": "2021020100", "INIT_END": "2021020106", "INIT_INCREMENT": "21600",
	}), "mymodel")
	defer g.Close()

	first := collect(g)
	g.Reset()
	if diff := cmp.Diff(first, collect(g)); diff != "" {
		t.Errorf("sequence differs after Reset (-first +second):\n%s", diff)
	}

	g.Reset()
	item, _ := g.Next()
	if item.Input.Custom != "mymodel" || item.Input.Today != "20240501" || item.Input.Now.Hour() != 12 {
		t.Errorf("stamps = custom %q today %q now %v", item.Input.Custom, item.Input.Today, item.Input.Now)
	}
	if item.Input.Valid.IsSet() {
		t.Error("valid should be left for Calculate when looping by init")
	}
}

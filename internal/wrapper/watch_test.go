package wrapper

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/papapumpkin/metwrap/internal/config"
)

func TestSplitStatic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dir             string
		static, dynamic string
	}{
		{"/data/gfs", "/data/gfs", ""},
		{"/data/gfs/", "/data/gfs", ""},
		{"/data/{init?fmt=%Y%m%d}/grib", "/data", "{init?fmt=%Y%m%d}/grib"},
		{"/{init?fmt=%Y}", "/", "{init?fmt=%Y}"},
		{"relative/dir", "relative/dir", ""},
	}
	for _, tt := range tests {
		static, dynamic := splitStatic(tt.dir)
		if static != tt.static || dynamic != tt.dynamic {
			t.Errorf("splitStatic(%q) = %q, %q; want %q, %q", tt.dir, static, dynamic, tt.static, tt.dynamic)
		}
	}
}

func TestWatchTemplates(t *testing.T) {
	t.Parallel()

	cfg, err := config.FromMap(map[string]map[string]any{
		config.SectionConfig: {
			"GRID_STAT_INPUT_DIR":      "/data/{init?fmt=%Y%m%d}",
			"GRID_STAT_INPUT_TEMPLATE": "gfs.t{init?fmt=%H}z.f{lead?fmt=%3H}, obs/{valid?fmt=%Y%m%d%H}.nc",
		},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}

	root, templates, err := New("grid_stat", cfg, Deps{}).WatchTemplates()
	if err != nil {
		t.Fatalf("WatchTemplates: %v", err)
	}
	if root != filepath.FromSlash("/data") {
		t.Errorf("root = %q, want /data", root)
	}
	want := []string{
		"{init?fmt=%Y%m%d}/gfs.t{init?fmt=%H}z.f{lead?fmt=%3H}",
		"{init?fmt=%Y%m%d}/obs/{valid?fmt=%Y%m%d%H}.nc",
	}
	if diff := cmp.Diff(want, templates); diff != "" {
		t.Errorf("templates mismatch (-want +got):\n%s", diff)
	}
}

func TestWatchTemplates_NoInputDir(t *testing.T) {
	t.Parallel()

	cfg, err := config.FromMap(map[string]map[string]any{
		config.SectionConfig: {"GRID_STAT_INPUT_TEMPLATE": "a.nc"},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	_, _, err = New("grid_stat", cfg, Deps{}).WatchTemplates()
	if !errors.Is(err, config.ErrInvalid) {
		t.Errorf("error = %v, want ErrInvalid", err)
	}
}

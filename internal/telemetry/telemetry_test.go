package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var out []Event
	err = Decode(f, func(evt *Event, raw string) {
		if evt == nil {
			t.Fatalf("invalid JSON line: %s", raw)
		}
		out = append(out, *evt)
	})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return out
}

func TestNewEmitter_CreatesFileAndDirectory(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "telemetry", "events.jsonl")

	em, err := NewEmitter(path)
	if err != nil {
		t.Fatalf("NewEmitter(%q): %v", path, err)
	}
	defer em.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist at %q: %v", path, err)
	}
}

func TestNewEmitter_ErrorOnBadPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewEmitter(filepath.Join(blocker, "events.jsonl"))
	if err == nil {
		t.Fatal("expected error for bad path, got nil")
	}
	if !strings.Contains(err.Error(), "telemetry: open") {
		t.Errorf("expected wrapped error, got: %v", err)
	}
}

func TestEmit_WritesValidJSONL(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "events.jsonl")

	em, err := NewEmitter(path)
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}

	events := []Event{
		{Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Kind: KindRunStart, RunID: "r1", App: "grid_stat"},
		{Timestamp: time.Date(2025, 1, 1, 0, 1, 0, 0, time.UTC), Kind: KindCommandDone, RunID: "r1", App: "grid_stat", Data: map[string]string{"init": "2025010100"}},
		{Kind: KindRunDone, RunID: "r1"},
	}
	for _, evt := range events {
		if err := em.Emit(evt); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}
	if err := em.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	decoded := readEvents(t, path)
	if len(decoded) != len(events) {
		t.Fatalf("expected %d events, got %d", len(events), len(decoded))
	}
	for i, got := range decoded {
		if got.Kind != events[i].Kind || got.RunID != events[i].RunID || got.App != events[i].App {
			t.Errorf("event %d = %+v, want %+v", i, got, events[i])
		}
	}
	if decoded[2].Timestamp.IsZero() {
		t.Error("Emit should stamp events without a timestamp")
	}
}

func TestEmit_ConcurrentSafety(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "concurrent.jsonl")

	em, err := NewEmitter(path)
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := range n {
		go func(idx int) {
			defer wg.Done()
			if err := em.Emit(Event{Kind: KindCommandStart, Data: map[string]int{"idx": idx}}); err != nil {
				t.Errorf("Emit from goroutine %d: %v", idx, err)
			}
		}(i)
	}
	wg.Wait()

	if err := em.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := len(readEvents(t, path)); got != n {
		t.Fatalf("expected %d events, got %d", n, got)
	}
}

func TestNilEmitter_NoOp(t *testing.T) {
	t.Parallel()
	var em *Emitter

	if err := em.Emit(Event{Kind: KindRunStart}); err != nil {
		t.Errorf("nil Emit: %v", err)
	}
	if err := em.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}

func TestEmit_AppendsToExistingFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "append.jsonl")

	for _, kind := range []string{KindRunStart, KindRunDone} {
		em, err := NewEmitter(path)
		if err != nil {
			t.Fatalf("NewEmitter: %v", err)
		}
		if err := em.Emit(Event{Kind: kind}); err != nil {
			t.Fatalf("Emit: %v", err)
		}
		em.Close()
	}

	if got := len(readEvents(t, path)); got != 2 {
		t.Fatalf("expected 2 events, got %d", got)
	}
}

func TestDecode_ReportsBadLines(t *testing.T) {
	t.Parallel()
	input := `{"ts":"2025-01-01T00:00:00Z","kind":"run_start"}` + "\n\nnot json\n"

	var good, bad int
	err := Decode(strings.NewReader(input), func(evt *Event, raw string) {
		if evt == nil {
			bad++
			if raw != "not json" {
				t.Errorf("raw = %q", raw)
			}
			return
		}
		good++
	})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if good != 1 || bad != 1 {
		t.Errorf("good=%d bad=%d, want 1 and 1", good, bad)
	}
}

func TestEventKinds_AreDistinct(t *testing.T) {
	t.Parallel()
	kinds := []string{
		KindRunStart, KindRunDone,
		KindCommandStart, KindCommandDone, KindCommandFailed, KindCommandSkipped,
		KindConfigError, KindInputArrived,
	}
	seen := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		if k == "" {
			t.Errorf("empty kind constant found")
		}
		if seen[k] {
			t.Errorf("duplicate kind: %q", k)
		}
		seen[k] = true
	}
}

func TestEvent_OmitsEmptyFields(t *testing.T) {
	t.Parallel()
	data, err := json.Marshal(Event{Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Kind: KindRunStart})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, field := range []string{`"run"`, `"app"`, `"data"`} {
		if strings.Contains(string(data), field) {
			t.Errorf("expected %s to be omitted, got: %s", field, data)
		}
	}
}

func TestNewRunID(t *testing.T) {
	t.Parallel()
	a, b := NewRunID(), NewRunID()
	if a == b {
		t.Error("run IDs should be unique")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("NewRunID() = %q is not a UUID: %v", a, err)
	}
}

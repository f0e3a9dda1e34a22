// Package telemetry provides a JSONL event stream for auditing metwrap runs.
// Each run start and finish, every MET command launched or skipped, and every
// input file the watcher sees is recorded as one JSON object per line.
package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event kinds identify the type of telemetry event.
const (
	KindRunStart       = "run_start"
	KindRunDone        = "run_done"
	KindCommandStart   = "command_start"
	KindCommandDone    = "command_done"
	KindCommandFailed  = "command_failed"
	KindCommandSkipped = "command_skipped"
	KindConfigError    = "config_error"
	KindInputArrived   = "input_arrived"
)

// Event is a single telemetry record.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	RunID     string    `json:"run,omitempty"`
	App       string    `json:"app,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// NewRunID returns a fresh identifier for one invocation of the wrapper.
func NewRunID() string {
	return uuid.NewString()
}

// Emitter writes telemetry events to a JSONL file. It is safe for concurrent
// use by multiple goroutines. A nil *Emitter is a valid no-op emitter.
type Emitter struct {
	file *os.File
	enc  *json.Encoder
	mu   sync.Mutex
}

// NewEmitter creates an Emitter appending to the file at path, creating the
// file and its directory when missing.
func NewEmitter(path string) (*Emitter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	return &Emitter{
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

// Emit writes a single event. A zero Timestamp is set to the current time.
// Calling Emit on a nil Emitter is a no-op.
func (e *Emitter) Emit(evt Event) error {
	if e == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(evt); err != nil {
		return fmt.Errorf("telemetry: encode event: %w", err)
	}
	return nil
}

// Close closes the underlying file. Calling Close on a nil Emitter is a
// no-op.
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.file.Close(); err != nil {
		return fmt.Errorf("telemetry: close: %w", err)
	}
	return nil
}

// Decode reads JSONL events from r, calling fn for each. A line that is not a
// valid event is passed to fn with a nil event and the raw line.
func Decode(r io.Reader, fn func(evt *Event, raw string)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var evt Event
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			fn(nil, line)
			continue
		}
		fn(&evt, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("telemetry: read: %w", err)
	}
	return nil
}

package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/papapumpkin/metwrap/internal/config"
	"github.com/papapumpkin/metwrap/internal/telemetry"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "View the JSONL run events",
	Long: `Reads and formats the JSONL event file written when telemetry_path is set.

With --follow (-f), watches the file for new events (like tail -f).`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().String("file", "", "event file to read (default: telemetry_path setting)")
	eventsCmd.Flags().String("run", "", "only show events of this run ID")
	eventsCmd.Flags().BoolP("follow", "f", false, "follow the file for new events")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")
	runID, _ := cmd.Flags().GetString("run")
	follow, _ := cmd.Flags().GetBool("follow")

	if path == "" {
		app, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		path = app.TelemetryPath
	}
	if path == "" {
		return fmt.Errorf("events: no event file; set telemetry_path or pass --file")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("events: open %s: %w", path, err)
	}
	defer f.Close()

	out := cmd.OutOrStdout()
	show := func(evt *telemetry.Event, raw string) {
		printEvent(out, evt, raw, runID)
	}
	if err := telemetry.Decode(f, show); err != nil {
		return err
	}

	if !follow {
		return nil
	}
	return tailFollow(f, path, show)
}

// tailFollow watches the file for new data using fsnotify and prints new events.
func tailFollow(f *os.File, path string, show func(*telemetry.Event, string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("events: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("events: watch %s: %w", path, err)
	}

	reader := bufio.NewReader(f)
	for event := range watcher.Events {
		if event.Op&fsnotify.Write == 0 {
			continue
		}
		// Read all new lines available.
		for {
			line, err := reader.ReadString('\n')
			if line = strings.TrimSpace(line); line != "" {
				if err := telemetry.Decode(strings.NewReader(line), show); err != nil {
					return err
				}
			}
			if err != nil {
				break
			}
		}
	}
	return nil
}

// printEvent prints a human-readable representation of one event. Lines that
// are not events are printed raw behind a marker.
func printEvent(w io.Writer, evt *telemetry.Event, raw, runID string) {
	if evt == nil {
		fmt.Fprintf(w, "??? %s\n", raw)
		return
	}
	if runID != "" && evt.RunID != runID {
		return
	}

	parts := []string{
		fmt.Sprintf("[%s]", evt.Timestamp.Local().Format(time.DateTime)),
		evt.Kind,
	}
	if evt.App != "" {
		parts = append(parts, fmt.Sprintf("app=%s", evt.App))
	}
	if evt.RunID != "" {
		parts = append(parts, fmt.Sprintf("run=%s", evt.RunID))
	}
	if evt.Data != nil {
		if m, ok := evt.Data.(map[string]any); ok {
			parts = append(parts, formatDataMap(m))
		} else {
			data, _ := json.Marshal(evt.Data)
			parts = append(parts, string(data))
		}
	}

	fmt.Fprintln(w, strings.Join(parts, " "))
}

// formatDataMap formats a data map as key=value pairs sorted by key.
func formatDataMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", k, m[k])
	}
	return b.String()
}

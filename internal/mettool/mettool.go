// Package mettool runs MET executables as child processes.
package mettool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrEmptyTool is returned when a Command names no executable.
var ErrEmptyTool = errors.New("mettool: no tool named")

// Command is one invocation of a MET executable.
type Command struct {
	Tool string            `json:"tool" toml:"tool" yaml:"tool"`
	Args []string          `json:"args,omitempty" toml:"args,omitempty" yaml:"args,omitempty"`
	Env  map[string]string `json:"env,omitempty" toml:"env,omitempty" yaml:"env,omitempty"`
	Dir  string            `json:"dir,omitempty" toml:"dir,omitempty" yaml:"dir,omitempty"`
}

// String renders the command line with arguments quoted where needed.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Tool))
	for _, a := range c.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$*?;&|<>()") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Invoker locates and runs MET tools. BinDir, when set, is searched instead
// of PATH.
type Invoker struct {
	BinDir  string
	Verbose bool
	Logger  *zerolog.Logger
}

// Path returns the executable path for tool.
func (inv *Invoker) Path(tool string) string {
	if inv.BinDir == "" || filepath.IsAbs(tool) {
		return tool
	}
	return filepath.Join(inv.BinDir, tool)
}

// buildEnv overlays extra onto base, replacing variables base already sets.
// Added variables are appended in key order so the result is stable.
func buildEnv(base []string, extra map[string]string) []string {
	env := make([]string, 0, len(base)+len(extra))
	for _, e := range base {
		name, _, _ := strings.Cut(e, "=")
		if _, ok := extra[name]; ok {
			continue
		}
		env = append(env, e)
	}
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// Invoke runs c and waits for it to exit. A non-zero exit returns the
// captured output along with an error carrying stderr.
func (inv *Invoker) Invoke(ctx context.Context, c Command) (Result, error) {
	if c.Tool == "" {
		return Result{}, ErrEmptyTool
	}
	path := inv.Path(c.Tool)

	cmd := exec.CommandContext(ctx, path, c.Args...)
	cmd.Dir = c.Dir
	cmd.SysProcAttr = sessionAttr()
	cmd.Env = buildEnv(os.Environ(), c.Env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if inv.Verbose {
		inv.logger().Info().Str("tool", c.Tool).Msgf("running: %s", c)
	}

	start := time.Now()
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String(), Duration: time.Since(start)}
	if err != nil {
		return res, fmt.Errorf("%s failed: %w\nstderr: %s", c.Tool, err, strings.TrimSpace(res.Stderr))
	}
	return res, nil
}

// Validate checks that tool resolves to an executable and returns its path.
func (inv *Invoker) Validate(tool string) (string, error) {
	path, err := exec.LookPath(inv.Path(tool))
	if err != nil {
		return "", fmt.Errorf("%s not found (MET_BIN_DIR %q): %w", tool, inv.BinDir, err)
	}
	if inv.Verbose {
		inv.logger().Debug().Str("tool", tool).Str("path", path).Msg("found executable")
	}
	return path, nil
}

func (inv *Invoker) logger() *zerolog.Logger {
	if inv.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return inv.Logger
}

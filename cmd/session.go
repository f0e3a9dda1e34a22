package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/papapumpkin/metwrap/internal/config"
	"github.com/papapumpkin/metwrap/internal/ledger"
	"github.com/papapumpkin/metwrap/internal/mettool"
	"github.com/papapumpkin/metwrap/internal/telemetry"
	"github.com/papapumpkin/metwrap/internal/ui"
	"github.com/papapumpkin/metwrap/internal/wrapper"
)

// session bundles what every command needs: application settings, the MET
// run settings, a logger and a printer.
type session struct {
	app     config.Config
	store   *config.Store
	logger  zerolog.Logger
	printer *ui.Printer
}

func newSession(cmd *cobra.Command) (*session, error) {
	app, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(app)

	paths, _ := cmd.Flags().GetStringSlice("conf")
	overrides, _ := cmd.Flags().GetStringArray("set")
	store, err := config.Read(paths, overrides, logger)
	if err != nil {
		return nil, err
	}
	return &session{app: app, store: store, logger: logger, printer: ui.New()}, nil
}

// newLogger builds a console logger on stderr at the configured level.
// Verbose forces debug.
func newLogger(app config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(app.LogLevel))
	if err != nil || app.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	if app.Verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// binDir returns the MET executable directory: the metwrap setting wins over
// MET_BIN_DIR in the run configuration.
func (s *session) binDir() string {
	if s.app.MetBinDir != "" {
		return s.app.MetBinDir
	}
	return wrapper.BinDir(s.store)
}

func (s *session) invoker() *mettool.Invoker {
	return &mettool.Invoker{BinDir: s.binDir(), Verbose: s.app.Verbose, Logger: &s.logger}
}

// deps opens the ledger and telemetry stream for a real run. The returned
// function closes them.
func (s *session) deps(ctx context.Context) (wrapper.Deps, func(), error) {
	l, err := ledger.Open(ctx, s.app.LedgerPath)
	if err != nil {
		return wrapper.Deps{}, nil, fmt.Errorf("opening ledger: %w", err)
	}
	var emitter *telemetry.Emitter
	if s.app.TelemetryPath != "" {
		emitter, err = telemetry.NewEmitter(s.app.TelemetryPath)
		if err != nil {
			l.Close()
			return wrapper.Deps{}, nil, fmt.Errorf("opening telemetry: %w", err)
		}
	}
	closeAll := func() {
		if err := emitter.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("closing telemetry")
		}
		if err := l.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("closing ledger")
		}
	}
	return wrapper.Deps{Invoker: s.invoker(), Ledger: l, Emitter: emitter}, closeAll, nil
}

// setupSignalContext returns a context that is canceled on SIGINT or SIGTERM.
func setupSignalContext(printer *ui.Printer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			printer.Info("\nshutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

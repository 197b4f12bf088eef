package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/vigil/internal/audio"
	"github.com/sandeepkv93/vigil/internal/clock"
	"github.com/sandeepkv93/vigil/internal/config"
	"github.com/sandeepkv93/vigil/internal/logging"
	"github.com/sandeepkv93/vigil/internal/relay"
	"github.com/sandeepkv93/vigil/internal/scheduler"
	"github.com/sandeepkv93/vigil/internal/storage"
	"github.com/sandeepkv93/vigil/internal/store"
	"github.com/sandeepkv93/vigil/internal/tones"
)

// env is the per-invocation wiring shared by subcommands.
type env struct {
	cfg    config.Config
	logger *slog.Logger
	clock  clock.Clock
	repo   *storage.SQLiteRepository
	store  *store.AlarmStore
	tones  *tones.Library

	logFile *os.File
}

// openEnv loads config, builds the logger and opens the database. Logs go
// to cfg.Log.File when logToFile is set so a terminal UI keeps stdout.
func openEnv(cmd *cobra.Command, opts *RootOptions, logToFile bool) (*env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, clock: clock.Real{}}
	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	var w io.Writer = cmd.ErrOrStderr()
	if logToFile && cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		e.logFile = f
		w = f
	}
	e.logger = logging.New(level, cfg.App.Env, w)

	repo, err := storage.OpenSQLite(cfg.Storage.Path)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	e.repo = repo
	e.store = store.New(repo, e.clock, e.logger)
	e.tones = tones.NewLibrary(repo, e.clock, e.logger)
	return e, nil
}

func (e *env) Close() {
	if e.repo != nil {
		if err := e.repo.Close(); err != nil {
			e.logger.Warn("close database", logging.Err(err))
		}
	}
	if e.logFile != nil {
		_ = e.logFile.Close()
	}
}

// engine opens the audio engine. When audio is disabled or no device is
// available the engine stays closed, so rings proceed silently.
func (e *env) engine(cmd *cobra.Command) *audio.Engine {
	a := e.cfg.Audio
	eng := audio.NewEngine(
		audio.NewOtoOutput(a.SampleRate),
		audio.NewTerminalHaptics(cmd.ErrOrStderr()),
		e.clock,
		audio.Options{Gap: a.Gap, RampStep: a.RampStep, HapticInterval: a.HapticInterval},
		e.logger,
	)
	if !a.Enabled {
		e.logger.Info("audio disabled by config")
		return eng
	}
	if err := eng.Open(cmd.Context()); err != nil {
		e.logger.Warn("audio device unavailable; alarms will ring silently", logging.Err(err))
	}
	return eng
}

func (e *env) scheduler(alerter scheduler.Alerter) *scheduler.Scheduler {
	s := e.cfg.Scheduler
	return scheduler.New(e.store, e.repo, alerter, e.clock, scheduler.Options{
		ContextID:    e.cfg.App.ContextID,
		PollInterval: s.PollInterval,
		Tolerance:    s.Tolerance,
		EventBuffer:  s.EventBuffer,
		ClaimTTL:     s.ClaimTTL,
		Mailbox:      e.cfg.Relay.Mailbox,
	}, e.logger)
}

func (e *env) relay(notifier relay.Notifier) *relay.Relay {
	r := e.cfg.Relay
	return relay.New(relay.NewStoreSource(e.repo, e.store), notifier, e.clock, relay.Options{
		ContextID:    e.cfg.App.ContextID + "-relay",
		WakeInterval: r.WakeInterval,
		Tolerance:    e.cfg.Scheduler.Tolerance,
		Mailbox:      r.Mailbox,
	}, e.logger)
}

package cli

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sandeepkv93/vigil/internal/logging"
	"github.com/sandeepkv93/vigil/internal/relay"
	"github.com/sandeepkv93/vigil/internal/tones"
	"github.com/sandeepkv93/vigil/internal/update"
)

// NewRunCommand creates the interactive clock command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var headless bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the alarm clock",
		Long: `Run the scheduler, the notification relay and the terminal UI in one
process. With --headless the UI is skipped and alarms ring until the process
is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClock(cmd, rootOpts, headless)
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "run without the terminal UI")
	return cmd
}

func runClock(cmd *cobra.Command, opts *RootOptions, headless bool) error {
	e, err := openEnv(cmd, opts, !headless)
	if err != nil {
		return err
	}
	defer e.Close()

	engine := e.engine(cmd)
	defer func() {
		if err := engine.Close(); err != nil {
			e.logger.Warn("close audio engine", logging.Err(err))
		}
	}()

	sched := e.scheduler(tones.NewRinger(e.tones, engine))
	var notifier relay.Notifier = relay.NoopNotifier{}
	if e.cfg.Relay.DesktopNotifications {
		notifier = relay.NewExecNotifier()
	}
	rel := e.relay(notifier)
	if e.cfg.Relay.Enabled {
		sched.AttachRelay(rel.Inbox())
		rel.AttachPrimary(sched.Inbox())
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return sched.Run(gctx) })
	if e.cfg.Relay.Enabled {
		g.Go(func() error { return rel.Run(gctx) })
	}
	e.logger.Info("vigil started", "context_id", sched.ContextID(), "db", e.cfg.Storage.Path, "headless", headless)

	if !headless {
		g.Go(func() error {
			defer cancel()
			model := update.NewModel(gctx, e.store, sched, e.clock, e.logger)
			_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx)).Run()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		})
	}

	err = g.Wait()
	e.logger.Info("vigil stopped")
	return err
}

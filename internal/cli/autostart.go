package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/vigil/internal/logging"
	"github.com/sandeepkv93/vigil/internal/platform"
)

// NewAutostartCommand manages the login entry that starts the relay.
func NewAutostartCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "autostart enable|disable|status",
		Short:     "Start the notification relay at login",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"enable", "disable", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			level := "info"
			if rootOpts.Verbose {
				level = "debug"
			}
			logger := logging.New(level, logging.EnvLocal, cmd.ErrOrStderr())
			a, err := platform.NewAutostart(rootOpts.ConfigPath, logger)
			if err != nil {
				return err
			}
			return runAutostart(cmd, a, args[0])
		},
	}
	return cmd
}

type autostarter interface {
	IsEnabled() bool
	Enable() error
	Disable() error
}

func runAutostart(cmd *cobra.Command, a autostarter, action string) error {
	out := cmd.OutOrStdout()
	switch action {
	case "enable":
		if err := a.Enable(); err != nil {
			return err
		}
		fmt.Fprintln(out, "autostart enabled")
	case "disable":
		if err := a.Disable(); err != nil {
			return err
		}
		fmt.Fprintln(out, "autostart disabled")
	case "status":
		if a.IsEnabled() {
			fmt.Fprintln(out, "autostart enabled")
		} else {
			fmt.Fprintln(out, "autostart disabled")
		}
	default:
		return fmt.Errorf("unknown autostart action %q (want enable, disable or status)", action)
	}
	return nil
}

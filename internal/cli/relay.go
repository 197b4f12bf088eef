package cli

import (
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/vigil/internal/relay"
)

// NewRelayCommand creates the standalone notification relay command.
func NewRelayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Notify due alarms while the clock is closed",
		Long: `Watch the alarm database and raise a desktop notification for every due
instant no clock has claimed. Opening a notification does not ring the alarm;
start "vigil run" to hear it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			rel := e.relay(relay.NewExecNotifier())
			e.logger.Info("relay started", "db", e.cfg.Storage.Path, "wake_interval", e.cfg.Relay.WakeInterval)
			return rel.Run(cmd.Context())
		},
	}
}

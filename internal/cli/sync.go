package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/vigil/internal/store"
)

// NewSyncCommand merges alarms with a shared directory.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	var dir, user string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Merge alarms with a shared directory",
		Long: `Pull the remote copy for the sync user, import alarms that exist only
remotely, then push the merged set. The local copy wins when an alarm exists
on both sides.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			if dir == "" {
				dir = e.cfg.Sync.Dir
			}
			if user == "" {
				user = e.cfg.Sync.User
			}
			if dir == "" {
				return errors.New("sync directory not configured (use --dir or sync.dir)")
			}

			syncer := store.NewSyncer(e.store, store.FileRemote{Dir: dir, Clock: e.clock}, store.StaticIdentity(user), e.logger)
			report, err := syncer.Sync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pulled %d, imported %d, skipped %d, pushed %d\n",
				report.Pulled, report.Imported, report.Skipped, report.Pushed)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "shared directory (default sync.dir)")
	cmd.Flags().StringVar(&user, "user", "", "sync user (default sync.user)")
	return cmd
}

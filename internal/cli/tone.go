package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/vigil/internal/logging"
	"github.com/sandeepkv93/vigil/internal/model"
)

// NewToneCommand groups the tone library subcommands.
func NewToneCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tone",
		Short: "Manage alarm tones",
	}
	cmd.AddCommand(newToneImportCommand(rootOpts))
	cmd.AddCommand(newToneListCommand(rootOpts))
	cmd.AddCommand(newTonePlayCommand(rootOpts))
	cmd.AddCommand(newToneDeleteCommand(rootOpts))
	return cmd
}

func newToneImportCommand(rootOpts *RootOptions) *cobra.Command {
	var name, mimeType string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Store an audio file as a custom tone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if mimeType == "" {
				mimeType = model.MIMEForFile(path)
			}
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}
			payload, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read tone: %w", err)
			}
			e, err := openEnv(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			id, err := e.tones.Upload(cmd.Context(), name, mimeType, payload)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s as %s\n", name, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (default file name)")
	cmd.Flags().StringVar(&mimeType, "mime", "", "media type (default from extension)")
	return cmd
}

func newToneListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in and custom tones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			list, err := e.tones.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tKIND\tSIZE")
			for _, t := range list {
				kind, size := "built-in", "-"
				if !t.Builtin {
					kind, size = t.MIME, fmt.Sprintf("%d", t.Size)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.Name, kind, size)
			}
			return tw.Flush()
		},
	}
}

func newTonePlayCommand(rootOpts *RootOptions) *cobra.Command {
	var seconds, volume, fade int
	cmd := &cobra.Command{
		Use:   "play <id>",
		Short: "Preview a tone through the audio engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			if !e.tones.Exists(cmd.Context(), args[0]) {
				return fmt.Errorf("unknown tone %q", args[0])
			}
			engine := e.engine(cmd)
			defer func() {
				if err := engine.Close(); err != nil {
					e.logger.Warn("close audio engine", logging.Err(err))
				}
			}()

			src := e.tones.Resolve(cmd.Context(), args[0])
			if err := engine.Play(src, volume, false, time.Duration(fade)*time.Second); err != nil {
				return err
			}
			select {
			case <-time.After(time.Duration(seconds) * time.Second):
			case <-cmd.Context().Done():
			}
			engine.Stop()
			return nil
		},
	}
	cmd.Flags().IntVar(&seconds, "seconds", 5, "preview length")
	cmd.Flags().IntVar(&volume, "volume", model.DefaultVolume, "volume 0-100")
	cmd.Flags().IntVar(&fade, "fade", 0, "fade-in seconds")
	return cmd
}

func newToneDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a custom tone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.tones.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted tone %s\n", args[0])
			return nil
		},
	}
}

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/vigil/internal/export"
)

// NewExportCommand writes alarm definitions as YAML or iCalendar.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export alarms as YAML or iCalendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			e, err := openEnv(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer file.Close()
				w = file
			}

			alarms := e.store.GetAll(cmd.Context())
			now := e.clock.Now()
			switch f {
			case export.FormatICS:
				err = export.WriteICS(w, alarms, now)
			default:
				err = export.WriteYAML(w, alarms, now)
			}
			if err != nil {
				return err
			}
			e.logger.Debug("alarms exported", "format", f, "count", len(alarms))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format (yaml|ics)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

// NewImportCommand loads alarm definitions from a YAML export.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import alarms from a YAML export",
		Long: `Import alarms from a YAML export. Alarms keep their ids, so importing the
same file twice replaces rather than duplicates.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open import file: %w", err)
			}
			defer file.Close()

			e, err := openEnv(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			alarms, err := export.ReadYAML(file, e.clock.Now())
			if err != nil {
				return err
			}
			for _, a := range alarms {
				if err := e.store.Import(cmd.Context(), a); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d alarms\n", len(alarms))
			return nil
		},
	}
}

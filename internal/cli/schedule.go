package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"dial-a-ride/internal/report"
	"dial-a-ride/internal/trips"
)

func newScheduleCmd(load loader) *cobra.Command {
	var (
		format string
		output string
		noSave bool
	)

	cmd := &cobra.Command{
		Use:   "schedule TRIPS_FILE",
		Short: "Schedule the trips in a CSV, JSON or YAML file and print the routes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}

			list, err := trips.LoadFile(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			d, err := buildDeps(ctx, cfg)
			if err != nil {
				return err
			}
			defer d.Close()
			if noSave {
				d.planner.Runs = nil
			}

			rep, err := d.planner.Plan(ctx, list, cfg.Options())
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer file.Close()
				w = file
			}
			return report.Write(w, rep, f)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "report format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the report to a file instead of stdout")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run in the database")
	return cmd
}

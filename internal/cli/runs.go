package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dial-a-ride/internal/report"
)

func newRunsCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored scheduling runs",
	}
	cmd.AddCommand(newRunsListCmd(load))
	cmd.AddCommand(newRunsShowCmd(load))
	return cmd
}

func newRunsListCmd(load loader) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errNoDatabase
			}
			d, err := buildDeps(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			runs, err := d.store.Runs().List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tVEHICLES\tTRIPS\tCOMMITTED\tREJECTED\tRIDE RATIO")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%.2f\n",
					r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Vehicles,
					r.Summary.TotalTrips, r.Summary.CommittedTrips, r.Summary.RejectedTrips, r.Summary.MeanRideRatio)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to list")
	return cmd
}

func newRunsShowCmd(load loader) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Print a stored run's report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errNoDatabase
			}
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			d, err := buildDeps(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			rep, err := d.store.Runs().Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to load run %s: %w", args[0], err)
			}
			return report.Write(cmd.OutOrStdout(), rep, f)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "report format: json or yaml")
	return cmd
}

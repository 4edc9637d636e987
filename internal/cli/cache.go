package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dial-a-ride/internal/trips"
)

var errNoDatabase = errors.New("no database configured, set --database-url")

func newCacheCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the persistent travel time store",
	}
	cmd.AddCommand(newCacheWarmCmd(load))
	cmd.AddCommand(newCacheStatsCmd(load))
	cmd.AddCommand(newCacheClearCmd(load))
	return cmd
}

func newCacheWarmCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "warm TRIPS_FILE",
		Short: "Fetch every travel time the trips need into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errNoDatabase
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

			start := time.Now()
			if err := d.planner.Prepare(ctx, list); err != nil {
				return err
			}
			if _, err := d.planner.BuildTable(ctx, list, cfg.Options().Workers); err != nil {
				return err
			}

			n, err := d.store.TravelTimes().Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "warmed %d trips in %s, store holds %d pairs\n",
				len(list), time.Since(start).Round(time.Millisecond), n)
			return nil
		},
	}
}

func newCacheStatsCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the number of stored travel times",
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

			n, err := d.store.TravelTimes().Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d travel times stored (%s)\n", n, d.store.Dialect())
			return nil
		},
	}
}

func newCacheClearCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored travel time",
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

			if err := d.store.TravelTimes().Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "travel time store cleared")
			return nil
		},
	}
}

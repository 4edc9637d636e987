package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dial-a-ride/internal/config"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

// NewRootCmd builds the darp command tree
func NewRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "darp",
		Short:         "Dial-a-ride scheduler that inserts trips into vehicle routes one at a time",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "path to a YAML config file")
	pf.Int("vehicles", 0, "number of vehicles in the fleet")
	pf.Int("capacity", 0, "seats per vehicle")
	pf.Float64("pickup-window", 0, "minutes a pickup may slip past its desired time")
	pf.Float64("max-travel-coeff", 0, "maximum ride time as a multiple of the direct duration")
	pf.Float64("handling-minutes", 0, "minutes spent at each stop")
	pf.Bool("soft-constraints", false, "accept every insertion regardless of constraints")
	pf.Bool("strict-commit-times", true, "reject insertions that move committed stops")
	pf.Bool("favor-busy-vehicles", false, "prefer vehicles that already carry trips")
	pf.Bool("minimize-mileage", false, "add mileage to the objective")
	pf.Int("workers", 0, "concurrent vehicle searches (0 = number of CPUs)")
	pf.Duration("evaluation-timeout", 0, "time limit for evaluating one trip")
	pf.String("operating-start", "", "fleet operating start (HH:MM)")
	pf.String("operating-end", "", "fleet operating end (HH:MM)")
	pf.String("osrm-url", "", "OSRM server base URL")
	pf.Float64("osrm-rate", 0, "maximum OSRM requests per second")
	pf.String("nominatim-url", "", "Nominatim server base URL, empty disables geocoding")
	pf.String("database-url", "", "SQLite path or postgres:// URL, empty disables storage")
	pf.String("redis-url", "", "redis:// URL for assignment events")

	load := func(cmd *cobra.Command) (*config.Config, error) {
		return config.Load(configFile, cmd.Flags())
	}

	root.AddCommand(newScheduleCmd(load))
	root.AddCommand(newServeCmd(load))
	root.AddCommand(newCacheCmd(load))
	root.AddCommand(newRunsCmd(load))
	root.AddCommand(newVersionCmd())

	return root
}

// loader reads configuration for a command
type loader func(cmd *cobra.Command) (*config.Config, error)

// Execute runs the root command and exits on error
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "darp %s (commit=%s, built=%s)\n", Version, CommitSHA, BuildDate)
		},
	}
}

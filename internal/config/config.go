package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"dial-a-ride/internal/models"
	"dial-a-ride/internal/scheduling"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "DARP"

// Config holds every setting of the scheduler, its CLI and its server
type Config struct {
	Vehicles       int                `mapstructure:"vehicles"`
	Capacity       int                `mapstructure:"capacity"`
	PickupWindow   float64            `mapstructure:"pickup_window"`
	MaxTravelCoeff float64            `mapstructure:"max_travel_coeff"`
	Weights        scheduling.Weights `mapstructure:"weights"`

	FavorBusyVehicles bool `mapstructure:"favor_busy_vehicles"`
	MinimizeMileage   bool `mapstructure:"minimize_mileage"`
	SoftConstraints   bool `mapstructure:"soft_constraints"`
	StrictCommitTimes bool `mapstructure:"strict_commit_times"`

	OperatingStart  string  `mapstructure:"operating_start"`
	OperatingEnd    string  `mapstructure:"operating_end"`
	HandlingMinutes float64 `mapstructure:"handling_minutes"`

	WindowCost         float64 `mapstructure:"window_cost"`
	MaxTravelCostScale float64 `mapstructure:"max_travel_cost_scale"`

	Workers           int           `mapstructure:"workers"`
	EvaluationTimeout time.Duration `mapstructure:"evaluation_timeout"`

	OSRMURL      string  `mapstructure:"osrm_url"`
	OSRMRate     float64 `mapstructure:"osrm_rate"`
	NominatimURL string  `mapstructure:"nominatim_url"`

	DatabaseURL string `mapstructure:"database_url"`
	RedisURL    string `mapstructure:"redis_url"`
	ListenAddr  string `mapstructure:"listen_addr"`
}

func setDefaults(v *viper.Viper) {
	d := scheduling.DefaultOptions()

	v.SetDefault("vehicles", d.Vehicles)
	v.SetDefault("capacity", d.Capacity)
	v.SetDefault("pickup_window", d.PickupWindow)
	v.SetDefault("max_travel_coeff", d.MaxTravelCoeff)

	v.SetDefault("weights.driving", d.Weights.Driving)
	v.SetDefault("weights.wait_handling", d.Weights.WaitHandling)
	v.SetDefault("weights.wait_linear", d.Weights.WaitLinear)
	v.SetDefault("weights.wait_quadratic", d.Weights.WaitQuadratic)
	v.SetDefault("weights.deviation", d.Weights.Deviation)
	v.SetDefault("weights.capacity", d.Weights.Capacity)
	v.SetDefault("weights.utilization", d.Weights.Utilization)
	v.SetDefault("weights.route_time", d.Weights.RouteTime)

	v.SetDefault("favor_busy_vehicles", d.FavorBusyVehicles)
	v.SetDefault("minimize_mileage", d.MinimizeMileage)
	v.SetDefault("soft_constraints", d.SoftConstraints)
	v.SetDefault("strict_commit_times", d.StrictCommitTimes)

	v.SetDefault("operating_start", "00:00")
	v.SetDefault("operating_end", "24:00")
	v.SetDefault("handling_minutes", d.HandlingMinutes)

	v.SetDefault("window_cost", d.WindowCost)
	v.SetDefault("max_travel_cost_scale", d.MaxTravelCostScale)

	v.SetDefault("workers", 0)
	v.SetDefault("evaluation_timeout", d.EvaluationTimeout)

	v.SetDefault("osrm_url", "https://router.project-osrm.org")
	v.SetDefault("osrm_rate", 1.0)
	v.SetDefault("nominatim_url", "https://nominatim.openstreetmap.org")

	v.SetDefault("database_url", "darp.db")
	v.SetDefault("redis_url", "")
	v.SetDefault("listen_addr", "127.0.0.1:8080")
}

// Load reads configuration from defaults, a .env file, an optional config
// file, DARP_ environment variables and finally any changed flags.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
		log.Printf("Loaded config file: %s", v.ConfigFileUsed())
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindFlags binds every flag whose name matches a config key, with dashes
// standing in for underscores and dots
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	keys := make(map[string]string)
	for _, key := range v.AllKeys() {
		keys[strings.NewReplacer("_", "-", ".", "-").Replace(key)] = key
	}

	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := keys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

// Validate checks the configuration and the scheduling options derived from it
func (c *Config) Validate() error {
	if _, err := models.ParseClock(c.OperatingStart); err != nil {
		return fmt.Errorf("invalid operating_start: %w", err)
	}
	if _, err := models.ParseClock(c.OperatingEnd); err != nil {
		return fmt.Errorf("invalid operating_end: %w", err)
	}
	if c.Workers < 0 {
		return &scheduling.ErrInvalidOptions{Field: "workers", Reason: "must not be negative"}
	}
	if c.OSRMRate < 0 {
		return &scheduling.ErrInvalidOptions{Field: "osrm_rate", Reason: "must not be negative"}
	}
	return c.Options().Validate()
}

// Options converts the configuration into engine options
func (c *Config) Options() scheduling.Options {
	start, _ := models.ParseClock(c.OperatingStart)
	end, _ := models.ParseClock(c.OperatingEnd)

	workers := c.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	return scheduling.Options{
		Vehicles:           c.Vehicles,
		Capacity:           c.Capacity,
		PickupWindow:       c.PickupWindow,
		MaxTravelCoeff:     c.MaxTravelCoeff,
		Weights:            c.Weights,
		FavorBusyVehicles:  c.FavorBusyVehicles,
		MinimizeMileage:    c.MinimizeMileage,
		SoftConstraints:    c.SoftConstraints,
		StrictCommitTimes:  c.StrictCommitTimes,
		OperatingStart:     start,
		OperatingEnd:       end,
		HandlingMinutes:    c.HandlingMinutes,
		WindowCost:         c.WindowCost,
		MaxTravelCostScale: c.MaxTravelCostScale,
		Workers:            workers,
		EvaluationTimeout:  c.EvaluationTimeout,
	}
}

// UsesPostgres reports whether DatabaseURL points at Postgres
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// Package config holds the two configuration layers used by metwrap: the
// application settings (where the MET executables live, where run records
// are kept) and the sectioned MET run settings that describe time loops,
// lead sequences, and filename templates.
package config

import "github.com/spf13/viper"

// Config holds runtime settings for a metwrap session.
// Values are populated from .metwrap.yaml, METWRAP_* env vars, and CLI flags.
type Config struct {
	MetBinDir     string `mapstructure:"met_bin_dir"`
	LedgerPath    string `mapstructure:"ledger_path"`
	TelemetryPath string `mapstructure:"telemetry_path"`
	LogLevel      string `mapstructure:"log_level"`
	Verbose       bool   `mapstructure:"verbose"`
	DryRun        bool   `mapstructure:"dry_run"`
}

// Load reads application settings from viper, applying built-in defaults for
// any values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("met_bin_dir", "")
	viper.SetDefault("ledger_path", ".metwrap/ledger.db")
	viper.SetDefault("telemetry_path", "")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("verbose", false)
	viper.SetDefault("dry_run", false)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "metwrap",
	Short: "Time looping and filename templating for MET verification runs",
	Long: `metwrap loops a MET application over the run times and forecast leads of a
configuration, fills in filename templates for each, and runs (or plans) the
resulting commands.

MET settings are read from one or more TOML or YAML files given with --conf,
applied in order, followed by --set section.KEY=value overrides.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "metwrap settings file (default .metwrap.yaml)")
	rootCmd.PersistentFlags().StringSliceP("conf", "c", nil, "MET configuration file(s), later files override earlier ones")
	rootCmd.PersistentFlags().StringArray("set", nil, "override a MET setting as section.KEY=value (repeatable)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("met-bin-dir", "", "directory holding the MET executables")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("met_bin_dir", rootCmd.PersistentFlags().Lookup("met-bin-dir"))
}

func initConfig() {
	if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".metwrap")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("METWRAP")
	viper.AutomaticEnv()

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}

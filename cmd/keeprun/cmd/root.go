package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"keeprun/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	logJSON  bool
	logFile  string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "keeprun",
	Short: "Supervised-restart runner for batch node workloads",
	Long: `keeprun keeps a target executable running inside a batch-allocated
compute node: launch the command, wait for it to exit, log the attempt,
sleep a fixed interval, restart. Child failure is never fatal; the loop
only stops on a termination signal or an optional wall-clock budget.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.keeprun/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "supervisor log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit supervisor logs as JSON")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write supervisor logs to this file")
}

// initConfig reads in config file and KEEPRUN_* environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".keeprun"))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("KEEPRUN")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; a broken one is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}

	if viper.GetString("log_level") != "" && !rootCmd.PersistentFlags().Changed("log-level") {
		logLevel = viper.GetString("log_level")
	}
	if viper.IsSet("log_json") && !rootCmd.PersistentFlags().Changed("log-json") {
		logJSON = viper.GetBool("log_json")
	}
	if viper.GetString("log_file") != "" && !rootCmd.PersistentFlags().Changed("log-file") {
		logFile = viper.GetString("log_file")
	}
}

// newLogger builds the supervisor logger from global flags. With
// --log-file set, entries tee to the file and stderr; an unopenable
// file degrades to stderr only.
func newLogger() *logging.Logger {
	level := logging.ParseLevel(logLevel)
	if logFile != "" {
		l, err := logging.NewFileLogger(logFile, level, logJSON)
		if err == nil {
			return l
		}
		fmt.Fprintf(os.Stderr, "keeprun: %v, logging to stderr only\n", err)
	}
	return logging.New(level, logJSON)
}

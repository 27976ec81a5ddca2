package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"keeprun/internal/config"
)

var configPath string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the keeprun config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Init writes a config file pre-filled with the built-in defaults to
$HOME/.keeprun/config.yaml (or --path). Existing files are not
overwritten.`,
	RunE: runConfigInit,
}

var configCheckCmd = &cobra.Command{
	Use:   "check <path>",
	Short: "Validate a config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.Load(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s: OK\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configCheckCmd)

	configInitCmd.Flags().StringVar(&configPath, "path", "", "Where to write the config (default $HOME/.keeprun/config.yaml)")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to find home directory: %w", err)
		}
		path = filepath.Join(home, ".keeprun", "config.yaml")
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}

	defaults := config.File{
		WorkDir:  ".",
		Interval: "30s",
		Log:      "log.txt",
	}
	defaults.Backoff.Max = "10m"

	data, err := yaml.Marshal(&defaults)
	if err != nil {
		return fmt.Errorf("failed to marshal defaults: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Wrote %s\n", path)
	return nil
}

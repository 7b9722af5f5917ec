package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Write a starter .crashguard.yaml in the current directory and create
the report database directory.`,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing configuration")
}

func runInit(_ *cobra.Command, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	configPath := filepath.Join(cwd, ".crashguard.yaml")
	if initForce {
		_ = os.Remove(configPath)
	}
	if err := config.WriteDefault(configPath); err != nil {
		return err
	}

	cfg := config.Default()
	if err := os.MkdirAll(filepath.Join(cwd, cfg.Crashpad.Database), 0o750); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	fmt.Println("Initialized crashguard in", cwd)
	fmt.Println("Configuration file: .crashguard.yaml")
	return nil
}

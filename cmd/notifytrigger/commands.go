package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ajkula/notifytrigger/config"
)

func newGenerateConfigCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "generate-config",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force && fileExists(configPath) {
				return fmt.Errorf("%s already exists, use --force to overwrite", configPath)
			}
			if err := config.SaveConfig(config.DefaultConfig(), configPath); err != nil {
				return fmt.Errorf("generating config file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default configuration file generated at: %s\n", configPath)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func newCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration file and print it with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(cfg.Public())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration %s is valid\n---\n%s", configPath, out)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "notifytrigger version %s (built %s)\n", Version, BuildDate)
		},
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

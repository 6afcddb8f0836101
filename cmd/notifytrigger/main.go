package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Version is set during build
	Version = "dev"

	// BuildDate is set during build
	BuildDate = "unknown"

	configPath string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "notifytrigger",
		Short: "Runs a command for every matching file changed on a remote file server",
		Long: `notifytrigger lists the watched directories of a remote file server, then
follows its change notifications. Every file matching an interest pattern is
downloaded, handed to the trigger command and optionally deleted remotely.
Files are processed one at a time, in the order they were announced.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), configPath)
		},
	}

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
Build Date: ` + BuildDate + `
`)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to configuration file (.yaml, .yml or .toml)")

	rootCmd.AddCommand(newGenerateConfigCmd(), newCheckConfigCmd(), newVersionCmd())
	return rootCmd
}

func main() {
	// SIGINT and SIGTERM stop the pipeline cleanly, exit code 0
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

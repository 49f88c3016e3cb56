// Package main is the entry point for the linkup application.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jwulff/linkup-go/internal/config"
)

const (
	Version = "0.1.0"
	appName = "linkup"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "LibreLinkUp glucose monitor",
		Long: `linkup polls LibreLinkUp for the latest glucose reading of a shared
connection and shows it with its trend and threshold warnings.

Settings are read from a YAML file; LINKUP_REGION, LINKUP_USERNAME,
LINKUP_PASSWORD and LINKUP_CONNECTION override the file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", config.DefaultPath(), "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		watchCmd(flags),
		onceCmd(flags),
		lastCmd(flags),
		statusCmd(flags),
		connectionsCmd(flags),
		regionsCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)

	return cmd
}

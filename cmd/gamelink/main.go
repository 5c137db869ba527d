package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   string // Set via -ldflags at build time
	buildDate string // Set via -ldflags at build time
)

func init() {
	if version == "" {
		version = "dev"
	}
	if buildDate == "" {
		buildDate = "unknown"
	}
}

func main() {
	var (
		configPath string
		socketPath string
		prettyLog  bool
		simulate   bool
	)

	rootCmd := &cobra.Command{
		Use:   "gamelink",
		Short: "In-process game client control agent",
		Long: `gamelink is a control agent for a game client: it exposes a line-based
command channel on a unix socket and executes each command at a frame
boundary against the client's scripting engine and native state.`,
		Version: fmt.Sprintf("%s (built: %s)", version, buildDate),
		// Default to serve when no subcommand is provided
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, socketPath, prettyLog, simulate)
		},
	}

	// Serve flags are also available on the root command
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to gamelink.yaml config file")
	rootCmd.Flags().StringVar(&socketPath, "socket", "", "Control socket path (overrides config file)")
	rootCmd.Flags().BoolVar(&prettyLog, "pretty", false, "Use pretty-printed logs instead of JSON")
	rootCmd.Flags().BoolVar(&simulate, "simulate", false, "Run against the simulated host")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCallCmd())
	rootCmd.AddCommand(newPingCmd())
	rootCmd.AddCommand(newInitCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

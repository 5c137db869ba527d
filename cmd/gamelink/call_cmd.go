package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dorcha-inc/gamelink/internal/config"
	"github.com/dorcha-inc/gamelink/internal/core"
	"github.com/dorcha-inc/gamelink/internal/transport"
)

// newCallCmd creates a command that sends one raw command to a running agent
func newCallCmd() *cobra.Command {
	var (
		socketPath string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "call <command>",
		Short: "Send one command to a running agent",
		Long: `Send one raw command line to a running agent and print the response.

The command is sent verbatim, so the full wire grammar is available.`,
		Example: `  # Query the client clock
  gamelink call GET_TIME_MS

  # Run a script chunk
  gamelink call "EXEC_LUA:return UnitHealth('player')"

  # Cast by ability id at a target GUID
  gamelink call CAST_SPELL:1752,42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := exchange(socketPath, timeout, args[0])
			if err != nil {
				return err
			}
			core.MustFprintf(os.Stdout, "%s\n", resp)
			if strings.HasPrefix(resp, "ERROR:internal fault") {
				core.MustFprintf(os.Stderr, "%s\n", core.BugReportMessage())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", config.DefaultSocketPath(), "Control socket path")
	cmd.Flags().DurationVar(&timeout, "timeout", transport.DefaultExchangeTimeout, "Round-trip timeout")

	return cmd
}

// exchange runs one command round trip against the agent socket
func exchange(socketPath string, timeout time.Duration, command string) (string, error) {
	c, err := transport.Dial(socketPath, timeout)
	if err != nil {
		return "", fmt.Errorf("failed to connect to agent: %w", err)
	}
	defer core.LogDeferredError(c.Close)

	resp, err := c.Exchange(command)
	if err != nil {
		return "", fmt.Errorf("exchange failed: %w", err)
	}
	return resp, nil
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dorcha-inc/gamelink/internal/config"
	"github.com/dorcha-inc/gamelink/internal/core"
	"github.com/dorcha-inc/gamelink/internal/protocol"
	"github.com/dorcha-inc/gamelink/internal/transport"
)

// newPingCmd creates a liveness probe command
func newPingCmd() *cobra.Command {
	var (
		socketPath string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that an agent is listening",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := exchange(socketPath, timeout, "ping")
			if err != nil {
				return err
			}
			if resp != protocol.TagPong {
				return fmt.Errorf("unexpected response: %s", resp)
			}
			core.MustFprintf(os.Stdout, "%s\n", resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", config.DefaultSocketPath(), "Control socket path")
	cmd.Flags().DurationVar(&timeout, "timeout", transport.DefaultExchangeTimeout, "Round-trip timeout")

	return cmd
}

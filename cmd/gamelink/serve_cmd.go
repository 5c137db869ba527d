package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dorcha-inc/gamelink/internal/agent"
	"github.com/dorcha-inc/gamelink/internal/config"
	"github.com/dorcha-inc/gamelink/internal/core"
	"github.com/dorcha-inc/gamelink/internal/hostsim"
)

// newServeCmd creates the serve command
func newServeCmd() *cobra.Command {
	var (
		configPath string
		socketPath string
		prettyLog  bool
		simulate   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the control agent",
		Long: `Start the control agent. This is the default command when no subcommand
is specified.

The agent listens on a unix socket for newline-framed commands and runs
each one at a frame boundary. In simulate mode the agent drives its own
frame loop against a built-in simulated host.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, socketPath, prettyLog, simulate)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to gamelink.yaml config file")
	cmd.Flags().StringVar(&socketPath, "socket", "", "Control socket path (overrides config file)")
	cmd.Flags().BoolVar(&prettyLog, "pretty", false, "Use pretty-printed logs instead of JSON")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "Run against the simulated host")

	return cmd
}

// runServe runs the agent with the given flags
func runServe(configPath, socketPath string, prettyLog, simulate bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v", err)
		return err
	}

	if socketPath != "" {
		cfg.SocketPath = socketPath
	}
	if simulate {
		cfg.Simulate = true
	}

	if err := core.Init(resolveLogFormat(cfg, prettyLog)); err != nil {
		fmt.Printf("Failed to initialize logger: %v", err)
		return err
	}
	defer zap.L().Sync() //nolint:errcheck // Sync errors on stdout/stderr are not critical

	if !cfg.Simulate {
		// A standalone binary has no host process to attach to. Real
		// attachment supplies Deps from resolved addresses; everything else
		// runs in simulate mode.
		return fmt.Errorf("no host to attach to; run with --simulate or set simulate: true")
	}

	a, err := agent.NewSimulated(cfg, clockwork.NewRealClock())
	if err != nil {
		return fmt.Errorf("building agent: %w", err)
	}
	seedSimulatedHost(a.Host())

	if err := a.Start(); err != nil {
		return fmt.Errorf("starting agent: %w", err)
	}
	defer a.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	zap.L().Info("Received shutdown signal", zap.String("signal", sig.String()))
	return nil
}

// resolveLogFormat determines the log format based on CLI flag and config
func resolveLogFormat(cfg *config.GamelinkConfig, prettyLog bool) bool {
	if !prettyLog && cfg.LogFormat == config.GamelinkLogFormatPretty {
		return true
	}
	return prettyLog
}

// seedSimulatedHost loads a small spellbook and a two-entity world so a
// fresh simulate run answers every command kind meaningfully.
func seedSimulatedHost(host *hostsim.Host) {
	host.AddSpell(133, hostsim.Spell{
		Name: "Fireball", Rank: "Rank 1", Icon: "INV_Fireball",
		Cost: 30, CastTimeMS: 3500, MaxRange: 35,
		RangeByUnit: map[string]bool{"target": true},
	})
	host.AddSpell(1752, hostsim.Spell{
		Name: "Sinister Strike", Rank: "Rank 1", Icon: "INV_Sword_04",
		Cost: 45, PowerType: 3, MaxRange: 5,
		RangeByUnit: map[string]bool{"target": true},
	})

	const (
		playerGUID = uint64(0xF13000000001)
		targetGUID = uint64(0xF13000000002)
	)
	host.SetPlayerGUID(playerGUID)
	host.SetTargetGUID(targetGUID)
	host.SetComboPoints(0)
	host.AddEntity(hostsim.Entity{GUID: targetGUID, X: 0, Y: 0, Facing: 0})
	host.AddEntity(hostsim.Entity{GUID: playerGUID, X: -3, Y: 0, Facing: 0})
}

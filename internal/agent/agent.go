// Package agent assembles the control agent: the socket listener, the
// request and result queues, the frame hook, and the dispatcher over the
// engine, native capabilities, and state memory.
package agent

import (
	"fmt"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/dorcha-inc/gamelink/internal/config"
	"github.com/dorcha-inc/gamelink/internal/dispatch"
	"github.com/dorcha-inc/gamelink/internal/engine"
	"github.com/dorcha-inc/gamelink/internal/framehook"
	"github.com/dorcha-inc/gamelink/internal/hostsim"
	"github.com/dorcha-inc/gamelink/internal/native"
	"github.com/dorcha-inc/gamelink/internal/protocol"
	"github.com/dorcha-inc/gamelink/internal/queue"
	"github.com/dorcha-inc/gamelink/internal/transport"
)

// Deps are the host-facing pieces the agent is wired to. In a real attach
// they come from resolved addresses; in simulation a hostsim.Host supplies
// all of them.
type Deps struct {
	Engine    engine.Adapter
	Natives   *native.Registry
	Memory    native.MemoryReader
	Addresses native.StateAddresses
	Installer framehook.Installer
}

// Agent owns the lifecycle of one attached control agent.
type Agent struct {
	cfg      *config.GamelinkConfig
	queues   *queue.Manager
	listener *transport.Listener
	hook     *framehook.Hook

	installer framehook.Installer
	handle    framehook.Handle

	shuttingDown atomic.Bool
	started      atomic.Bool

	// host is set only when the agent owns a simulated host.
	host *hostsim.Host
}

// New wires an Agent from explicit dependencies.
func New(cfg *config.GamelinkConfig, deps Deps) (*Agent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine adapter is required")
	}
	if deps.Installer == nil {
		return nil, fmt.Errorf("frame installer is required")
	}

	a := &Agent{cfg: cfg, installer: deps.Installer}
	a.queues = queue.NewManager(cfg.PollAttempts, cfg.PollInterval())

	d := dispatch.New(deps.Engine, deps.Natives, deps.Memory, deps.Addresses)
	a.hook = framehook.New(a.queues, d, &a.shuttingDown, nil)

	parser := protocol.NewParserWithUnitTokenCap(cfg.UnitTokenMaxLen)
	a.listener = transport.NewListener(cfg.SocketPath, parser, a.queues)
	return a, nil
}

// NewSimulated wires an Agent to a fresh simulated host driven by a ticker
// frame source on the given clock. The agent owns the host; Host exposes it
// for seeding.
func NewSimulated(cfg *config.GamelinkConfig, clock clockwork.Clock) (*Agent, error) {
	host := hostsim.New(clock)

	a, err := New(cfg, Deps{
		Engine:    host.Adapter(),
		Natives:   host.Natives(),
		Memory:    host.Memory(),
		Addresses: host.Addresses(),
		Installer: framehook.NewTickerInstallerWithClock(cfg.FrameInterval(), clock),
	})
	if err != nil {
		host.Close()
		return nil, err
	}
	a.host = host
	return a, nil
}

// Host returns the simulated host, or nil for a real attach.
func (a *Agent) Host() *hostsim.Host { return a.host }

// SocketPath returns the control socket path.
func (a *Agent) SocketPath() string { return a.cfg.SocketPath }

// Start opens the control channel, then attaches the frame hook. The
// listener comes up first so a controller connecting during attach queues
// instead of failing.
func (a *Agent) Start() error {
	if !a.started.CompareAndSwap(false, true) {
		return fmt.Errorf("agent already started")
	}

	if err := a.listener.Start(); err != nil {
		a.started.Store(false)
		return err
	}

	handle, err := a.installer.Install(a.hook.OnFrame)
	if err != nil {
		a.listener.Stop()
		a.started.Store(false)
		return fmt.Errorf("installing frame hook: %w", err)
	}
	a.handle = handle

	zap.L().Info("Agent started", zap.String("socket", a.cfg.SocketPath))
	return nil
}

// Stop detaches in the reverse of attach order: raise the shutdown flag so
// in-flight frames skip new work, remove the frame hook, then close the
// control channel.
func (a *Agent) Stop() {
	if !a.started.CompareAndSwap(true, false) {
		return
	}

	a.shuttingDown.Store(true)
	if err := a.installer.Uninstall(a.handle); err != nil {
		zap.L().Warn("Frame hook removal failed", zap.Error(err))
	}
	a.listener.Stop()

	if a.host != nil {
		a.host.Close()
	}
	zap.L().Info("Agent stopped")
}

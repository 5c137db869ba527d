package framehook

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultFrameInterval approximates a 60Hz render loop.
const DefaultFrameInterval = 16 * time.Millisecond

// Handle identifies one installed frame source.
type Handle uint64

// Installer attaches a FrameFunc to a frame source. Implementations own the
// goroutine or patch point that drives the callback.
type Installer interface {
	Install(fn FrameFunc) (Handle, error)
	Uninstall(h Handle) error
}

// TickerInstaller drives the frame function from a ticker on its own
// goroutine. It stands in for the host's render loop in standalone runs and
// tests. One frame source at a time.
type TickerInstaller struct {
	clock    clockwork.Clock
	interval time.Duration

	mu        sync.Mutex
	installed Handle
	next      Handle
	stop      chan struct{}
	done      chan struct{}
}

// NewTickerInstaller creates an installer ticking at the given interval on
// the wall clock. Non-positive intervals fall back to DefaultFrameInterval.
func NewTickerInstaller(interval time.Duration) *TickerInstaller {
	return NewTickerInstallerWithClock(interval, clockwork.NewRealClock())
}

// NewTickerInstallerWithClock creates an installer on the given clock so
// tests can drive frames deterministically.
func NewTickerInstallerWithClock(interval time.Duration, clock clockwork.Clock) *TickerInstaller {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &TickerInstaller{clock: clock, interval: interval}
}

// Install starts the frame loop. Fails if a frame source is already running.
func (t *TickerInstaller) Install(fn FrameFunc) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.installed != 0 {
		return 0, errors.New("frame source already installed")
	}

	t.next++
	t.installed = t.next
	t.stop = make(chan struct{})
	t.done = make(chan struct{})

	go t.run(fn, t.stop, t.done)
	return t.installed, nil
}

// Uninstall stops the frame loop and waits for the in-flight frame, if any,
// to finish. No frame callback runs after Uninstall returns.
func (t *TickerInstaller) Uninstall(h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.installed == 0 {
		return errors.New("no frame source installed")
	}
	if h != t.installed {
		return errors.New("unknown frame source handle")
	}

	close(t.stop)
	<-t.done
	t.installed = 0
	t.stop = nil
	t.done = nil
	return nil
}

func (t *TickerInstaller) run(fn FrameFunc, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			fn()
		}
	}
}

// Interface guard
var _ Installer = &TickerInstaller{}

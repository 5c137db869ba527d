// Package framehook runs queued requests at frame boundaries. The hook sits
// in the host's render path, so it must return quickly and must never let a
// fault escape: whatever happens while processing, the original frame
// function is called exactly once per frame.
package framehook

import (
	"sync/atomic"

	"github.com/dorcha-inc/gamelink/internal/core"
	"github.com/dorcha-inc/gamelink/internal/protocol"
	"github.com/dorcha-inc/gamelink/internal/queue"
)

// FrameFunc is one frame-boundary callback. The host's original frame
// function and the hook's replacement both have this shape.
type FrameFunc func()

// Dispatcher executes one request and returns its formatted response, or
// the empty string when the request produces none.
type Dispatcher interface {
	Dispatch(req protocol.Request) string
}

// Hook drains the request queue once per frame and dispatches every drained
// request in arrival order on the frame goroutine.
type Hook struct {
	queues       *queue.Manager
	dispatcher   Dispatcher
	shuttingDown *atomic.Bool
	original     FrameFunc
}

// New creates a Hook. original may be nil when there is no downstream frame
// function to chain to. shuttingDown may be nil when the hook's lifetime is
// managed entirely by its installer.
func New(queues *queue.Manager, dispatcher Dispatcher, shuttingDown *atomic.Bool, original FrameFunc) *Hook {
	return &Hook{
		queues:       queues,
		dispatcher:   dispatcher,
		shuttingDown: shuttingDown,
		original:     original,
	}
}

// OnFrame is the replacement frame function. Processing is fault-contained
// so the chain to the original function happens unconditionally.
func (h *Hook) OnFrame() {
	h.process()
	if h.original != nil {
		h.original()
	}
}

func (h *Hook) process() {
	defer func() {
		if r := recover(); r != nil {
			core.LogPanicRecovery("framehook", r)
		}
	}()

	if h.shuttingDown != nil && h.shuttingDown.Load() {
		return
	}

	for _, req := range h.queues.Drain() {
		if resp := h.dispatcher.Dispatch(req); resp != "" {
			h.queues.PushResult(resp)
		}
	}
}

package framehook

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dorcha-inc/gamelink/internal/protocol"
	"github.com/dorcha-inc/gamelink/internal/queue"
)

// stubDispatcher records dispatch order and answers from a canned map.
type stubDispatcher struct {
	seen      []string
	responses map[string]string
	panicOn   string
}

func (s *stubDispatcher) Dispatch(req protocol.Request) string {
	if s.panicOn != "" && req.Raw == s.panicOn {
		panic("dispatch blew up")
	}
	s.seen = append(s.seen, req.Raw)
	return s.responses[req.Raw]
}

// TestHook_DispatchesDrainedBatchInOrder tests that one frame drains every
// pending request and pushes responses in arrival order
func TestHook_DispatchesDrainedBatchInOrder(t *testing.T) {
	q := queue.NewManager(0, 0)
	d := &stubDispatcher{responses: map[string]string{
		"a": "R:a", "b": "R:b", "c": "R:c",
	}}
	h := New(q, d, nil, nil)

	for _, raw := range []string{"a", "b", "c"} {
		q.Enqueue(protocol.Request{Kind: protocol.KindPing, Raw: raw})
	}
	h.OnFrame()

	assert.Equal(t, []string{"a", "b", "c"}, d.seen)
	for _, want := range []string{"R:a", "R:b", "R:c"} {
		got, ok := q.TryPopResult()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.Zero(t, q.PendingLen())
}

// TestHook_EmptyResponseNotPushed tests that responseless requests leave the
// result queue untouched
func TestHook_EmptyResponseNotPushed(t *testing.T) {
	q := queue.NewManager(0, 0)
	d := &stubDispatcher{responses: map[string]string{"silent": ""}}
	h := New(q, d, nil, nil)

	q.Enqueue(protocol.Request{Kind: protocol.KindPing, Raw: "silent"})
	h.OnFrame()

	assert.Zero(t, q.ResultLen())
}

// TestHook_OriginalAlwaysCalled tests the call-through guarantee, including
// when processing faults
func TestHook_OriginalAlwaysCalled(t *testing.T) {
	q := queue.NewManager(0, 0)
	d := &stubDispatcher{panicOn: "bad"}
	var frames int
	h := New(q, d, nil, func() { frames++ })

	q.Enqueue(protocol.Request{Kind: protocol.KindPing, Raw: "bad"})
	require.NotPanics(t, h.OnFrame)
	assert.Equal(t, 1, frames)

	// A clean frame after the fault still works
	h.OnFrame()
	assert.Equal(t, 2, frames)
}

// TestHook_ShutdownSkipsProcessing tests that a raised shutdown flag leaves
// the queue alone but keeps chaining to the original
func TestHook_ShutdownSkipsProcessing(t *testing.T) {
	q := queue.NewManager(0, 0)
	d := &stubDispatcher{}
	var shuttingDown atomic.Bool
	var frames int
	h := New(q, d, &shuttingDown, func() { frames++ })

	shuttingDown.Store(true)
	q.Enqueue(protocol.Request{Kind: protocol.KindPing, Raw: "a"})
	h.OnFrame()

	assert.Empty(t, d.seen)
	assert.Equal(t, 1, q.PendingLen())
	assert.Equal(t, 1, frames)
}

// TestHook_NilOriginal tests a hook with no downstream frame function
func TestHook_NilOriginal(t *testing.T) {
	h := New(queue.NewManager(0, 0), &stubDispatcher{}, nil, nil)
	require.NotPanics(t, h.OnFrame)
}

// TestTickerInstaller_DrivesFrames tests frame delivery on a fake clock
func TestTickerInstaller_DrivesFrames(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	inst := NewTickerInstallerWithClock(10*time.Millisecond, clock)

	fired := make(chan struct{}, 16)
	h, err := inst.Install(func() { fired <- struct{}{} })
	require.NoError(t, err)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(10 * time.Millisecond)
	select {
	case <-fired:
	case <-ctx.Done():
		t.Fatal("frame never fired")
	}

	require.NoError(t, inst.Uninstall(h))
	// No callbacks after uninstall
	clock.Advance(50 * time.Millisecond)
	select {
	case <-fired:
		t.Fatal("frame fired after uninstall")
	case <-time.After(50 * time.Millisecond):
	}
}

// TestTickerInstaller_SingleSource tests the one-source-at-a-time rule and
// handle validation
func TestTickerInstaller_SingleSource(t *testing.T) {
	inst := NewTickerInstallerWithClock(time.Hour, clockwork.NewFakeClock())

	h, err := inst.Install(func() {})
	require.NoError(t, err)

	_, err = inst.Install(func() {})
	assert.ErrorContains(t, err, "already installed")

	assert.ErrorContains(t, inst.Uninstall(h+1), "unknown frame source handle")
	require.NoError(t, inst.Uninstall(h))

	assert.ErrorContains(t, inst.Uninstall(h), "no frame source installed")

	// Reinstall after a clean uninstall succeeds
	h2, err := inst.Install(func() {})
	require.NoError(t, err)
	require.NoError(t, inst.Uninstall(h2))
}

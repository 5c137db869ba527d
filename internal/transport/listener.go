// Package transport owns the control channel: a unix-domain socket carrying
// newline-framed text commands from one controller at a time. The listener
// never touches the engine; it decodes, hands work to the queues, and waits
// out the bounded response poll.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dorcha-inc/gamelink/internal/core"
	"github.com/dorcha-inc/gamelink/internal/protocol"
	"github.com/dorcha-inc/gamelink/internal/queue"
)

// MaxCommandBytes caps one framed command line. Anything longer drops the
// connection rather than buffering without bound.
const MaxCommandBytes = 4096

// Listener accepts controller connections on a unix socket and runs the
// read, decode, enqueue, poll, write loop for each command.
type Listener struct {
	socketPath string
	parser     *protocol.Parser
	queues     *queue.Manager

	ln       net.Listener
	wg       sync.WaitGroup
	stopping atomic.Bool

	mu     sync.Mutex
	active net.Conn

	ctx    context.Context
	cancel context.CancelFunc
}

// NewListener creates a Listener bound to the given socket path.
func NewListener(socketPath string, parser *protocol.Parser, queues *queue.Manager) *Listener {
	if parser == nil {
		parser = protocol.NewParser()
	}
	return &Listener{
		socketPath: socketPath,
		parser:     parser,
		queues:     queues,
	}
}

// Start binds the socket and begins accepting. Any stale socket file from a
// previous run is removed first.
func (l *Listener) Start() error {
	os.Remove(l.socketPath)

	ln, err := net.Listen("unix", l.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", l.socketPath, err)
	}
	if err := os.Chmod(l.socketPath, 0600); err != nil {
		ln.Close()
		os.Remove(l.socketPath)
		return fmt.Errorf("setting socket permissions: %w", err)
	}
	l.ln = ln
	l.ctx, l.cancel = context.WithCancel(context.Background())

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.acceptLoop()
	}()

	zap.L().Info("Control channel listening", zap.String("socket", l.socketPath))
	return nil
}

// Stop closes the listener and the active connection, waits for in-flight
// work, and removes the socket file.
func (l *Listener) Stop() {
	l.stopping.Store(true)
	if l.cancel != nil {
		l.cancel()
	}
	if l.ln != nil {
		l.ln.Close()
	}
	l.mu.Lock()
	if l.active != nil {
		l.active.Close()
	}
	l.mu.Unlock()

	l.wg.Wait()
	os.Remove(l.socketPath)
	zap.L().Info("Control channel closed", zap.String("socket", l.socketPath))
}

// acceptLoop serves one controller at a time. A second connection attempt
// queues in the listener backlog until the current controller disconnects,
// which mirrors the exclusive channel the agent exposes.
func (l *Listener) acceptLoop() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return // listener closed
		}

		l.serve(conn)
	}
}

func (l *Listener) serve(conn net.Conn) {
	l.mu.Lock()
	l.active = conn
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.active = nil
		l.mu.Unlock()
		core.LogDeferredError(conn.Close)
	}()

	l.handleConn(conn)
}

func (l *Listener) handleConn(conn net.Conn) {
	zap.L().Info("Controller connected")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, MaxCommandBytes), MaxCommandBytes)
	w := bufio.NewWriter(conn)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		req := l.parser.Parse(line)
		if req.Kind == protocol.KindPing {
			// No frame needed; answered through the same result path so
			// response ordering stays first-in first-out.
			l.queues.PushResult(protocol.TagPong)
		} else {
			l.queues.Enqueue(req)
		}

		resp, ok := l.queues.PollResult(l.ctx)
		if !ok {
			if l.stopping.Load() {
				return
			}
			if req.Kind != protocol.KindExecuteScript {
				zap.L().Warn("No response within poll window",
					zap.String("kind", req.Kind.String()))
			}
			continue
		}

		if _, err := fmt.Fprintln(w, resp); err != nil {
			zap.L().Warn("Response write failed", zap.Error(err))
			return
		}
		if err := w.Flush(); err != nil {
			zap.L().Warn("Response flush failed", zap.Error(err))
			return
		}
	}

	if err := scanner.Err(); err != nil && !l.stopping.Load() {
		if errors.Is(err, bufio.ErrTooLong) {
			zap.L().Warn("Command exceeded frame limit, dropping controller",
				zap.Int("limit_bytes", MaxCommandBytes))
		} else {
			zap.L().Warn("Controller read failed", zap.Error(err))
		}
		return
	}
	zap.L().Info("Controller disconnected")
}

// SocketPath reports the path the listener binds.
func (l *Listener) SocketPath() string {
	return l.socketPath
}

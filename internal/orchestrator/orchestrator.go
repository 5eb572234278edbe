package orchestrator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync/atomic"

	"github.com/atelier-ml/atelier/internal/logsink"
	"github.com/atelier-ml/atelier/internal/selection"
	"github.com/atelier-ml/atelier/internal/wire"

	"go.uber.org/zap"
)

// WorkerCommand is the hidden subcommand the orchestrator re-executes the
// current binary with to run an install in an isolated process.
const WorkerCommand = "install-worker"

const eventBuffer = 256

type State string

const (
	StateIdle    State = "IDLE"
	StateRunning State = "RUNNING"
	// StateDraining covers the window after the worker stream has ended but
	// before Poll has consumed the buffered tail. The Poll that dequeues the
	// completion frame retires the handle and the machine lands back on
	// StateIdle, so a new run can start.
	StateDraining State = "DRAINING"
)

type EventKind string

const (
	EventText      EventKind = "TEXT"
	EventCompleted EventKind = "COMPLETED"
)

// LogEvent is one unit of worker output handed to the presentation layer:
// either wrapped log lines or the completion signal.
type LogEvent struct {
	Kind  EventKind
	Lines []string
}

var ErrInstallRunning = errors.New("an install worker is already running")

// Orchestrator spawns the install worker process and owns the controller end
// of its output channel. At most one worker is active at a time; a second
// Start is rejected until the prior run has drained back to idle.
//
// All methods belong to the controller's event loop goroutine; only the
// internal read loop runs concurrently and communicates through a buffered
// channel.
type Orchestrator struct {
	logger *zap.Logger
	width  int

	handle *workerHandle
}

type workerHandle struct {
	frames     chan wire.Frame
	streamDone atomic.Bool
}

func NewOrchestrator(logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		logger: logger.Named("orchestrator"),
		width:  80,
	}
}

// SetDisplayWidth updates the width streamed log text is wrapped to. The
// presentation layer calls this on resize.
func (o *Orchestrator) SetDisplayWidth(width int) {
	if width > 0 {
		o.width = width
	}
}

func (o *Orchestrator) State() State {
	switch {
	case o.handle == nil:
		return StateIdle
	case o.handle.streamDone.Load():
		return StateDraining
	default:
		return StateRunning
	}
}

// Start spawns the worker process with a by-value copy of the request on its
// stdin and wires the framed output pipe. The controller's duplicate of the
// worker-side pipe end is closed immediately after the spawn, so end-of-file
// on the read side reliably tracks worker exit. Start fails only if the
// process cannot be created.
func (o *Orchestrator) Start(req selection.InstallRequest) error {
	if o.handle != nil {
		return ErrInstallRunning
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	var encoded bytes.Buffer
	if err := wire.WriteRequest(&encoded, req); err != nil {
		return err
	}

	reader, writer, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("failed to create worker pipe: %w", err)
	}

	cmd := exec.Command(exe, WorkerCommand)
	cmd.Stdin = &encoded
	cmd.Stdout = writer

	if err := cmd.Start(); err != nil {
		reader.Close()
		writer.Close()
		return fmt.Errorf("failed to spawn install worker: %w", err)
	}

	// The child owns its copy of the write end now; holding ours open would
	// keep the channel from ever reporting EOF.
	writer.Close()

	o.logger.Info("spawned install worker", zap.Int("pid", cmd.Process.Pid))

	// The worker is never joined; Wait only reaps the child so a finished
	// worker does not linger as a zombie.
	go func() { _ = cmd.Wait() }()

	o.attach(reader)
	return nil
}

// attach wires a framed stream as the active worker channel. Start uses it
// after spawning; tests feed it a pipe directly.
func (o *Orchestrator) attach(stream io.ReadCloser) {
	h := &workerHandle{frames: make(chan wire.Frame, eventBuffer)}
	o.handle = h

	go h.readLoop(stream, o.logger)
}

func (h *workerHandle) readLoop(stream io.ReadCloser, logger *zap.Logger) {
	defer close(h.frames)
	defer stream.Close()

	for {
		frame, err := wire.ReadFrame(stream)
		if err != nil {
			if !wire.IsDisconnect(err) {
				// Unexpected decode failures take the same degrade path as a
				// disconnect, but are not masked silently.
				logger.Warn("worker stream read failed", zap.Error(err))
			}
			h.streamDone.Store(true)
			return
		}

		h.frames <- frame

		if frame.Type == wire.FrameDone {
			h.streamDone.Store(true)
			return
		}
	}
}

// Poll drains every currently buffered worker message without blocking. The
// event loop calls it once per tick; a burst of messages is consumed whole so
// the monitor never lags behind the worker.
//
// Log frames become EventText with lines wrapped to the display width. A
// completion frame becomes exactly one EventCompleted and retires the handle.
// A channel that ends without a completion frame is treated the same way
// except that no EventCompleted is emitted: the worker keeps whatever it is
// doing, the controller merely loses visibility, and subsequent polls are
// no-ops.
func (o *Orchestrator) Poll() []LogEvent {
	if o.handle == nil {
		return nil
	}

	var events []LogEvent
	for {
		select {
		case frame, ok := <-o.handle.frames:
			if !ok {
				o.logger.Debug("worker channel closed without completion")
				o.handle = nil
				return events
			}

			switch frame.Type {
			case wire.FrameDone:
				events = append(events, LogEvent{Kind: EventCompleted})
				o.handle = nil
				return events
			default:
				events = append(events, LogEvent{
					Kind:  EventText,
					Lines: logsink.Wrap(frame.Text, o.width),
				})
			}
		default:
			return events
		}
	}
}

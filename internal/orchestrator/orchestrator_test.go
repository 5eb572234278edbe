package orchestrator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/atelier-ml/atelier/internal/selection"
	"github.com/atelier-ml/atelier/internal/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestOrchestrator() *Orchestrator {
	return NewOrchestrator(zap.NewNop())
}

func testRequest() selection.InstallRequest {
	return selection.InstallRequest{
		Plans: map[selection.ModelCategory]selection.InstallPlan{
			selection.CategoryLoRA: {Install: []string{"ostris/ikea-instructions"}},
		},
		Precision: "float16",
	}
}

func testRequestEmpty() selection.InstallRequest {
	return selection.InstallRequest{Precision: "float16"}
}

func mustWriteFrame(t *testing.T, w io.Writer, frame wire.Frame) {
	t.Helper()
	require.NoError(t, wire.WriteFrame(w, frame))
}

// collectUntil polls until stop reports the run is over, returning every
// event observed along the way.
func collectUntil(t *testing.T, o *Orchestrator, stop func([]LogEvent) bool) []LogEvent {
	t.Helper()

	var events []LogEvent
	require.Eventually(t, func() bool {
		events = append(events, o.Poll()...)
		return stop(events)
	}, 2*time.Second, 5*time.Millisecond)

	return events
}

func sawCompleted(events []LogEvent) bool {
	for _, ev := range events {
		if ev.Kind == EventCompleted {
			return true
		}
	}
	return false
}

func TestPollIdleIsNoOp(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator()
	assert.Nil(t, o.Poll())
	assert.Equal(t, StateIdle, o.State())
}

func TestPollStreamsPerTick(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator()
	reader, writer := io.Pipe()
	o.attach(reader)

	require.Equal(t, StateRunning, o.State())

	writeFrame := func(frame wire.Frame) {
		go func() { _ = wire.WriteFrame(writer, frame) }()
	}

	// Tick one: the first chunk arrives alone.
	writeFrame(wire.Frame{Type: wire.FrameLog, Text: "Fetching model X"})
	first := collectUntil(t, o, func(evs []LogEvent) bool { return len(evs) >= 1 })
	require.Len(t, first, 1)
	assert.Equal(t, EventText, first[0].Kind)
	assert.Equal(t, []string{"Fetching model X"}, first[0].Lines)

	// Tick two: the second chunk.
	writeFrame(wire.Frame{Type: wire.FrameLog, Text: "Fetching model Y"})
	second := collectUntil(t, o, func(evs []LogEvent) bool { return len(evs) >= 1 })
	require.Len(t, second, 1)
	assert.Equal(t, []string{"Fetching model Y"}, second[0].Lines)

	// Tick three: completion, exactly once.
	writeFrame(wire.Frame{Type: wire.FrameDone})
	third := collectUntil(t, o, sawCompleted)
	require.Len(t, third, 1)
	assert.Equal(t, EventCompleted, third[0].Kind)

	// A fourth poll after completion yields nothing.
	assert.Nil(t, o.Poll())
	assert.Equal(t, StateIdle, o.State())
}

func TestPollDrainsBurstInOneTick(t *testing.T) {
	t.Parallel()

	var stream bytes.Buffer
	mustWriteFrame(t, &stream, wire.Frame{Type: wire.FrameLog, Text: "Fetching model X"})
	mustWriteFrame(t, &stream, wire.Frame{Type: wire.FrameLog, Text: "Fetching model Y"})
	mustWriteFrame(t, &stream, wire.Frame{Type: wire.FrameDone})

	o := newTestOrchestrator()
	o.attach(io.NopCloser(&stream))

	events := collectUntil(t, o, sawCompleted)

	require.Len(t, events, 3)
	assert.Equal(t, []string{"Fetching model X"}, events[0].Lines)
	assert.Equal(t, []string{"Fetching model Y"}, events[1].Lines)
	assert.Equal(t, EventCompleted, events[2].Kind)
	assert.Equal(t, StateIdle, o.State())
}

func TestPollWrapsToDisplayWidth(t *testing.T) {
	t.Parallel()

	var stream bytes.Buffer
	mustWriteFrame(t, &stream, wire.Frame{
		Type: wire.FrameLog,
		Text: "Installing the complete stable diffusion pipeline into the models directory",
	})
	mustWriteFrame(t, &stream, wire.Frame{Type: wire.FrameDone})

	o := newTestOrchestrator()
	o.SetDisplayWidth(30)
	o.attach(io.NopCloser(&stream))

	events := collectUntil(t, o, sawCompleted)

	require.Len(t, events, 2)
	assert.Equal(t, []string{
		"Installing the complete",
		"   stable diffusion pipeline",
		"   into the models directory",
	}, events[0].Lines)
}

func TestPollDisconnectDegradesSilently(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator()
	reader, writer := io.Pipe()
	o.attach(reader)

	go func() {
		_ = wire.WriteFrame(writer, wire.Frame{Type: wire.FrameLog, Text: "Fetching model X"})
		_ = wire.WriteFrame(writer, wire.Frame{Type: wire.FrameLog, Text: "Fetching model Y"})
		writer.Close()
	}()

	// Everything written before the disconnect is still delivered, then the
	// handle is quietly discarded with no completion event.
	events := collectUntil(t, o, func([]LogEvent) bool { return o.State() == StateIdle })

	require.Len(t, events, 2)
	assert.Equal(t, []string{"Fetching model X"}, events[0].Lines)
	assert.Equal(t, []string{"Fetching model Y"}, events[1].Lines)
	assert.False(t, sawCompleted(events))

	assert.Nil(t, o.Poll())
	assert.Equal(t, StateIdle, o.State())
}

func TestPollUnexpectedReadErrorDegradesSilently(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator()
	reader, writer := io.Pipe()
	o.attach(reader)

	go func() {
		_ = wire.WriteFrame(writer, wire.Frame{Type: wire.FrameLog, Text: "partial progress"})
		writer.CloseWithError(errors.New("connection reset"))
	}()

	events := collectUntil(t, o, func([]LogEvent) bool { return o.State() == StateIdle })

	require.Len(t, events, 1)
	assert.False(t, sawCompleted(events))
	assert.Nil(t, o.Poll())
}

func TestDrainingState(t *testing.T) {
	t.Parallel()

	var stream bytes.Buffer
	for i := 0; i < 5; i++ {
		mustWriteFrame(t, &stream, wire.Frame{Type: wire.FrameLog, Text: fmt.Sprintf("chunk %d", i)})
	}
	mustWriteFrame(t, &stream, wire.Frame{Type: wire.FrameDone})

	o := newTestOrchestrator()
	o.attach(io.NopCloser(&stream))

	// The stream is fully buffered before the first poll, so the machine
	// sits in Draining until the backlog is consumed.
	require.Eventually(t, func() bool {
		return o.State() == StateDraining
	}, 2*time.Second, 5*time.Millisecond)

	events := collectUntil(t, o, sawCompleted)
	assert.Len(t, events, 6)
	assert.Equal(t, StateIdle, o.State())
}

func TestStartWhileRunningIsRejected(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator()
	reader, writer := io.Pipe()
	defer writer.Close()
	o.attach(reader)

	err := o.Start(testRequest())
	require.ErrorIs(t, err, ErrInstallRunning)
}

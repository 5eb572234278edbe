package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

type FrameType string

const (
	// FrameLog carries a chunk of UTF-8 log text from the worker.
	FrameLog FrameType = "log"

	// FrameDone marks the end of a worker run. It is a dedicated frame type
	// rather than reserved log text, so no log line can ever be mistaken for
	// completion.
	FrameDone FrameType = "done"
)

// Frames are log text; anything larger than this is a corrupted size prefix.
const maxFrameSize = 16 << 20

// Frame is one length-prefixed message on the worker channel. The payload is
// msgpack preceded by a 4-byte big-endian size.
type Frame struct {
	Type FrameType `msgpack:"type"`
	Text string    `msgpack:"text,omitempty"`
}

func WriteFrame(w io.Writer, frame Frame) error {
	payload, err := msgpack.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))

	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("failed to write frame size: %w", err)
	}

	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write frame payload: %w", err)
	}

	return nil
}

func ReadFrame(r io.Reader) (Frame, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return Frame{}, err
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if size > maxFrameSize {
		return Frame{}, fmt.Errorf("frame size %d exceeds limit", size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, err
	}

	var frame Frame
	if err := msgpack.Unmarshal(payload, &frame); err != nil {
		return Frame{}, fmt.Errorf("failed to unmarshal frame: %w", err)
	}

	return frame, nil
}

// IsDisconnect reports whether err is an expected end-of-channel condition:
// the worker closed its endpoint, the stream ended mid-frame, or our own
// endpoint was already closed. Anything else is an unexpected read failure.
func IsDisconnect(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, os.ErrClosed)
}

package logsink

import (
	"strings"

	"github.com/muesli/reflow/wordwrap"
)

// ActionCompleteMarker is the line the presentation layer appends to the
// scrollback when a worker run finishes.
const ActionCompleteMarker = "** Action Complete **"

const continuationIndent = "   "

// Sink is the append-only scrollback for streamed worker output. Lines only
// ever grow within a run; the UI rebuilds its form on completion but keeps
// the sink, so no history is lost across the reconstruction.
//
// Not safe for concurrent use; the controller's event loop is the only writer.
type Sink struct {
	lines []string
}

func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) Append(lines []string) {
	s.lines = append(s.lines, lines...)
}

// BufferedLines returns the full scrollback. The result is a copy; mutating
// it does not disturb the sink.
func (s *Sink) BufferedLines() []string {
	return append([]string(nil), s.lines...)
}

func (s *Sink) Len() int {
	return len(s.lines)
}

// Wrap word-wraps one streamed chunk to the display width, indenting
// continuation lines by three spaces so wrapped output reads as one logical
// line in the monitor. Widths too narrow to wrap return the chunk's lines
// untouched.
func Wrap(text string, width int) []string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}

	if width <= len(continuationIndent)+1 {
		return strings.Split(text, "\n")
	}

	wrapped := wordwrap.String(text, width-len(continuationIndent))
	lines := strings.Split(wrapped, "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = continuationIndent + lines[i]
	}

	return lines
}

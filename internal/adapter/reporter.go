package adapter

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// StreamReporter writes diagnostics as prefixed lines to a stream.
type StreamReporter struct {
	mu     sync.Mutex
	out    io.Writer
	prefix *color.Color
}

// NewStreamReporter creates a reporter writing to out. The prefix is
// coloured only when colorize is set.
func NewStreamReporter(out io.Writer, colorize bool) *StreamReporter {
	prefix := color.New(color.FgYellow, color.Bold)
	if colorize {
		prefix.EnableColor()
	} else {
		prefix.DisableColor()
	}

	return &StreamReporter{
		out:    out,
		prefix: prefix,
	}
}

// Warnf writes one diagnostic line.
func (r *StreamReporter) Warnf(format string, args ...interface{}) {
	message := strings.TrimRight(fmt.Sprintf(format, args...), "\n")

	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "%s %s\n", r.prefix.Sprint("shcov:"), message)
}

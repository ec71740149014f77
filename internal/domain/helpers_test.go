package domain

import (
	"fmt"
	"sync"
)

// recordingReporter keeps every diagnostic it receives.
type recordingReporter struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingReporter) Warnf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, fmt.Sprintf(format, args...))
}

func (r *recordingReporter) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.messages...)
}

// record builds one trace line the way bash prints it for PS4.
func record(source string, lineno string, command string) string {
	return Delimiter + source + Separator + lineno + Separator + command + "\n"
}

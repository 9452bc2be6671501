package ops

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// isTerminal gates the live single-line status refresh below, the same
// IoctlGetTermios probe internal/batch uses to decide whether redrawing the
// line in place makes sense.
var isTerminal = func() bool {
	_, err := unix.IoctlGetTermios(int(os.Stdout.Fd()), unix.TCGETS)
	return err == nil
}()

// TerminalStatus redraws a single status line in place on an interactive
// terminal, generalizing internal/batch's per-package status lines to the
// scheduler's single pending/gate-depth line.
type TerminalStatus struct {
	mu   sync.Mutex
	line string
}

// Update overwrites the status line with newLine. It redraws on every call
// and does no throttling of its own; RunTerminalStatus paces its calls by
// its interval.
func (t *TerminalStatus) Update(newLine string) {
	if !isTerminal {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if diff := len(t.line) - len(newLine); diff > 0 {
		newLine += strings.Repeat(" ", diff)
	}
	t.line = newLine
	fmt.Println(t.line)
	fmt.Print("\033[1A") // restore cursor position
}

// RunTerminalStatus redraws the live status line every interval from s,
// until done is closed.
func RunTerminalStatus(done <-chan struct{}, s Stats, interval time.Duration) {
	if !isTerminal {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}
	ts := &TerminalStatus{}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		ts.Update(fmt.Sprintf("pending=%d gate_queue=%d", s.PendingDepth(), s.QueueDepth()))
		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}

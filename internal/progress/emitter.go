// Package progress collects per-run status lines and step counters so both
// the detailed log stream and the coarse progress view read from one place.
package progress

import (
	"fmt"
	"log"
	"sync"
	"time"
)

type Mode string

const (
	ModeDetailedLog    Mode = "detailed-log"
	ModeCoarseProgress Mode = "coarse-progress"
)

func ParseMode(s string) Mode {
	if s == string(ModeCoarseProgress) {
		return ModeCoarseProgress
	}
	return ModeDetailedLog
}

// Emitter is safe for concurrent use. Each run of a pipeline calls Begin to
// obtain a generation token; writes carrying a stale token are dropped, so a
// restarted run never interleaves output with its predecessor.
type Emitter struct {
	mu         sync.Mutex
	mode       Mode
	generation int
	section    string
	lines      []string
	done       int
	total      int
	pacing     time.Duration
}

func NewEmitter(mode Mode, pacingMS int) *Emitter {
	return &Emitter{mode: mode, pacing: time.Duration(pacingMS) * time.Millisecond}
}

// Begin starts a fresh run and invalidates all outstanding tokens.
func (e *Emitter) Begin(totalSteps int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	e.section = ""
	e.lines = e.lines[:0]
	e.done = 0
	e.total = totalSteps
	return e.generation
}

// Section emits a framed section marker in detailed mode.
func (e *Emitter) Section(token int, name string) {
	e.mu.Lock()
	if token != e.generation {
		e.mu.Unlock()
		return
	}
	e.section = name
	line := fmt.Sprintf("=== Section: %s ===", name)
	e.lines = append(e.lines, line)
	detailed := e.mode == ModeDetailedLog
	pacing := e.pacing
	e.mu.Unlock()

	if detailed {
		log.Print(line)
	}
	if pacing > 0 {
		time.Sleep(pacing)
	}
}

func (e *Emitter) Logf(token int, format string, args ...any) {
	e.mu.Lock()
	if token != e.generation {
		e.mu.Unlock()
		return
	}
	line := fmt.Sprintf(format, args...)
	e.lines = append(e.lines, line)
	detailed := e.mode == ModeDetailedLog
	e.mu.Unlock()

	if detailed {
		log.Print(line)
	}
}

// Advance moves the coarse counter forward one step.
func (e *Emitter) Advance(token int) {
	e.mu.Lock()
	if token != e.generation {
		e.mu.Unlock()
		return
	}
	e.done++
	done, total := e.done, e.total
	coarse := e.mode == ModeCoarseProgress
	e.mu.Unlock()

	if coarse {
		log.Printf("progress: %d/%d", done, total)
	}
}

type Snapshot struct {
	Section string   `json:"section"`
	Done    int      `json:"done"`
	Total   int      `json:"total"`
	Lines   []string `json:"lines"`
}

func (e *Emitter) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	lines := make([]string, len(e.lines))
	copy(lines, e.lines)
	return Snapshot{Section: e.section, Done: e.done, Total: e.total, Lines: lines}
}

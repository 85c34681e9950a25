// Package obslog provides the optimizer's console progress reporting: a
// spinner-backed, self-overwriting iteration counter for
// MultiRunCoordinator runs — "N of TOTAL iterations complete, best score
// X, ETA Y" — fed from coordinator.Progress snapshots.
package obslog

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Spinner animates a braille character sequence on a timer.
type Spinner struct {
	chars    []string
	current  int
	interval time.Duration
	stop     chan bool
	running  bool
	mu       sync.Mutex
}

// NewSpinner returns a dots-style spinner.
func NewSpinner() *Spinner {
	return &Spinner{
		chars:    []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		interval: 100 * time.Millisecond,
		stop:     make(chan bool, 1),
	}
}

// Start begins the spinner's animation goroutine.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.spin()
}

// Stop halts the animation goroutine.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.stop <- true
}

func (s *Spinner) spin() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.current = (s.current + 1) % len(s.chars)
			s.mu.Unlock()
		}
	}
}

// Current returns the spinner's current frame.
func (s *Spinner) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chars[s.current]
}

// RunProgress prints a single-line, self-overwriting progress bar for a
// MultiRunCoordinator run and mirrors each update into the structured
// log. Construct with NewRunProgress and feed it coordinator.Progress
// snapshots via Update.
type RunProgress struct {
	mu        sync.Mutex
	total     int
	startedAt time.Time
	spinner   *Spinner
	quiet     bool
}

// NewRunProgress starts an animated progress line for a run of total
// iterations. When quiet is true, only structured log lines are emitted —
// no spinner, no terminal redraws.
func NewRunProgress(total int, quiet bool) *RunProgress {
	rp := &RunProgress{total: total, startedAt: time.Now(), quiet: quiet}
	if !quiet {
		rp.spinner = NewSpinner()
		rp.spinner.Start()
	}
	return rp
}

// Update renders one progress line for the given completed count and best
// score (hasBest false before any iteration has produced a best strategy).
func (rp *RunProgress) Update(completed int, hasBest bool, bestScore float64) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	elapsed := time.Since(rp.startedAt)
	log.Info().
		Int("completed", completed).
		Int("total", rp.total).
		Bool("has_best", hasBest).
		Float64("best_score", bestScore).
		Dur("elapsed", elapsed).
		Msg("optimizer progress")

	if rp.quiet {
		return
	}
	rp.printLine(completed, hasBest, bestScore, elapsed)
}

func (rp *RunProgress) printLine(completed int, hasBest bool, bestScore float64, elapsed time.Duration) {
	var b strings.Builder
	b.WriteString("\r\033[K")
	if rp.spinner != nil {
		b.WriteString(rp.spinner.Current())
		b.WriteString(" ")
	}

	if rp.total > 0 {
		pct := float64(completed) / float64(rp.total) * 100
		width := 20
		filled := int(float64(width) * float64(completed) / float64(rp.total))
		b.WriteString("[")
		for i := 0; i < width; i++ {
			if i < filled {
				b.WriteString("█")
			} else {
				b.WriteString("░")
			}
		}
		b.WriteString(fmt.Sprintf("] %d/%d (%.1f%%)", completed, rp.total, pct))
	} else {
		b.WriteString(fmt.Sprintf("%d iterations", completed))
	}

	if hasBest {
		b.WriteString(fmt.Sprintf(" best=%.4f", bestScore))
	}

	if completed > 0 && rp.total > 0 {
		rate := float64(completed) / elapsed.Seconds()
		remaining := rp.total - completed
		eta := time.Duration(float64(remaining)/rate) * time.Second
		b.WriteString(fmt.Sprintf(" ETA %v", eta.Round(time.Second)))
	}

	fmt.Print(b.String())
}

// Finish stops the spinner and prints a final summary line.
func (rp *RunProgress) Finish(completed int, hasBest bool, bestScore float64) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	if rp.spinner != nil {
		rp.spinner.Stop()
	}
	if rp.quiet {
		return
	}
	summary := fmt.Sprintf("completed %d iterations", completed)
	if hasBest {
		summary = fmt.Sprintf("%s, best score %.4f", summary, bestScore)
	}
	fmt.Printf("\r\033[K✅ optimizer run %s (%v)\n", summary, time.Since(rp.startedAt).Round(time.Millisecond))
}

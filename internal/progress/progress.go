// Package progress renders a single-line crawl progress indicator.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Stats is one progress update.
type Stats struct {
	Iterations    int
	MaxIterations int
	Visited       int
	Legit         int
	Invalid       int
	Characters    int
	Errors        int
	Frontier      int
}

// Display manages the progress line during crawling.
type Display struct {
	mu      sync.Mutex
	out     io.Writer
	started bool
	stopped bool

	startTime time.Time
	lastLine  string
}

// New creates a progress display writing to stderr.
func New() *Display {
	return NewWithWriter(os.Stderr)
}

// NewWithWriter creates a progress display writing to w.
func NewWithWriter(w io.Writer) *Display {
	return &Display{out: w}
}

// Start prints the target and begins the progress display.
func (d *Display) Start(target string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return
	}

	d.started = true
	d.startTime = time.Now()
	fmt.Fprintf(d.out, "Crawling %s\n", target)
}

// Update redraws the progress line.
func (d *Display) Update(s Stats) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started || d.stopped {
		return
	}

	line := "\r" + d.render(s, time.Since(d.startTime))

	if len(line) < len(d.lastLine) {
		fmt.Fprint(d.out, "\r"+strings.Repeat(" ", len(d.lastLine)))
	}
	fmt.Fprint(d.out, line)
	d.lastLine = line
}

// render builds the progress line. Progress is measured against the
// iteration cap, or reaches 100% once the frontier drains.
func (d *Display) render(s Stats, elapsed time.Duration) string {
	percent := 0
	switch {
	case s.Frontier == 0 && s.Iterations > 0:
		percent = 100
	case s.MaxIterations > 0:
		percent = s.Iterations * 100 / s.MaxIterations
	}
	if percent > 100 {
		percent = 100
	}

	barWidth := 30
	filled := percent * barWidth / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	return fmt.Sprintf("[%s] %3d%% | Pages: %d/%d | Links: %d | Invalid: %d | Chars: %d | Errors: %d | %s",
		bar, percent, s.Iterations, s.MaxIterations, s.Legit, s.Invalid, s.Characters, s.Errors, formatDuration(elapsed))
}

// Stop ends the progress line.
func (d *Display) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || !d.started {
		return
	}

	d.stopped = true
	fmt.Fprintln(d.out)
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

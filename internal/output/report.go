package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/PentesterFlow/scrape-characters/internal/metrics"
	"github.com/PentesterFlow/scrape-characters/internal/state"
)

// Report is the rendered result of one crawl run.
type Report struct {
	RunID      string            `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Seed       string            `json:"seed" yaml:"seed"`
	StartedAt  time.Time         `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time         `json:"finished_at" yaml:"finished_at"`
	Duration   time.Duration     `json:"duration" yaml:"duration"`
	Cancelled  bool              `json:"cancelled" yaml:"cancelled"`
	Stats      Stats             `json:"stats" yaml:"stats"`
	Legit      []string          `json:"legit_links" yaml:"legit_links"`
	Invalid    []string          `json:"invalid_links" yaml:"invalid_links"`
	Characters string            `json:"characters" yaml:"characters"`
	CodePoints string            `json:"code_points,omitempty" yaml:"code_points,omitempty"`
	PageErrors []state.PageError `json:"page_errors,omitempty" yaml:"page_errors,omitempty"`
	Metrics    *metrics.Snapshot `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// Stats holds the report's set sizes.
type Stats struct {
	Iterations int `json:"iterations" yaml:"iterations"`
	Visited    int `json:"visited" yaml:"visited"`
	Legit      int `json:"legit_links" yaml:"legit_links"`
	Invalid    int `json:"invalid_links" yaml:"invalid_links"`
	Characters int `json:"characters" yaml:"characters"`
	PageErrors int `json:"page_errors" yaml:"page_errors"`
}

// Run is the input to NewReport.
type Run struct {
	ID         string
	Snapshot   state.Snapshot
	StartedAt  time.Time
	FinishedAt time.Time
	Cancelled  bool
	Metrics    *metrics.Snapshot
}

// NewReport builds a report from a finished run. With hex set, the report
// also carries the characters as hexadecimal code points.
func NewReport(run Run, hex bool) *Report {
	snap := run.Snapshot

	r := &Report{
		RunID:      run.ID,
		Seed:       snap.Seed,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Duration:   run.FinishedAt.Sub(run.StartedAt),
		Cancelled:  run.Cancelled,
		Stats: Stats{
			Iterations: snap.Iterations,
			Visited:    len(snap.Visited),
			Legit:      len(snap.Legit),
			Invalid:    len(snap.Invalid),
			Characters: len(snap.Characters),
			PageErrors: len(snap.PageErrors),
		},
		Legit:      nonNil(snap.Legit),
		Invalid:    nonNil(snap.Invalid),
		Characters: string(snap.Characters),
		PageErrors: snap.PageErrors,
		Metrics:    run.Metrics,
	}
	if hex {
		r.CodePoints = HexCodePoints(snap.Characters)
	}
	if r.Duration < 0 {
		r.Duration = 0
	}

	return r
}

// Status is a one-word summary of how the run ended.
func (r *Report) Status() string {
	switch {
	case r.Cancelled:
		return "cancelled"
	case r.Stats.PageErrors > 0:
		return "completed with errors"
	default:
		return "completed"
	}
}

// CharacterLine returns the characters as they should be printed: hex code
// points when present, the literal characters otherwise.
func (r *Report) CharacterLine() string {
	if r.CodePoints != "" {
		return r.CodePoints
	}
	return r.Characters
}

// HexCodePoints formats chars as space-separated lowercase hexadecimal code
// points.
func HexCodePoints(chars []rune) string {
	parts := make([]string, len(chars))
	for i, c := range chars {
		parts[i] = fmt.Sprintf("%x", c)
	}
	return strings.Join(parts, " ")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

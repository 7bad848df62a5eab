// Package crawler implements the single-origin character crawl.
package crawler

import (
	"context"
	"time"

	crawlhttp "github.com/PentesterFlow/scrape-characters/internal/http"
	"github.com/PentesterFlow/scrape-characters/internal/metrics"
	"github.com/PentesterFlow/scrape-characters/internal/output"
	"github.com/PentesterFlow/scrape-characters/internal/state"
)

// Fetcher retrieves one page. A non-nil error marks the page as failed.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*crawlhttp.Page, error)
}

// Progress describes the crawl after one iteration.
type Progress struct {
	Iteration     int
	MaxIterations int
	URL           string
	Visited       int
	Legit         int
	Invalid       int
	Characters    int
	Frontier      int
	Errors        int
	// Err is the page failure of this iteration, if any.
	Err error
}

// Observer receives a Progress value after every iteration.
type Observer func(Progress)

// Result is the outcome of a crawl run, partial when the run was cancelled.
type Result struct {
	RunID      string
	Seed       string
	StartedAt  time.Time
	FinishedAt time.Time
	Cancelled  bool
	Snapshot   state.Snapshot
	Metrics    *metrics.Snapshot
}

// HasErrors reports whether any page failed.
func (r *Result) HasErrors() bool {
	return len(r.Snapshot.PageErrors) > 0
}

// Duration returns the wall time of the run.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Report builds the output report for the run.
func (r *Result) Report(hex bool) *output.Report {
	return output.NewReport(output.Run{
		ID:         r.RunID,
		Snapshot:   r.Snapshot,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Cancelled:  r.Cancelled,
		Metrics:    r.Metrics,
	}, hex)
}

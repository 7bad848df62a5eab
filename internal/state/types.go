package state

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PageError is the diagnostic kept for a page whose fetch or extraction
// failed.
type PageError struct {
	URL        string    `json:"url" yaml:"url"`
	Type       string    `json:"type" yaml:"type"`
	StatusCode int       `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Message    string    `json:"message" yaml:"message"`
	Iteration  int       `json:"iteration" yaml:"iteration"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
}

// Counts is a cheap view of the state's set sizes.
type Counts struct {
	Visited    int
	Legit      int
	Invalid    int
	Characters int
	Iterations int
	Frontier   int
	PageErrors int
}

// Snapshot is an immutable, sorted copy of the crawl state for reporting.
type Snapshot struct {
	Seed       string      `json:"seed" yaml:"seed"`
	Iterations int         `json:"iterations" yaml:"iterations"`
	Visited    []string    `json:"visited" yaml:"visited"`
	Legit      []string    `json:"legit_links" yaml:"legit_links"`
	Invalid    []string    `json:"invalid_links" yaml:"invalid_links"`
	Characters []rune      `json:"characters" yaml:"characters"`
	PageErrors []PageError `json:"page_errors" yaml:"page_errors"`
}

// RunRecord is one archived crawl run.
type RunRecord struct {
	ID         string          `json:"id"`
	Seed       string          `json:"seed"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Cancelled  bool            `json:"cancelled"`
	Config     json.RawMessage `json:"config,omitempty"`
	Snapshot   Snapshot        `json:"snapshot"`
}

// NewRunRecord starts a record for a run against seed with a fresh ID.
func NewRunRecord(seed string, startedAt time.Time) *RunRecord {
	return &RunRecord{
		ID:        uuid.NewString(),
		Seed:      seed,
		StartedAt: startedAt,
	}
}

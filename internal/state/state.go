// Package state holds the mutable record of a single crawl run.
//
// A State is owned by one crawl loop and is not safe for concurrent
// mutation. Every set only grows and the iteration counter only increases.
package state

import (
	"sort"
	"time"

	"github.com/PentesterFlow/scrape-characters/internal/queue"
)

// State tracks visited, legit and invalid links, the characters seen so far
// and the frontier of legit links still to visit.
type State struct {
	seed       string
	visited    *VisitedSet
	legit      map[string]struct{}
	invalid    map[string]struct{}
	frontier   *queue.MemoryQueue
	characters map[rune]struct{}
	iterations int
	pageErrors []PageError
}

// New creates a state seeded with the canonical seed URL. The seed is a legit
// link and the first frontier entry.
func New(seed string, estimatedURLs int) *State {
	s := &State{
		seed:       seed,
		visited:    NewVisitedSet(estimatedURLs),
		legit:      make(map[string]struct{}),
		invalid:    make(map[string]struct{}),
		frontier:   queue.NewMemoryQueue(),
		characters: make(map[rune]struct{}),
	}
	s.AddLegit(seed, "", 0)
	return s
}

// Next pops the oldest unvisited legit link. It returns false when the
// frontier is exhausted.
func (s *State) Next() (*queue.Item, bool) {
	for {
		item, err := s.frontier.Pop()
		if err != nil {
			return nil, false
		}
		if !s.visited.Has(item.URL) {
			return item, true
		}
	}
}

// FrontierLen returns the number of legit links not yet visited.
func (s *State) FrontierLen() int {
	return s.frontier.Len()
}

// MarkVisited records url as fetched or attempted. It reports whether the
// URL was new. Only legit links may be visited.
func (s *State) MarkVisited(url string) bool {
	if _, ok := s.legit[url]; !ok {
		return false
	}
	return s.visited.Add(url)
}

// AddLegit records an accepted canonical link. New links join the frontier.
func (s *State) AddLegit(url, parent string, depth int) bool {
	if _, ok := s.legit[url]; ok {
		return false
	}
	s.legit[url] = struct{}{}
	s.frontier.Push(&queue.Item{
		URL:       url,
		ParentURL: parent,
		Depth:     depth,
		Timestamp: time.Now(),
	})
	return true
}

// AddInvalid records a rejected raw link verbatim. A string already accepted
// as legit is never recorded as invalid.
func (s *State) AddInvalid(raw string) bool {
	if _, ok := s.legit[raw]; ok {
		return false
	}
	if _, ok := s.invalid[raw]; ok {
		return false
	}
	s.invalid[raw] = struct{}{}
	return true
}

// AddText folds the code points of text into the character set and returns
// how many were new.
func (s *State) AddText(text string) int {
	added := 0
	for _, r := range text {
		if _, ok := s.characters[r]; ok {
			continue
		}
		s.characters[r] = struct{}{}
		added++
	}
	return added
}

// IncIterations counts one processed frontier pop and returns the new total.
func (s *State) IncIterations() int {
	s.iterations++
	return s.iterations
}

// Iterations returns the number of processed frontier pops.
func (s *State) Iterations() int {
	return s.iterations
}

// RecordError appends a page diagnostic.
func (s *State) RecordError(pe PageError) {
	if pe.Timestamp.IsZero() {
		pe.Timestamp = time.Now()
	}
	s.pageErrors = append(s.pageErrors, pe)
}

// HasErrors reports whether any page failed.
func (s *State) HasErrors() bool {
	return len(s.pageErrors) > 0
}

// Counts returns the current set sizes.
func (s *State) Counts() Counts {
	return Counts{
		Visited:    s.visited.Len(),
		Legit:      len(s.legit),
		Invalid:    len(s.invalid),
		Characters: len(s.characters),
		Iterations: s.iterations,
		Frontier:   s.frontier.Len(),
		PageErrors: len(s.pageErrors),
	}
}

// Snapshot returns a sorted copy of the state.
func (s *State) Snapshot() Snapshot {
	chars := make([]rune, 0, len(s.characters))
	for r := range s.characters {
		chars = append(chars, r)
	}
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })

	errs := make([]PageError, len(s.pageErrors))
	copy(errs, s.pageErrors)

	return Snapshot{
		Seed:       s.seed,
		Iterations: s.iterations,
		Visited:    s.visited.Sorted(),
		Legit:      sortedKeys(s.legit),
		Invalid:    sortedKeys(s.invalid),
		Characters: chars,
		PageErrors: errs,
	}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

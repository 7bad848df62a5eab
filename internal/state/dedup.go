package state

import (
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
)

// VisitedSet records URLs the crawl has fetched or attempted. A Bloom filter
// answers most negative lookups; the exact map settles positives.
type VisitedSet struct {
	filter *bloom.BloomFilter
	exact  map[string]struct{}
}

// NewVisitedSet sizes the filter for roughly estimatedItems entries.
func NewVisitedSet(estimatedItems int) *VisitedSet {
	if estimatedItems < 1000 {
		estimatedItems = 1000
	}

	return &VisitedSet{
		filter: bloom.NewWithEstimates(uint(estimatedItems), 0.001),
		exact:  make(map[string]struct{}),
	}
}

// Add records url and reports whether it was new.
func (v *VisitedSet) Add(url string) bool {
	if _, exists := v.exact[url]; exists {
		return false
	}
	v.filter.AddString(url)
	v.exact[url] = struct{}{}
	return true
}

// Has reports whether url was recorded.
func (v *VisitedSet) Has(url string) bool {
	if !v.filter.TestString(url) {
		return false
	}
	_, exists := v.exact[url]
	return exists
}

// Len returns the number of recorded URLs.
func (v *VisitedSet) Len() int {
	return len(v.exact)
}

// Sorted returns the recorded URLs in lexical order.
func (v *VisitedSet) Sorted() []string {
	urls := make([]string, 0, len(v.exact))
	for url := range v.exact {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

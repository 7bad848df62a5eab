// Package queue provides the crawl frontier.
package queue

import "time"

// Item is a frontier entry: a canonical in-scope URL waiting to be visited.
type Item struct {
	URL       string
	ParentURL string
	Depth     int
	Timestamp time.Time
}

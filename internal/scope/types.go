package scope

import "fmt"

// Reason is the tagged cause of a link rejection.
type Reason string

// Rejection reasons.
const (
	ReasonMalformed         Reason = "MALFORMED"
	ReasonUnsupportedScheme Reason = "UNSUPPORTED_SCHEME"
	ReasonCrossOrigin       Reason = "CROSS_ORIGIN"
	ReasonHasFragment       Reason = "HAS_FRAGMENT"
	ReasonExcluded          Reason = "EXCLUDED"
	ReasonInvalidSeed       Reason = "INVALID_SEED"
)

// ScopeRules defines crawling scope rules.
type ScopeRules struct {
	IgnoreHashes    bool
	ExcludePatterns []string
}

// Rejection is returned when a link is not accepted into the crawl.
type Rejection struct {
	Reason Reason
	Link   string
	Cause  error
}

// Error implements the error interface.
func (r *Rejection) Error() string {
	if r.Cause != nil {
		return fmt.Sprintf("%s: %q: %v", r.Reason, r.Link, r.Cause)
	}
	return fmt.Sprintf("%s: %q", r.Reason, r.Link)
}

// Unwrap returns the underlying error.
func (r *Rejection) Unwrap() error {
	return r.Cause
}

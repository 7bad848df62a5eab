// Package scope decides which discovered links belong to the crawl.
package scope

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/purell"
)

// canonicalFlags is the normalization applied to every accepted URL.
const canonicalFlags = purell.FlagsSafe

// Validator classifies raw links against the seed origin.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	seed           *url.URL
	origin         Origin
	rules          ScopeRules
	excludeRegexps []*regexp.Regexp
}

// Origin is the scheme, host and port triple of a URL.
type Origin struct {
	Scheme string
	Host   string
	Port   string
}

// String renders the origin in scheme://host:port form.
func (o Origin) String() string {
	return o.Scheme + "://" + o.Host + ":" + o.Port
}

// OriginOf returns the origin of u, filling in the default port for http and
// https and lowercasing scheme and host.
func OriginOf(u *url.URL) Origin {
	o := Origin{
		Scheme: strings.ToLower(u.Scheme),
		Host:   strings.ToLower(u.Hostname()),
		Port:   u.Port(),
	}
	if o.Port == "" {
		switch o.Scheme {
		case "http":
			o.Port = "80"
		case "https":
			o.Port = "443"
		}
	}
	return o
}

// NewValidator creates a validator bound to the origin of seed.
// A seed that is itself not crawlable yields an INVALID_SEED rejection.
func NewValidator(seed string, rules ScopeRules) (*Validator, error) {
	canonical, err := ValidateSeed(seed)
	if err != nil {
		return nil, err
	}
	parsed, _ := url.Parse(canonical)

	v := &Validator{
		seed:   parsed,
		origin: OriginOf(parsed),
		rules:  rules,
	}

	for _, pattern := range rules.ExcludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		v.excludeRegexps = append(v.excludeRegexps, re)
	}

	return v, nil
}

// Seed returns the canonical seed URL.
func (v *Validator) Seed() string {
	return v.seed.String()
}

// Origin returns the crawl origin.
func (v *Validator) Origin() Origin {
	return v.origin
}

// Validate resolves rawLink against base and returns its canonical absolute
// form, or a *Rejection carrying the reason. A nil base means the seed.
func (v *Validator) Validate(rawLink string, base *url.URL) (string, error) {
	if base == nil {
		base = v.seed
	}

	ref, err := url.Parse(strings.TrimSpace(rawLink))
	if err != nil {
		return "", &Rejection{Reason: ReasonMalformed, Link: rawLink, Cause: err}
	}
	resolved := base.ResolveReference(ref)

	scheme := strings.ToLower(resolved.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", &Rejection{Reason: ReasonUnsupportedScheme, Link: rawLink}
	}

	if OriginOf(resolved) != v.origin {
		return "", &Rejection{Reason: ReasonCrossOrigin, Link: rawLink}
	}

	if resolved.Fragment != "" && v.rules.IgnoreHashes {
		return "", &Rejection{Reason: ReasonHasFragment, Link: rawLink}
	}

	canonical := canonicalize(resolved)
	if canonical == v.seed.String() {
		return canonical, nil
	}

	for _, re := range v.excludeRegexps {
		if re.MatchString(canonical) {
			return "", &Rejection{Reason: ReasonExcluded, Link: rawLink}
		}
	}

	return canonical, nil
}

// ValidateSeed checks that raw is an absolute http(s) URL with a host and
// returns its canonical form. Failures are INVALID_SEED rejections wrapping
// the underlying cause.
func ValidateSeed(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", &Rejection{Reason: ReasonInvalidSeed, Link: raw, Cause: err}
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", &Rejection{
			Reason: ReasonInvalidSeed,
			Link:   raw,
			Cause:  &Rejection{Reason: ReasonUnsupportedScheme, Link: raw},
		}
	}
	if parsed.Hostname() == "" {
		return "", &Rejection{Reason: ReasonInvalidSeed, Link: raw, Cause: errors.New("missing host")}
	}

	return canonicalize(parsed), nil
}

// Validate is the stateless form of Validator.Validate: it resolves rawLink
// against originBase and checks it against originBase's origin.
func Validate(rawLink, originBase string, ignoreHashes bool) (string, error) {
	v, err := NewValidator(originBase, ScopeRules{IgnoreHashes: ignoreHashes})
	if err != nil {
		return "", err
	}
	return v.Validate(rawLink, nil)
}

// ReasonOf extracts the rejection reason from err, or "" if err is not a
// rejection.
func ReasonOf(err error) Reason {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Reason
	}
	return ""
}

// canonicalize returns the normalized absolute form used for de-duplication.
// Fragments are always dropped; callers reject them first when required.
func canonicalize(u *url.URL) string {
	c := *u
	if c.Path == "" && c.Opaque == "" {
		c.Path = "/"
	}
	return purell.NormalizeURL(&c, canonicalFlags|purell.FlagRemoveFragment)
}

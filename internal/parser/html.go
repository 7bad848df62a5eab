// Package parser extracts links and visible text from HTML documents.
package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// hiddenSelector matches elements whose content is never rendered as text.
const hiddenSelector = "script, style, noscript, template"

// HTMLParser extracts links and visible text with goquery. Malformed markup is
// repaired by the HTML5 parser rather than rejected.
type HTMLParser struct {
	normalization Normalization
}

// NewHTMLParser creates a parser applying the given text normalization.
func NewHTMLParser(normalization Normalization) *HTMLParser {
	return &HTMLParser{normalization: normalization}
}

// Extract parses body and returns its anchors and visible text.
func (p *HTMLParser) Extract(body string) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	result := &Extraction{
		Links: make([]string, 0),
	}

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		result.Links = append(result.Links, href)
	})

	if base, ok := doc.Find("base[href]").First().Attr("href"); ok {
		result.Base = strings.TrimSpace(base)
	}

	result.Title = strings.TrimSpace(doc.Find("title").First().Text())

	visible := doc.Find("body")
	visible.Find(hiddenSelector).Remove()
	result.Text = p.normalization.Apply(visible.Text())

	return result, nil
}

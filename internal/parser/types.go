package parser

// Extraction is what a page contributes to the crawl.
type Extraction struct {
	// Links holds the raw href values of a[href] elements in document order.
	Links []string
	// Text is the page's visible body text.
	Text string
	// Title is the document title, if any.
	Title string
	// Base is the raw href of the first <base> element, if any.
	Base string
}

// Extractor turns an HTML body into links and text.
type Extractor interface {
	Extract(body string) (*Extraction, error)
}

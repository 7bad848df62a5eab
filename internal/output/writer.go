// Package output renders crawl reports.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Format names an output format.
type Format string

// Supported formats.
const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatMarkdown}

// ParseFormat parses a format name. The empty string selects text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Writer defines the interface for report writers.
type Writer interface {
	// WriteReport writes the complete crawl report
	WriteReport(report *Report) error

	// Flush flushes any buffered output
	Flush() error

	// Close closes the writer
	Close() error
}

// Config holds output configuration.
type Config struct {
	Format  Format
	Pretty  bool
	NoColor bool
}

// NewWriter creates a writer for config.Format.
func NewWriter(w io.Writer, config Config) (Writer, error) {
	switch config.Format {
	case FormatText, "":
		return NewTextWriter(w, config.NoColor), nil
	case FormatJSON:
		return NewJSONWriter(w, config.Pretty), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	case FormatMarkdown:
		return NewMarkdownWriter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", config.Format)
	}
}

// baseWriter carries the flush/close behavior shared by every writer.
type baseWriter struct {
	writer io.Writer
	closed bool
}

func (b *baseWriter) Flush() error {
	if flusher, ok := b.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

func (b *baseWriter) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true

	if closer, ok := b.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

package output

import (
	"encoding/json"
	"io"
	"sync"
)

// JSONWriter writes reports in JSON format.
type JSONWriter struct {
	baseWriter
	mu     sync.Mutex
	pretty bool
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(w io.Writer, pretty bool) *JSONWriter {
	return &JSONWriter{
		baseWriter: baseWriter{writer: w},
		pretty:     pretty,
	}
}

// WriteReport writes the report as a single JSON document.
func (j *JSONWriter) WriteReport(report *Report) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}

	var data []byte
	var err error

	if j.pretty {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}

	if err != nil {
		return err
	}

	if _, err = j.writer.Write(data); err != nil {
		return err
	}

	_, err = j.writer.Write([]byte("\n"))
	return err
}

// Flush flushes the writer.
func (j *JSONWriter) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.baseWriter.Flush()
}

// Close closes the writer.
func (j *JSONWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.baseWriter.Close()
}

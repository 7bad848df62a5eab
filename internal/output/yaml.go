package output

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLWriter writes reports in YAML format.
type YAMLWriter struct {
	baseWriter
}

// NewYAMLWriter creates a new YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{baseWriter: baseWriter{writer: w}}
}

// WriteReport writes the report as a YAML document.
func (y *YAMLWriter) WriteReport(report *Report) error {
	if y.closed {
		return nil
	}

	enc := yaml.NewEncoder(y.writer)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}

package output

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

// TextWriter writes a human-readable report: a summary table followed by
// the sorted link lists, the page errors and the characters.
type TextWriter struct {
	baseWriter
	heading *color.Color
	good    *color.Color
	bad     *color.Color
}

// NewTextWriter creates a new text writer.
func NewTextWriter(w io.Writer, noColor bool) *TextWriter {
	t := &TextWriter{
		baseWriter: baseWriter{writer: w},
		heading:    color.New(color.Bold),
		good:       color.New(color.FgGreen),
		bad:        color.New(color.FgRed),
	}
	if noColor {
		t.heading.DisableColor()
		t.good.DisableColor()
		t.bad.DisableColor()
	}
	return t
}

// WriteReport writes the report.
func (t *TextWriter) WriteReport(r *Report) error {
	if t.closed {
		return nil
	}

	w := t.writer
	t.writeSummary(r)

	t.heading.Fprintf(w, "\nLegit links (%d):\n", len(r.Legit))
	for _, link := range r.Legit {
		fmt.Fprintf(w, "  %s\n", link)
	}

	if len(r.Invalid) > 0 {
		t.heading.Fprintf(w, "\nInvalid links (%d):\n", len(r.Invalid))
		for _, link := range r.Invalid {
			fmt.Fprintf(w, "  %s\n", link)
		}
	}

	if len(r.PageErrors) > 0 {
		t.bad.Fprintf(w, "\nPage errors (%d):\n", len(r.PageErrors))
		for _, pe := range r.PageErrors {
			fmt.Fprintf(w, "  [%s] %s: %s\n", pe.Type, pe.URL, pe.Message)
		}
	}

	t.heading.Fprintf(w, "\nCharacters (%d):\n", r.Stats.Characters)
	_, err := fmt.Fprintln(w, r.CharacterLine())
	return err
}

func (t *TextWriter) writeSummary(r *Report) {
	status := t.good.Sprint(r.Status())
	if r.Cancelled || r.Stats.PageErrors > 0 {
		status = t.bad.Sprint(r.Status())
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(t.writer)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Property", "Value"})
	tw.AppendRows([]table.Row{
		{"Seed", r.Seed},
		{"Status", status},
		{"Iterations", strconv.Itoa(r.Stats.Iterations)},
		{"Visited", strconv.Itoa(r.Stats.Visited)},
		{"Legit links", strconv.Itoa(r.Stats.Legit)},
		{"Invalid links", strconv.Itoa(r.Stats.Invalid)},
		{"Characters", strconv.Itoa(r.Stats.Characters)},
		{"Page errors", strconv.Itoa(r.Stats.PageErrors)},
		{"Duration", r.Duration.Round(time.Millisecond).String()},
	})
	tw.Render()
}

package output

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
)

// MarkdownWriter writes reports in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to w.
func NewMarkdownWriter(w io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: baseWriter{writer: w}}
}

// WriteReport writes the report.
func (m *MarkdownWriter) WriteReport(r *Report) error {
	if m.closed {
		return nil
	}

	md := markdown.NewMarkdown(m.writer)

	md.H1("Crawl Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + r.Seed + "`"},
			{"Started", r.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", r.Duration.Round(time.Millisecond).String()},
			{"Status", r.Status()},
			{"Iterations", strconv.Itoa(r.Stats.Iterations)},
			{"Visited", strconv.Itoa(r.Stats.Visited)},
		},
	})
	md.PlainText("")

	md.H2("Legit Links (" + strconv.Itoa(len(r.Legit)) + ")")
	md.PlainText("")
	if len(r.Legit) > 0 {
		md.BulletList(r.Legit...)
		md.PlainText("")
	}

	if len(r.Invalid) > 0 {
		md.H2("Invalid Links (" + strconv.Itoa(len(r.Invalid)) + ")")
		md.PlainText("")
		md.BulletList(r.Invalid...)
		md.PlainText("")
	}

	if len(r.PageErrors) > 0 {
		md.H2("Page Errors")
		md.PlainText("")

		rows := make([][]string, len(r.PageErrors))
		for i, pe := range r.PageErrors {
			status := "-"
			if pe.StatusCode != 0 {
				status = strconv.Itoa(pe.StatusCode)
			}
			rows[i] = []string{pe.URL, pe.Type, status, pe.Message}
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Type", "Status", "Message"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	md.H2("Characters (" + strconv.Itoa(r.Stats.Characters) + ")")
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightText, r.CharacterLine())

	return md.Build()
}

package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"

	pagesync "github.com/goliatone/go-pagesync/internal/sync"
)

// MarkdownWriter renders sync results as a Markdown document.
type MarkdownWriter struct {
	output io.Writer
}

// NewMarkdownWriter creates a MarkdownWriter writing to output.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{output: output}
}

// Write renders result.
func (w *MarkdownWriter) Write(result *pagesync.Result) error {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, result)
	w.writeSummary(md, result)
	w.writeEntries(md, result)

	return md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *pagesync.Result) {
	md.H1("Page Sync Report")
	md.PlainText("")

	mode := "publish"
	if result.DryRun {
		mode = "dry run"
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", "`" + result.RunID + "`"},
			{"Started", result.Started.Format(time.RFC3339)},
			{"Duration", result.Duration().Round(time.Millisecond).String()},
			{"Mode", mode},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, result *pagesync.Result) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"Created", strconv.Itoa(result.Created)},
			{"Updated", strconv.Itoa(result.Updated)},
			{"Unchanged", strconv.Itoa(result.Unchanged)},
			{"Skipped", strconv.Itoa(result.Skipped)},
			{"Failed", strconv.Itoa(result.Failed)},
		},
	})
	md.PlainText("")

	switch {
	case result.Failed > 0:
		md.Warningf("%d entr%s failed and will be retried on the next run.", result.Failed, plural(result.Failed))
	case result.DryRun:
		md.Note("Dry run: no pages or fingerprints were written.")
	case result.Published() == 0:
		md.Tip("Everything is up to date.")
	default:
		md.Tip("All changed pages were published.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeEntries(md *markdown.Markdown, result *pagesync.Result) {
	md.H2("Entries")
	md.PlainText("")

	if len(result.Entries) == 0 {
		md.PlainText("The manifest listed no entries.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(result.Entries))
	for _, entry := range result.Entries {
		page := ""
		if entry.PageID > 0 {
			page = strconv.Itoa(entry.PageID)
			if entry.Link != "" {
				page = "[" + page + "](" + entry.Link + ")"
			}
		}
		problem := ""
		if entry.Err != nil {
			problem = entry.Err.Error()
		}
		rows = append(rows, []string{
			cell(entry.Slug),
			cell(entry.Source),
			string(entry.State),
			string(entry.Action),
			page,
			cell(problem),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Slug", "Source", "State", "Action", "Page", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

func cell(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.ReplaceAll(value, "|", `\|`)
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

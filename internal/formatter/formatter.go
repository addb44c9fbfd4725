// package formatter renders PreDB listings and match run history as CSV, Markdown, plain text, JSON or terminal tables
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/desertthunder/prematch/internal/models"
	"github.com/desertthunder/prematch/internal/shared"
	"github.com/desertthunder/prematch/internal/tasks"
)

// Format is an output rendering of a PreDB page.
type Format string

const (
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or a common alias ("markdown", "text").
func ParseFormat(v string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "table":
		return FormatTable, nil
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, v)
	}
}

const timeLayout = "2006-01-02 15:04:05"

// ExportToCSV converts a PreDBPage to CSV with columns: ID, Title, Filename, Source, Category, Created, Nuked, Release GUID
func ExportToCSV(page *models.PreDBPage) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Filename", "Source", "Category", "Created", "Nuked", "Release GUID"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, entry := range page.Entries {
		record := []string{
			strconv.FormatInt(entry.ID, 10),
			entry.Title,
			entry.Filename,
			entry.Source,
			entry.Category,
			entry.Created.UTC().Format(timeLayout),
			entry.Nuked.String(),
			entry.ReleaseGUID,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a PreDBPage to a Markdown list under heading.
func ExportToMarkdown(page *models.PreDBPage, heading string) ([]byte, error) {
	var buf bytes.Buffer

	if heading == "" {
		heading = "PreDB"
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", heading))
	buf.WriteString(fmt.Sprintf("**Entries**: %s of %s\n\n", humanize.Comma(int64(len(page.Entries))), humanize.Comma(int64(page.Total))))

	for i, entry := range page.Entries {
		buf.WriteString(fmt.Sprintf("%d. `%s`", page.Offset+i+1, entry.Title))
		if entry.Category != "" {
			buf.WriteString(fmt.Sprintf(" [%s]", entry.Category))
		}
		if entry.Nuked != models.NukeNone {
			buf.WriteString(fmt.Sprintf(" **%s**", strings.ToUpper(entry.Nuked.String())))
		}
		if entry.ReleaseGUID != "" {
			buf.WriteString(fmt.Sprintf(" (release %s)", entry.ReleaseGUID))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts a PreDBPage to plain text.
func ExportToText(page *models.PreDBPage) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Showing %d-%d of %s\n\n", pageStart(page), page.Offset+len(page.Entries), humanize.Comma(int64(page.Total))))
	for i, entry := range page.Entries {
		buf.WriteString(fmt.Sprintf("%d. %s (%s)\n", page.Offset+i+1, entry.Title, entry.Created.UTC().Format(timeLayout)))
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders v as indented JSON.
func ExportToJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

func pageStart(page *models.PreDBPage) int {
	if len(page.Entries) == 0 {
		return page.Offset
	}
	return page.Offset + 1
}

// PreDBTable renders a page as a terminal table.
func PreDBTable(w io.Writer, page *models.PreDBPage) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"ID", "Title", "Category", "Created", "Nuked", "Release"})

	for _, entry := range page.Entries {
		nuked := ""
		if entry.Nuked != models.NukeNone {
			nuked = entry.Nuked.String()
		}
		tw.AppendRow(table.Row{entry.ID, entry.Title, entry.Category, humanize.Time(entry.Created), nuked, entry.ReleaseGUID})
	}

	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d-%d of %s", pageStart(page), page.Offset+len(page.Entries), humanize.Comma(int64(page.Total)))})
	tw.Render()
}

// EntryDetail renders a single entry as a two-column table.
func EntryDetail(w io.Writer, entry *models.PreDBEntry) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)

	tw.AppendRows([]table.Row{
		{"ID", entry.ID},
		{"Title", entry.Title},
		{"Filename", entry.Filename},
		{"Source", entry.Source},
		{"Category", entry.Category},
		{"Created", entry.Created.UTC().Format(timeLayout)},
		{"Nuked", entry.Nuked},
	})
	if entry.NukeReason != "" {
		tw.AppendRow(table.Row{"Nuke reason", entry.NukeReason})
	}
	tw.Render()
}

// Render writes page to w in format.
func Render(w io.Writer, page *models.PreDBPage, format Format) error {
	var (
		data []byte
		err  error
	)

	switch format {
	case FormatTable:
		PreDBTable(w, page)
		return nil
	case FormatCSV:
		data, err = ExportToCSV(page)
	case FormatMarkdown:
		data, err = ExportToMarkdown(page, "")
	case FormatText:
		data, err = ExportToText(page)
	case FormatJSON:
		data, err = ExportToJSON(page)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}

// WriteExport writes page to path in format.
//
// Defaults to predb.{format} as the filename. Table output is written as plain text.
func WriteExport(page *models.PreDBPage, format Format, path string) (string, error) {
	if format == FormatTable {
		format = FormatText
	}
	if path == "" {
		path = fmt.Sprintf("predb.%s", format)
	}

	var buf bytes.Buffer
	if err := Render(&buf, page, format); err != nil {
		return "", fmt.Errorf("failed to render %s export: %w", format, err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}

// SummaryTable renders the summaries of one or more driver runs.
func SummaryTable(w io.Writer, summaries ...*tasks.MatchSummary) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Driver", "Mode", "Policy", "Rows", "Checked", "Changed", "Missed", "Failed", "Elapsed"})

	var changed int
	for _, s := range summaries {
		if s == nil {
			continue
		}
		changed += s.Changed
		tw.AppendRow(table.Row{
			s.Driver, s.Mode, s.Policy,
			humanize.Comma(int64(s.Total)),
			humanize.Comma(int64(s.Checked)),
			humanize.Comma(int64(s.Changed)),
			humanize.Comma(int64(s.Missed)),
			humanize.Comma(int64(s.Failed)),
			s.Elapsed.Round(time.Millisecond),
		})
	}

	if len(summaries) > 1 {
		tw.AppendFooter(table.Row{"", "", "", "", "Total", humanize.Comma(int64(changed))})
	}
	tw.Render()
}

// RunsTable renders recorded match runs, newest first as given.
func RunsTable(w io.Writer, runs []*models.MatchRun) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"#", "Driver", "Mode", "Policy", "Status", "Changed", "Started", "Duration", "Error"})

	for _, run := range runs {
		started, duration := "", ""
		if run.StartedAt() != nil {
			started = humanize.Time(*run.StartedAt())
			if run.CompletedAt() != nil {
				duration = run.CompletedAt().Sub(*run.StartedAt()).Round(time.Millisecond).String()
			}
		}
		tw.AppendRow(table.Row{
			run.Sequence(), run.Driver(), run.Mode(), run.Policy(), run.Status(),
			humanize.Comma(int64(run.Counts().Changed)), started, duration, run.ErrorMessage(),
		})
	}
	tw.Render()
}

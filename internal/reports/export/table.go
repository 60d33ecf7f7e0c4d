// Package export renders tabular report data as CSV, Excel or PDF.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Format is an export file format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "xlsx"
	FormatPDF   Format = "pdf"
)

// ParseFormat accepts the format names used in query strings.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatExcel, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	}
	return "text/csv"
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Table is a titled grid of values. Cells may be strings, numbers, bools,
// times or nil.
type Table struct {
	Title    string
	Subtitle string
	Columns  []string
	Rows     [][]any
}

// Render writes the table in the given format.
func Render(format Format, table Table, w io.Writer) error {
	switch format {
	case FormatCSV:
		e := NewCSVExporter(w, DefaultCSVOptions())
		if err := e.WriteHeader(table.Columns); err != nil {
			return err
		}
		if err := e.WriteRows(table.Rows); err != nil {
			return err
		}
		return e.Flush()
	case FormatExcel:
		opts := DefaultExcelOptions()
		if table.Title != "" {
			opts.SheetName = sheetName(table.Title)
		}
		e, err := NewExcelExporter(opts)
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.WriteHeader(table.Columns); err != nil {
			return err
		}
		if err := e.WriteRows(table.Rows); err != nil {
			return err
		}
		return e.WriteTo(w)
	case FormatPDF:
		opts := DefaultPDFOptions()
		opts.Title = table.Title
		opts.Subtitle = table.Subtitle
		opts.Orientation = "landscape"
		g := NewPDFGenerator(opts)
		if err := g.GenerateReport(table.Columns, table.Rows); err != nil {
			return err
		}
		return g.WriteTo(w)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

// sheetName trims a title to Excel's 31 character sheet name limit.
func sheetName(title string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '-'
		}
		return r
	}, title)
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	return name
}

func formatTime(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(layout)
}

package export

import (
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ExcelExporter exports data to Excel format
type ExcelExporter struct {
	file    *excelize.File
	options ExcelOptions
	row     int
	widths  []int

	dateStyle   int
	numberStyle int
}

// ExcelOptions configures Excel export behavior
type ExcelOptions struct {
	SheetName     string            `json:"sheet_name"`
	IncludeHeader bool              `json:"include_header"`
	FreezeHeader  bool              `json:"freeze_header"`
	AutoFilter    bool              `json:"auto_filter"`
	AutoWidth     bool              `json:"auto_width"`
	NumberFormat  string            `json:"number_format"`
	HeaderStyle   *ExcelStyleConfig `json:"header_style,omitempty"`
}

// ExcelStyleConfig defines style for cells
type ExcelStyleConfig struct {
	FontBold  bool   `json:"font_bold"`
	FontSize  int    `json:"font_size"`
	FontColor string `json:"font_color"`
	FillColor string `json:"fill_color"`
	Alignment string `json:"alignment"`
	Border    bool   `json:"border"`
}

// DefaultExcelOptions returns default Excel export options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		SheetName:     "Report",
		IncludeHeader: true,
		FreezeHeader:  true,
		AutoFilter:    true,
		AutoWidth:     true,
		NumberFormat:  "#,##0.00",
		HeaderStyle: &ExcelStyleConfig{
			FontBold:  true,
			FontSize:  11,
			FillColor: "4472C4",
			FontColor: "FFFFFF",
			Alignment: "center",
			Border:    true,
		},
	}
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(options ExcelOptions) (*ExcelExporter, error) {
	file := excelize.NewFile()
	if err := file.SetSheetName("Sheet1", options.SheetName); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	e := &ExcelExporter{file: file, options: options, row: 1}

	var err error
	if e.dateStyle, err = file.NewStyle(&excelize.Style{NumFmt: 22}); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create date style: %w", err)
	}
	if e.numberStyle, err = file.NewStyle(&excelize.Style{CustomNumFmt: &options.NumberFormat}); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create number style: %w", err)
	}
	return e, nil
}

// WriteHeader writes the header row with styling
func (e *ExcelExporter) WriteHeader(columns []string) error {
	e.widths = make([]int, len(columns))
	for i, col := range columns {
		e.track(i, col)
	}
	if !e.options.IncludeHeader {
		return nil
	}

	sheet := e.options.SheetName
	styleID := 0
	if e.options.HeaderStyle != nil {
		id, err := e.createStyle(e.options.HeaderStyle)
		if err != nil {
			return fmt.Errorf("failed to create header style: %w", err)
		}
		styleID = id
	}

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, e.row)
		if err := e.file.SetCellValue(sheet, cell, col); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		if styleID > 0 {
			e.file.SetCellStyle(sheet, cell, cell, styleID)
		}
	}
	e.row++

	if e.options.FreezeHeader {
		if err := e.file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return fmt.Errorf("failed to freeze header: %w", err)
		}
	}
	return nil
}

// WriteRows writes data rows below the header
func (e *ExcelExporter) WriteRows(rows [][]any) error {
	sheet := e.options.SheetName
	for _, row := range rows {
		for i, val := range row {
			cell, _ := excelize.CoordinatesToCellName(i+1, e.row)
			if err := e.setCell(sheet, cell, val); err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
			e.track(i, fmt.Sprint(val))
		}
		e.row++
	}
	return e.finish(sheet)
}

func (e *ExcelExporter) setCell(sheet, cell string, val any) error {
	switch v := val.(type) {
	case nil:
		return nil
	case *string:
		if v == nil {
			return nil
		}
		return e.file.SetCellValue(sheet, cell, *v)
	case time.Time:
		if v.IsZero() {
			return nil
		}
		if err := e.file.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
		return e.file.SetCellStyle(sheet, cell, cell, e.dateStyle)
	case float64:
		if err := e.file.SetCellFloat(sheet, cell, v, 2, 64); err != nil {
			return err
		}
		return e.file.SetCellStyle(sheet, cell, cell, e.numberStyle)
	case fmt.Stringer:
		return e.file.SetCellValue(sheet, cell, v.String())
	}
	return e.file.SetCellValue(sheet, cell, val)
}

func (e *ExcelExporter) track(col int, text string) {
	if col >= len(e.widths) {
		return
	}
	if n := utf8.RuneCountInString(text); n > e.widths[col] {
		e.widths[col] = n
	}
}

func (e *ExcelExporter) finish(sheet string) error {
	if len(e.widths) == 0 {
		return nil
	}
	lastCol, _ := excelize.ColumnNumberToName(len(e.widths))
	if e.options.AutoFilter && e.options.IncludeHeader && e.row > 2 {
		if err := e.file.AutoFilter(sheet, fmt.Sprintf("A1:%s%d", lastCol, e.row-1), nil); err != nil {
			return fmt.Errorf("failed to add auto filter: %w", err)
		}
	}
	if e.options.AutoWidth {
		for i, w := range e.widths {
			col, _ := excelize.ColumnNumberToName(i + 1)
			width := float64(w) + 2
			if width > 60 {
				width = 60
			}
			e.file.SetColWidth(sheet, col, col, width)
		}
	}
	return nil
}

// WriteTo writes the Excel file to a writer
func (e *ExcelExporter) WriteTo(w io.Writer) error {
	if _, err := e.file.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

// Close closes the Excel file
func (e *ExcelExporter) Close() error {
	return e.file.Close()
}

func (e *ExcelExporter) createStyle(config *ExcelStyleConfig) (int, error) {
	style := &excelize.Style{
		Font: &excelize.Font{
			Bold:  config.FontBold,
			Size:  float64(config.FontSize),
			Color: config.FontColor,
		},
	}
	if config.FillColor != "" {
		style.Fill = excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{config.FillColor},
		}
	}
	if config.Alignment != "" {
		style.Alignment = &excelize.Alignment{Horizontal: config.Alignment, Vertical: "center"}
	}
	if config.Border {
		style.Border = []excelize.Border{
			{Type: "left", Color: "D9D9D9", Style: 1},
			{Type: "top", Color: "D9D9D9", Style: 1},
			{Type: "bottom", Color: "D9D9D9", Style: 1},
			{Type: "right", Color: "D9D9D9", Style: 1},
		}
	}
	return e.file.NewStyle(style)
}

package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExcelExporter writes a single-sheet workbook
type ExcelExporter struct {
	file    *excelize.File
	options ExcelOptions
	dateFmt int
}

// ExcelOptions configures Excel export behavior
type ExcelOptions struct {
	SheetName    string
	FreezeHeader bool
	AutoFilter   bool
	AutoWidth    bool
	HeaderFill   string
	HeaderFont   string
}

// DefaultExcelOptions returns default Excel export options
func DefaultExcelOptions(sheet string) ExcelOptions {
	return ExcelOptions{
		SheetName:    sheet,
		FreezeHeader: true,
		AutoFilter:   true,
		AutoWidth:    true,
		HeaderFill:   "2E7D32",
		HeaderFont:   "FFFFFF",
	}
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(options ExcelOptions) (*ExcelExporter, error) {
	file := excelize.NewFile()
	if err := file.SetSheetName("Sheet1", options.SheetName); err != nil {
		return nil, err
	}

	dateFmt, err := file.NewStyle(&excelize.Style{NumFmt: 22}) // m/d/yy h:mm
	if err != nil {
		return nil, err
	}

	return &ExcelExporter{file: file, options: options, dateFmt: dateFmt}, nil
}

// WriteTable writes the header row followed by the data rows
func (e *ExcelExporter) WriteTable(columns []string, rows [][]interface{}) error {
	sheet := e.options.SheetName

	headerStyle, err := e.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: e.options.HeaderFont},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{e.options.HeaderFill}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	widths := make([]float64, len(columns))
	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := e.file.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
		_ = e.file.SetCellStyle(sheet, cell, cell, headerStyle)
		widths[i] = estimateWidth(col)
	}

	for r, row := range rows {
		for c, val := range row {
			if c >= len(columns) {
				break
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := e.setCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("failed to set cell value: %w", err)
			}
			if w := estimateWidth(val); w > widths[c] {
				widths[c] = w
			}
		}
	}

	if e.options.FreezeHeader {
		_ = e.file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}

	if e.options.AutoFilter && len(columns) > 0 {
		lastCol, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = e.file.AutoFilter(sheet, "A1:"+lastCol, nil)
	}

	if e.options.AutoWidth {
		for i, width := range widths {
			colName, _ := excelize.ColumnNumberToName(i + 1)
			// Min width 10, max width 50
			if width < 10 {
				width = 10
			}
			if width > 50 {
				width = 50
			}
			_ = e.file.SetColWidth(sheet, colName, colName, width)
		}
	}

	return nil
}

// WriteTo writes the Excel file to a writer
func (e *ExcelExporter) WriteTo(w io.Writer) error {
	return e.file.Write(w)
}

// Close closes the Excel file
func (e *ExcelExporter) Close() error {
	return e.file.Close()
}

func (e *ExcelExporter) setCellValue(sheet, cell string, val interface{}) error {
	switch v := val.(type) {
	case nil:
		return e.file.SetCellValue(sheet, cell, "")
	case time.Time:
		if v.IsZero() {
			return e.file.SetCellValue(sheet, cell, "")
		}
		if err := e.file.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
		return e.file.SetCellStyle(sheet, cell, cell, e.dateFmt)
	case *time.Time:
		if v == nil {
			return e.file.SetCellValue(sheet, cell, "")
		}
		return e.setCellValue(sheet, cell, *v)
	default:
		return e.file.SetCellValue(sheet, cell, v)
	}
}

// estimateWidth is a rough estimate: one character is one unit plus padding
func estimateWidth(val interface{}) float64 {
	if val == nil {
		return 0
	}
	if t, ok := val.(time.Time); ok {
		if t.IsZero() {
			return 0
		}
		return 18
	}
	return float64(len(fmt.Sprintf("%v", val))) * 1.2
}

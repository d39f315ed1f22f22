package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExcelExporter writes a single-sheet workbook with a frozen, filterable header
type ExcelExporter struct {
	sheetName string
}

func NewExcelExporter() *ExcelExporter {
	return &ExcelExporter{sheetName: "Runs"}
}

func (e *ExcelExporter) Export(t *Table, w io.Writer) error {
	if err := t.validate(); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", e.sheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	row := 1
	if t.Title != "" {
		titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
		if err != nil {
			return fmt.Errorf("failed to create title style: %w", err)
		}
		f.SetCellValue(e.sheetName, "A1", t.Title)
		f.SetCellStyle(e.sheetName, "A1", "A1", titleStyle)
		row++
		if t.Subtitle != "" {
			f.SetCellValue(e.sheetName, fmt.Sprintf("A%d", row), t.Subtitle)
			row++
		}
		row++
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 22})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}

	headerRow := row
	for col, header := range t.Headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		f.SetCellValue(e.sheetName, cell, header)
		f.SetCellStyle(e.sheetName, cell, cell, headerStyle)
		name, _ := excelize.ColumnNumberToName(col + 1)
		f.SetColWidth(e.sheetName, name, name, 20)
	}
	row++

	for _, values := range t.Rows {
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			switch tv := v.(type) {
			case *time.Time:
				if tv == nil {
					continue
				}
				v = *tv
			case nil:
				continue
			}
			if err := f.SetCellValue(e.sheetName, cell, v); err != nil {
				return fmt.Errorf("failed to write %s: %w", cell, err)
			}
			if _, ok := v.(time.Time); ok {
				f.SetCellStyle(e.sheetName, cell, cell, dateStyle)
			}
		}
		row++
	}

	f.SetPanes(e.sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      headerRow,
		TopLeftCell: fmt.Sprintf("A%d", headerRow+1),
		ActivePane:  "bottomLeft",
	})
	lastCol, _ := excelize.ColumnNumberToName(len(t.Headers))
	f.AutoFilter(e.sheetName, fmt.Sprintf("A%d:%s%d", headerRow, lastCol, headerRow+len(t.Rows)), nil)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

func (e *ExcelExporter) GetContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *ExcelExporter) GetFileExtension() string {
	return ".xlsx"
}

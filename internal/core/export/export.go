package export

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Format is an export file format
type Format string

const (
	FormatExcel Format = "xlsx"
	FormatPDF   Format = "pdf"
)

// Table is a titled grid of values
type Table struct {
	Title     string
	Subtitle  string
	CreatedAt time.Time
	Headers   []string
	Rows      [][]interface{}
}

// Exporter renders a Table into one file format
type Exporter interface {
	Export(t *Table, w io.Writer) error
	GetContentType() string
	GetFileExtension() string
}

// NewExporter returns the exporter for format. "excel" is accepted for xlsx.
func NewExporter(format string) (Exporter, error) {
	switch Format(strings.ToLower(strings.TrimSpace(format))) {
	case FormatExcel, "excel", "":
		return NewExcelExporter(), nil
	case FormatPDF:
		return NewPDFExporter(), nil
	}
	return nil, fmt.Errorf("unsupported export format: %s", format)
}

func (t *Table) validate() error {
	if len(t.Headers) == 0 {
		return fmt.Errorf("no headers provided")
	}
	for i, row := range t.Rows {
		if len(row) > len(t.Headers) {
			return fmt.Errorf("row %d has %d cells for %d headers", i, len(row), len(t.Headers))
		}
	}
	return nil
}

// cellText renders a value for formats without native cell types
func cellText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprint(v)
}

package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter writes a landscape A4 table, repeating the header on each page
type PDFExporter struct {
	fontSize float64
}

func NewPDFExporter() *PDFExporter {
	return &PDFExporter{fontSize: 8}
}

func (p *PDFExporter) Export(t *Table, w io.Writer) error {
	if err := t.validate(); err != nil {
		return err
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 10)
	pdf.AddPage()

	if t.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.Cell(0, 10, t.Title)
		pdf.Ln(10)
	}
	if t.Subtitle != "" {
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 5, t.Subtitle, "", "", false)
		pdf.Ln(2)
	}
	if !t.CreatedAt.IsZero() {
		pdf.SetFont("Arial", "I", 7)
		pdf.Cell(0, 5, fmt.Sprintf("Generated: %s", t.CreatedAt.Format("2006-01-02 15:04:05 MST")))
		pdf.Ln(7)
	}

	pageWidth, pageHeight := pdf.GetPageSize()
	left, _, right, bottom := pdf.GetMargins()
	colWidth := (pageWidth - left - right) / float64(len(t.Headers))

	header := func() {
		pdf.SetFont("Arial", "B", p.fontSize)
		pdf.SetFillColor(68, 114, 196)
		pdf.SetTextColor(255, 255, 255)
		for _, h := range t.Headers {
			pdf.CellFormat(colWidth, 7, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Arial", "", p.fontSize)
	}
	header()

	for i, row := range t.Rows {
		if pdf.GetY()+6 > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		fill := i%2 == 1
		pdf.SetFillColor(242, 242, 242)
		for col := range t.Headers {
			var v interface{}
			if col < len(row) {
				v = row[col]
			}
			pdf.CellFormat(colWidth, 6, truncate(pdf, cellText(v), colWidth-2), "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

// truncate shortens s to fit width, marking the cut with "..."
func truncate(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func (p *PDFExporter) GetContentType() string {
	return "application/pdf"
}

func (p *PDFExporter) GetFileExtension() string {
	return ".pdf"
}

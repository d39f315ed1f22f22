package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleTable() *Table {
	done := time.Date(2024, 3, 1, 9, 0, 5, 0, time.UTC)
	return &Table{
		Title:     "Runs: Notify on done",
		CreatedAt: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		Headers:   []string{"Run ID", "Status", "Started", "Completed", "Duration (ms)", "Error"},
		Rows: [][]interface{}{
			{"r1", "completed", time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), &done, int64(5000), ""},
			{"r2", "failed", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), (*time.Time)(nil), int64(0), strings.Repeat("boom ", 40)},
		},
	}
}

func TestNewExporter(t *testing.T) {
	for format, ext := range map[string]string{"xlsx": ".xlsx", "excel": ".xlsx", "": ".xlsx", "PDF": ".pdf"} {
		e, err := NewExporter(format)
		require.NoError(t, err, format)
		assert.Equal(t, ext, e.GetFileExtension(), format)
	}
	_, err := NewExporter("docx")
	assert.Error(t, err)
}

func TestExcelExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExcelExporter().Export(sampleTable(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue("Runs", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Runs: Notify on done", title)

	rows, err := f.GetRows("Runs")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Run ID", "Status", "Started", "Completed", "Duration (ms)", "Error"}, rows[2])
	assert.Equal(t, "r1", rows[3][0])
	assert.Equal(t, "5000", rows[3][4])
	assert.Equal(t, "failed", rows[4][1])
}

func TestPDFExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPDFExporter().Export(sampleTable(), &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestExportRejectsBadTables(t *testing.T) {
	for _, e := range []Exporter{NewExcelExporter(), NewPDFExporter()} {
		assert.Error(t, e.Export(&Table{}, &bytes.Buffer{}))
		assert.Error(t, e.Export(&Table{Headers: []string{"a"}, Rows: [][]interface{}{{1, 2}}}, &bytes.Buffer{}))
	}
}

// Package report renders attendance analysis as a spreadsheet.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"rollbook/internal/attendance"
)

const sheet = "Attendance"

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Filename suggests a download name for the report.
func Filename(a attendance.Analysis) string {
	return fmt.Sprintf("attendance_%s_%s.xlsx", a.Range.From, a.Range.To)
}

// WriteAnalysis writes a one-sheet workbook with a header block and one row per student.
func WriteAnalysis(w io.Writer, a attendance.Analysis) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	header := [][]any{
		{"From", a.Range.From.String()},
		{"To", a.Range.To.String()},
		{"Total working days", a.TotalWorkingDays},
		{},
		{"Roll", "Name", "Attendance %"},
	}
	for i, row := range header {
		if len(row) == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A5", "C5", bold); err != nil {
		return err
	}

	for i, r := range a.Rows {
		cell, _ := excelize.CoordinatesToCellName(1, len(header)+i+1)
		values := []any{r.Roll, r.Name, r.Percentage}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheet, "B", "B", 30); err != nil {
		return err
	}
	return f.Write(w)
}

package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// SummaryRow is one line of a student's academic summary.
type SummaryRow struct {
	Subject   string
	Professor string
	Average   *float64
}

// StudentReport carries the pre-aggregated data rendered into a report
// document. The renderer performs no lookups of its own.
type StudentReport struct {
	StudentName    string
	StudentEmail   string
	UniversityName string
	Rows           []SummaryRow
}

// PDFExporter renders student academic summaries into a tabular PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document for the given student report.
func (e *PDFExporter) Render(report StudentReport) ([]byte, string, error) {
	if report.StudentName == "" {
		return nil, "", fmt.Errorf("pdf requires a student name")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, strings.ToUpper("Academic Report"), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Student: %s", report.StudentName), "", 1, "L", false, 0, "")
	if report.UniversityName != "" {
		pdf.CellFormat(0, 7, fmt.Sprintf("University: %s", report.UniversityName), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	headers := []string{"Subject", "Professor", "Average Score"}
	colWidth := 190.0 / float64(len(headers))

	pdf.SetFont("Arial", "B", 10)
	for _, header := range headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range report.Rows {
		avg := "N/A"
		if row.Average != nil {
			avg = fmt.Sprintf("%.2f", *row.Average)
		}
		professor := row.Professor
		if professor == "" {
			professor = "N/A"
		}
		pdf.CellFormat(colWidth, 7, row.Subject, "1", 0, "", false, 0, "")
		pdf.CellFormat(colWidth, 7, professor, "1", 0, "", false, 0, "")
		pdf.CellFormat(colWidth, 7, avg, "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, "", fmt.Errorf("render pdf: %w", err)
	}

	filename := fmt.Sprintf("report_%s.pdf", strings.ReplaceAll(report.StudentName, " ", "_"))
	return buf.Bytes(), filename, nil
}

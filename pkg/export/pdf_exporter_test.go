package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderProducesPDF(t *testing.T) {
	avg := 82.5
	report := StudentReport{
		StudentName:    "Ana Silva",
		UniversityName: "Tech University",
		Rows: []SummaryRow{
			{Subject: "Mathematics", Professor: "Dr. Knight", Average: &avg},
			{Subject: "History", Professor: "", Average: nil},
		},
	}

	data, filename, err := NewPDFExporter().Render(report)
	require.NoError(t, err)
	assert.Equal(t, "report_Ana_Silva.pdf", filename)
	require.Greater(t, len(data), 4)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestRenderRequiresStudentName(t *testing.T) {
	_, _, err := NewPDFExporter().Render(StudentReport{})
	require.Error(t, err)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-records-api/internal/models"
	"github.com/noah-isme/uni-records-api/internal/scheduler"
	"github.com/noah-isme/uni-records-api/internal/service"
	"github.com/noah-isme/uni-records-api/pkg/response"
)

// ReportHandler exposes the flattened enrollment report and score analytics.
type ReportHandler struct {
	reports *service.ReportService
	stats   *service.StatsService
	batch   *scheduler.Scheduler
}

// NewReportHandler constructs handler.
func NewReportHandler(reports *service.ReportService, stats *service.StatsService, batch *scheduler.Scheduler) *ReportHandler {
	return &ReportHandler{reports: reports, stats: stats, batch: batch}
}

// Rows godoc
// @Summary Flattened enrollment report rows
// @Description One row per enrollment. Ungraded enrollments appear with a null score.
// @Tags Reports
// @Produce json
// @Param universityId query string false "Filter by university"
// @Param departmentId query string false "Filter by department"
// @Param professorId query string false "Filter by professor"
// @Param subjectId query string false "Filter by subject"
// @Param studentId query string false "Filter by student"
// @Success 200 {object} response.Envelope
// @Router /reports/enrollments [get]
func (h *ReportHandler) Rows(c *gin.Context) {
	filter := models.ReportFilter{
		UniversityID: c.Query("universityId"),
		DepartmentID: c.Query("departmentId"),
		ProfessorID:  c.Query("professorId"),
		SubjectID:    c.Query("subjectId"),
		StudentID:    c.Query("studentId"),
	}
	rows, err := h.reports.Rows(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Averages godoc
// @Summary Score averages grouped by dimension
// @Tags Reports
// @Produce json
// @Param dimension query string true "Grouping dimension" Enums(university, department, professor, subject, student)
// @Success 200 {object} response.Envelope
// @Router /reports/scores [get]
func (h *ReportHandler) Averages(c *gin.Context) {
	averages, err := h.stats.Averages(c.Request.Context(), c.DefaultQuery("dimension", "subject"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, averages, nil)
}

// RunBatch godoc
// @Summary Run the pending report batch now
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/batch [post]
func (h *ReportHandler) RunBatch(c *gin.Context) {
	result := h.batch.RunOnce(c.Request.Context())
	response.JSON(c, http.StatusOK, result, nil)
}

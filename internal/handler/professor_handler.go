package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-records-api/internal/service"
	appErrors "github.com/noah-isme/uni-records-api/pkg/errors"
	"github.com/noah-isme/uni-records-api/pkg/response"
)

// ProfessorHandler exposes professor endpoints.
type ProfessorHandler struct {
	catalog *service.CatalogService
}

// NewProfessorHandler constructs handler.
func NewProfessorHandler(catalog *service.CatalogService) *ProfessorHandler {
	return &ProfessorHandler{catalog: catalog}
}

// List godoc
// @Summary List professors with enrollment counts
// @Tags Professors
// @Produce json
// @Param universityId query string false "Filter by university"
// @Param departmentId query string false "Filter by department"
// @Success 200 {object} response.Envelope
// @Router /professors [get]
func (h *ProfessorHandler) List(c *gin.Context) {
	professors, err := h.catalog.ListProfessors(c.Request.Context(), c.Query("universityId"), c.Query("departmentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, professors, nil)
}

// Create godoc
// @Summary Create a professor
// @Tags Professors
// @Accept json
// @Produce json
// @Param payload body service.CreateProfessorRequest true "Professor payload"
// @Success 201 {object} response.Envelope
// @Router /professors [post]
func (h *ProfessorHandler) Create(c *gin.Context) {
	var req service.CreateProfessorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	professor, err := h.catalog.CreateProfessor(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, professor)
}

// AssignSubject godoc
// @Summary Qualify a professor to teach a subject
// @Tags Professors
// @Produce json
// @Param id path string true "Professor ID"
// @Param subjectId path string true "Subject ID"
// @Success 204
// @Router /professors/{id}/subjects/{subjectId} [put]
func (h *ProfessorHandler) AssignSubject(c *gin.Context) {
	if err := h.catalog.AssignSubject(c.Request.Context(), c.Param("id"), c.Param("subjectId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

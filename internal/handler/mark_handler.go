package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dept-portal-api/internal/middleware"
	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/service"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/response"
)

// MarkHandler exposes mark entry and approval endpoints.
type MarkHandler struct {
	marks *service.MarkService
}

// NewMarkHandler constructs MarkHandler.
func NewMarkHandler(marks *service.MarkService) *MarkHandler {
	return &MarkHandler{marks: marks}
}

func markFilterFromQuery(c *gin.Context) models.MarkFilter {
	return models.MarkFilter{
		StudentID:   strings.TrimSpace(c.Query("studentId")),
		SubjectCode: strings.TrimSpace(c.Query("subjectCode")),
		ExamType:    strings.TrimSpace(c.Query("examType")),
		Batch:       strings.TrimSpace(c.Query("batch")),
		Section:     strings.TrimSpace(c.Query("section")),
		Status:      models.MarkStatus(strings.ToLower(strings.TrimSpace(c.Query("status")))),
	}
}

// List godoc
// @Summary List marks
// @Tags Marks
// @Produce json
// @Param studentId query string false "Student"
// @Param subjectCode query string false "Subject"
// @Param examType query string false "Exam"
// @Param batch query string false "Batch label"
// @Param section query string false "Section"
// @Param status query string false "Workflow status"
// @Success 200 {object} response.Envelope
// @Router /marks [get]
func (h *MarkHandler) List(c *gin.Context) {
	marks, err := h.marks.List(c.Request.Context(), markFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, marks, len(marks))
}

// Get godoc
// @Summary Get mark entry
// @Tags Marks
// @Produce json
// @Param id path string true "Mark ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /marks/{id} [get]
func (h *MarkHandler) Get(c *gin.Context) {
	m, err := h.marks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, m)
}

// Upsert godoc
// @Summary Record a mark
// @Description Inserts or updates the entry keyed by studentId, subjectCode and examType
// @Tags Marks
// @Accept json
// @Produce json
// @Param payload body models.MarkEntry true "Mark entry"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /marks [put]
func (h *MarkHandler) Upsert(c *gin.Context) {
	fields, ok := bindPatch(c)
	if !ok {
		return
	}
	actor := ""
	if claims := middleware.Claims(c); claims != nil {
		actor = claims.Name
	}
	saved, created, err := h.marks.Upsert(c.Request.Context(), fields, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	if created {
		response.Created(c, saved)
		return
	}
	response.JSON(c, http.StatusOK, saved)
}

// Patch godoc
// @Summary Edit mark fields
// @Tags Marks
// @Accept json
// @Produce json
// @Param id path string true "Mark ID"
// @Param payload body object true "Fields to merge"
// @Success 200 {object} response.Envelope
// @Router /marks/{id} [patch]
func (h *MarkHandler) Patch(c *gin.Context) {
	fields, ok := bindPatch(c)
	if !ok {
		return
	}
	m, err := h.marks.Patch(c.Request.Context(), c.Param("id"), fields)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, m)
}

// Transition godoc
// @Summary Move a mark through the approval workflow
// @Description saved→submitted→verified→approved; submitted or verified may be rejected; rejected may be saved or resubmitted
// @Tags Marks
// @Accept json
// @Produce json
// @Param id path string true "Mark ID"
// @Param payload body service.TransitionRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /marks/{id}/status [post]
func (h *MarkHandler) Transition(c *gin.Context) {
	var req service.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Status) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "status is required"))
		return
	}
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	status := models.MarkStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if status == models.MarkApproved && claims.Role != models.RoleAdmin {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "only admins approve marks"))
		return
	}
	m, err := h.marks.Transition(c.Request.Context(), c.Param("id"), status, claims.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, m)
}

// Delete godoc
// @Summary Delete mark entry
// @Tags Marks
// @Param id path string true "Mark ID"
// @Success 204
// @Router /marks/{id} [delete]
func (h *MarkHandler) Delete(c *gin.Context) {
	if err := h.marks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

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

// WorkflowHandler resolves leave requests and achievements.
type WorkflowHandler struct {
	leave        *service.LeaveService
	achievements *service.AchievementService
}

// NewWorkflowHandler constructs WorkflowHandler.
func NewWorkflowHandler(leave *service.LeaveService, achievements *service.AchievementService) *WorkflowHandler {
	return &WorkflowHandler{leave: leave, achievements: achievements}
}

// ResolveLeave godoc
// @Summary Approve or reject a leave request
// @Tags Leave
// @Accept json
// @Produce json
// @Param id path string true "Leave request ID"
// @Param payload body service.TransitionRequest true "approved or rejected"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leave-requests/{id}/resolve [post]
func (h *WorkflowHandler) ResolveLeave(c *gin.Context) {
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
	status := models.LeaveStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	l, err := h.leave.Resolve(c.Request.Context(), c.Param("id"), status, claims.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, l)
}

// ResolveAchievement godoc
// @Summary Review an achievement
// @Tags Achievements
// @Accept json
// @Produce json
// @Param id path string true "Achievement ID"
// @Param payload body service.ResolveAchievementRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /achievements/{id}/resolve [post]
func (h *WorkflowHandler) ResolveAchievement(c *gin.Context) {
	var req service.ResolveAchievementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	a, err := h.achievements.Resolve(c.Request.Context(), c.Param("id"), req, claims.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, a)
}

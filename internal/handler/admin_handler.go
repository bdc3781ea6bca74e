package handler

import (
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/dept-portal-api/internal/middleware"
	"github.com/noah-isme/dept-portal-api/internal/service"
	"github.com/noah-isme/dept-portal-api/pkg/blob"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/response"
)

// AdminHandler exposes maintenance operations.
type AdminHandler struct {
	bootstrap  *service.Bootstrapper
	graduation *service.GraduationService
	backups    *service.BackupService
	links      *blob.LinkSigner
	logger     *zap.Logger
	now        func() time.Time
}

// NewAdminHandler constructs AdminHandler. links verifies filesystem backup
// download tokens and may be nil when downloads are served by the bucket.
func NewAdminHandler(bootstrap *service.Bootstrapper, graduation *service.GraduationService, backups *service.BackupService, links *blob.LinkSigner, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{bootstrap: bootstrap, graduation: graduation, backups: backups, links: links, logger: logger, now: time.Now}
}

// RequestBackup godoc
// @Summary Start a store backup
// @Tags Admin
// @Produce json
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /admin/backups [post]
func (h *AdminHandler) RequestBackup(c *gin.Context) {
	actor := ""
	if claims := middleware.Claims(c); claims != nil {
		actor = claims.Email
	}
	ticket, err := h.backups.Request(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, ticket)
}

// ListBackups godoc
// @Summary List stored backups
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/backups [get]
func (h *AdminHandler) ListBackups(c *gin.Context) {
	items, err := h.backups.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{
		"total":   len(items),
		"pending": h.backups.Pending(),
	})
}

// DownloadBackup godoc
// @Summary Download a backup through a signed link
// @Tags Admin
// @Produce application/json
// @Param token query string true "Signed link token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /backups/download [get]
func (h *AdminHandler) DownloadBackup(c *gin.Context) {
	if h.links == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "backup not found"))
		return
	}
	key, err := h.links.Parse(c.Query("token"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "backup link is invalid or expired"))
		return
	}
	info, body, err := h.backups.Open(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer body.Close()
	h.logger.Info("backup downloaded", zap.String("key", info.Key), zap.String("ip", c.ClientIP()))

	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", `attachment; filename="`+path.Base(info.Key)+`"`)
	c.DataFromReader(http.StatusOK, info.Size, "application/json", body, nil)
}

// RecomputeGraduation godoc
// @Summary Recompute graduation status
// @Description Marks students of batches whose final semester has ended as Graduated
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/graduation/recompute [post]
func (h *AdminHandler) RecomputeGraduation(c *gin.Context) {
	report, err := h.graduation.Recompute(c.Request.Context(), h.now())
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to recompute graduation"))
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// Migrations godoc
// @Summary List applied store migrations
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/migrations [get]
func (h *AdminHandler) Migrations(c *gin.Context) {
	applied, err := h.bootstrap.Applied(c.Request.Context())
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to read migration ledger"))
		return
	}
	response.JSON(c, http.StatusOK, applied, map[string]interface{}{"state": h.bootstrap.State()})
}

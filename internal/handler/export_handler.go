package handler

import (
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/service"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/export"
	"github.com/noah-isme/dept-portal-api/pkg/response"
)

// ExportHandler streams CSV and PDF documents.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Download godoc
// @Summary Download an export
// @Description marks.csv, marks.pdf, students.csv or students.pdf
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param file path string true "Document name"
// @Param batch query string false "Batch label"
// @Param section query string false "Section"
// @Param subjectCode query string false "Subject (marks only)"
// @Param examType query string false "Exam (marks only)"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /exports/{file} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file := c.Param("file")
	ext := path.Ext(file)
	format, err := export.ParseFormat(strings.TrimPrefix(ext, "."))
	if err != nil {
		response.Error(c, appErrors.Invalid(err, err.Error()))
		return
	}

	var result *service.ExportResult
	switch strings.TrimSuffix(file, ext) {
	case "marks":
		result, err = h.exports.Marks(c.Request.Context(), markFilterFromQuery(c), format)
	case "students":
		result, err = h.exports.Students(c.Request.Context(), studentFilterFromQuery(c), format)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "unknown export "+file))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, result.Filename, result.ContentType, result.Body)
}

func studentFilterFromQuery(c *gin.Context) models.StudentFilter {
	return models.StudentFilter{
		Batch:   strings.TrimSpace(c.Query("batch")),
		Section: strings.TrimSpace(c.Query("section")),
		Status:  models.StudentStatus(strings.TrimSpace(c.Query("status"))),
	}
}

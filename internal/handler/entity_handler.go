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

// QueryFilter derives a record predicate from the request query. A nil
// predicate keeps every record.
type QueryFilter[T any] func(c *gin.Context) func(T) bool

// Owner ties the records of a collection to the student that filed them.
// Field is the JSON name of the student id, Of reads it from a record.
type Owner[T any] struct {
	Field string
	Of    func(T) string
}

// EntityHandler serves list/get/create/patch/delete for one collection.
type EntityHandler[T any] struct {
	svc    *service.EntityService[T]
	filter QueryFilter[T]
	owner  *Owner[T]
}

// NewEntityHandler constructs an EntityHandler.
func NewEntityHandler[T any](svc *service.EntityService[T], filter QueryFilter[T]) *EntityHandler[T] {
	return &EntityHandler[T]{svc: svc, filter: filter}
}

// OwnedBy restricts student writes to records carrying the student's own id.
func (h *EntityHandler[T]) OwnedBy(owner Owner[T]) *EntityHandler[T] {
	h.owner = &owner
	return h
}

// List returns the collection, narrowed by query parameters when supported.
func (h *EntityHandler[T]) List(c *gin.Context) {
	var keep func(T) bool
	if h.filter != nil {
		keep = h.filter(c)
	}
	items, err := h.svc.List(c.Request.Context(), keep)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items, len(items))
}

// Get returns one record.
func (h *EntityHandler[T]) Get(c *gin.Context) {
	item, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item)
}

// Create stores a new record. Client supplied id and createdAt are replaced.
func (h *EntityHandler[T]) Create(c *gin.Context) {
	var item T
	if err := c.ShouldBindJSON(&item); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid "+h.svc.Name()+" payload"))
		return
	}
	if ref, restricted := h.studentRef(c); restricted && (ref == "" || h.owner.Of(item) != ref) {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "students may only file their own "+h.svc.Name()+" records"))
		return
	}
	created, err := h.svc.Create(c.Request.Context(), item)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Patch shallow-merges the request body into the record.
func (h *EntityHandler[T]) Patch(c *gin.Context) {
	fields, ok := bindPatch(c)
	if !ok {
		return
	}
	if !h.allowOwner(c) {
		return
	}
	if ref, restricted := h.studentRef(c); restricted {
		if v, sent := fields[h.owner.Field]; sent && v != ref {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, h.owner.Field+" cannot be reassigned"))
			return
		}
	}
	updated, err := h.svc.Patch(c.Request.Context(), c.Param("id"), fields)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated)
}

// Delete removes the record.
func (h *EntityHandler[T]) Delete(c *gin.Context) {
	if !h.allowOwner(c) {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// studentRef returns the caller's student id when its writes are limited to
// its own records.
func (h *EntityHandler[T]) studentRef(c *gin.Context) (string, bool) {
	if h.owner == nil {
		return "", false
	}
	claims := middleware.Claims(c)
	if claims == nil || claims.Role != models.RoleStudent {
		return "", false
	}
	return claims.RefID, true
}

// allowOwner loads the addressed record and rejects students that do not own
// it. It writes the error response itself.
func (h *EntityHandler[T]) allowOwner(c *gin.Context) bool {
	ref, restricted := h.studentRef(c)
	if !restricted {
		return true
	}
	item, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return false
	}
	if ref == "" || h.owner.Of(item) != ref {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "record belongs to another student"))
		return false
	}
	return true
}

func bindPatch(c *gin.Context) (map[string]any, bool) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "patch body must be a JSON object"))
		return nil, false
	}
	if len(fields) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "patch body is empty"))
		return nil, false
	}
	return fields, true
}

// FieldFilter matches query parameters against string fields of T. Only
// parameters present on the request take part.
func FieldFilter[T any](fields map[string]func(T) string) QueryFilter[T] {
	return func(c *gin.Context) func(T) bool {
		wanted := make(map[string]string)
		for name := range fields {
			if v := strings.TrimSpace(c.Query(name)); v != "" {
				wanted[name] = v
			}
		}
		if len(wanted) == 0 {
			return nil
		}
		return func(item T) bool {
			for name, v := range wanted {
				if fields[name](item) != v {
					return false
				}
			}
			return true
		}
	}
}

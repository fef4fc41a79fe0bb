package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skipd/skipd-api/internal/middleware"
	"github.com/skipd/skipd-api/internal/service"
	appErrors "github.com/skipd/skipd-api/pkg/errors"
	"github.com/skipd/skipd-api/pkg/response"
)

// SubjectHandler handles subject endpoints.
type SubjectHandler struct {
	service *service.SubjectService
}

// NewSubjectHandler constructs a subject handler.
func NewSubjectHandler(svc *service.SubjectService) *SubjectHandler {
	return &SubjectHandler{service: svc}
}

// Create godoc
// @Summary Create subject
// @Description Create a subject under the given institution
// @Tags Subjects
// @Accept json
// @Produce json
// @Param id path int true "Institution ID"
// @Param payload body service.CreateSubjectRequest true "Subject payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{id}/subjects [post]
func (h *SubjectHandler) Create(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	institutionID, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid institution id"))
		return
	}

	var req service.CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	subject, err := h.service.Create(c.Request.Context(), principal.ID, institutionID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subject)
}

// ListByInstitution godoc
// @Summary List subjects of an institution
// @Tags Subjects
// @Produce json
// @Param id path int true "Institution ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{id}/subjects [get]
func (h *SubjectHandler) ListByInstitution(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	institutionID, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid institution id"))
		return
	}

	subjects, cacheHit, err := h.service.ListByInstitution(c.Request.Context(), principal.ID, institutionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, subjects, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Export subjects of an institution
// @Description Download the subject table as CSV or PDF
// @Tags Subjects
// @Produce text/csv
// @Produce application/pdf
// @Param id path int true "Institution ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{id}/subjects/export [get]
func (h *SubjectHandler) Export(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	institutionID, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid institution id"))
		return
	}

	result, err := h.service.Export(c.Request.Context(), principal.ID, institutionID, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

// Get godoc
// @Summary Get subject by id
// @Tags Subjects
// @Produce json
// @Param id path int true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /subjects/{id} [get]
func (h *SubjectHandler) Get(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid subject id"))
		return
	}

	subject, err := h.service.Get(c.Request.Context(), principal.ID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject)
}

// Update godoc
// @Summary Update subject
// @Description Apply a partial update; absent fields stay untouched
// @Tags Subjects
// @Accept json
// @Produce json
// @Param id path int true "Subject ID"
// @Param payload body service.UpdateSubjectRequest true "Changed fields"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /subjects/{id} [put]
func (h *SubjectHandler) Update(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid subject id"))
		return
	}

	var req service.UpdateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	subject, err := h.service.Update(c.Request.Context(), principal.ID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject)
}

// Delete godoc
// @Summary Delete subject
// @Tags Subjects
// @Produce json
// @Param id path int true "Subject ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /subjects/{id} [delete]
func (h *SubjectHandler) Delete(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid subject id"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), principal.ID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

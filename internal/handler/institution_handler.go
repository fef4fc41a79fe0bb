package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skipd/skipd-api/internal/service"
	appErrors "github.com/skipd/skipd-api/pkg/errors"
	"github.com/skipd/skipd-api/pkg/response"
)

// InstitutionHandler handles institution endpoints.
type InstitutionHandler struct {
	service *service.InstitutionService
}

// NewInstitutionHandler constructs an institution handler.
func NewInstitutionHandler(svc *service.InstitutionService) *InstitutionHandler {
	return &InstitutionHandler{service: svc}
}

// Create godoc
// @Summary Create institution
// @Description Create an institution owned by the given user
// @Tags Institutions
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param payload body service.CreateInstitutionRequest true "Institution payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id}/institutions [post]
func (h *InstitutionHandler) Create(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	userID, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid user id"))
		return
	}

	var req service.CreateInstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	institution, err := h.service.Create(c.Request.Context(), principal.ID, userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, institution)
}

// ListByUser godoc
// @Summary List institutions of a user
// @Tags Institutions
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/{id}/institutions [get]
func (h *InstitutionHandler) ListByUser(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	userID, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid user id"))
		return
	}

	institutions, err := h.service.ListByUser(c.Request.Context(), principal.ID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, institutions)
}

// Get godoc
// @Summary Get institution by id
// @Tags Institutions
// @Produce json
// @Param id path int true "Institution ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{id} [get]
func (h *InstitutionHandler) Get(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid institution id"))
		return
	}

	institution, err := h.service.Get(c.Request.Context(), principal.ID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, institution)
}

// Update godoc
// @Summary Update institution
// @Description Apply a partial update; absent fields stay untouched
// @Tags Institutions
// @Accept json
// @Produce json
// @Param id path int true "Institution ID"
// @Param payload body service.UpdateInstitutionRequest true "Changed fields"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{id} [put]
func (h *InstitutionHandler) Update(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid institution id"))
		return
	}

	var req service.UpdateInstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	institution, err := h.service.Update(c.Request.Context(), principal.ID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, institution)
}

// Delete godoc
// @Summary Delete institution
// @Description Removes the institution together with its subjects
// @Tags Institutions
// @Produce json
// @Param id path int true "Institution ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /institutions/{id} [delete]
func (h *InstitutionHandler) Delete(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid institution id"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), principal.ID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

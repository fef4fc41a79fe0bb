package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skipd/skipd-api/internal/models"
	"github.com/skipd/skipd-api/internal/service"
	appErrors "github.com/skipd/skipd-api/pkg/errors"
	"github.com/skipd/skipd-api/pkg/response"
)

// UserHandler handles account endpoints.
type UserHandler struct {
	service *service.UserService
}

// NewUserHandler constructs a user handler.
func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{service: svc}
}

// Register godoc
// @Summary Sign up
// @Description Create a new account; the only unauthenticated mutation
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body service.RegisterUserRequest true "Signup payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users [post]
func (h *UserHandler) Register(c *gin.Context) {
	var req service.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// Get godoc
// @Summary Get own account
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid user id"))
		return
	}

	user, err := h.service.Get(c.Request.Context(), principal.ID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user)
}

// Update godoc
// @Summary Update own account
// @Description Apply a partial update; absent fields stay untouched
// @Tags Users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param payload body service.UpdateUserRequest true "Changed fields"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid user id"))
		return
	}

	var req service.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	user, err := h.service.Update(c.Request.Context(), principal.ID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user)
}

// Delete godoc
// @Summary Delete own account
// @Description Removes the account with all institutions and subjects
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid user id"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), principal.ID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ChangePassword godoc
// @Summary Change password
// @Description Verify the current password and store a new one
// @Tags Users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param payload body models.ChangePasswordRequest true "Password change"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Router /users/{id}/password [put]
func (h *UserHandler) ChangePassword(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid user id"))
		return
	}

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), principal.ID, id, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

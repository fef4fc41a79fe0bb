package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/skipd/skipd-api/internal/middleware"
	"github.com/skipd/skipd-api/internal/models"
)

func principalFromContext(c *gin.Context) *models.User {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	principal, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return principal
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

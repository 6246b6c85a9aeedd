package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/psy-schedule-api/internal/middleware"
	"github.com/noah-isme/psy-schedule-api/internal/models"
	appErrors "github.com/noah-isme/psy-schedule-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext builds the acting user from the authenticated request.
// The bearer token is kept so backend calls run with the caller's identity.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		return models.Actor{}, false
	}
	token, _ := c.Get(middleware.ContextTokenKey)
	raw, _ := token.(string)
	return models.Actor{
		UserID:    claims.UserID,
		Role:      claims.Role,
		Token:     raw,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}, true
}

func appointmentIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "appointment id must be a positive integer")
	}
	return id, nil
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hr-admin-api/internal/middleware"
	"github.com/noah-isme/hr-admin-api/internal/models"
	"github.com/noah-isme/hr-admin-api/internal/service"
	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
	"github.com/noah-isme/hr-admin-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext describes the caller for audit trails.
func actorFromContext(c *gin.Context) service.Actor {
	actor := service.Actor{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	if claims := claimsFromContext(c); claims != nil {
		actor.ID = claims.EmployeeID
	}
	return actor
}

// bindJSON decodes the request body into dest and answers 400 with msg when
// the payload is malformed or fails its binding tags.
func bindJSON(c *gin.Context, dest interface{}, msg string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, msg))
		return false
	}
	return true
}

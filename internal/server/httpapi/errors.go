package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aimathteacher/backend/internal/common"
	"github.com/aimathteacher/backend/internal/server/auth"
)

// respondError maps service errors onto HTTP statuses. Unrecognized errors
// become opaque 500s so internals never leak to the client.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrorDuplicateEmail),
		errors.Is(err, auth.ErrPasswordLength),
		errors.Is(err, common.ErrResetTokenInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrorInvalidCredentials),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrRefreshTokenExpired),
		errors.Is(err, common.ErrorUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrorAccessDenied),
		errors.Is(err, common.ErrorAccountInactive):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrorNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, common.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	case errors.Is(err, common.ErrUpstreamUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "the tutor is unavailable right now, try again in a minute"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

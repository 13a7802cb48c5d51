package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nexus-storefront/internal/ai"
	"nexus-storefront/internal/domain"
	"nexus-storefront/internal/identity"
	cartsvc "nexus-storefront/internal/service/cart"
	customersvc "nexus-storefront/internal/service/customer"
)

// statusFor maps service errors to HTTP statuses. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, identity.ErrUnauthenticated),
		errors.Is(err, customersvc.ErrInvalidCredentials),
		errors.Is(err, cartsvc.ErrSignedOut):
		return http.StatusUnauthorized
	case errors.Is(err, customersvc.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, cartsvc.ErrOutOfStock),
		errors.Is(err, cartsvc.ErrSizeRequired),
		errors.Is(err, cartsvc.ErrSizeUnavailable),
		errors.Is(err, cartsvc.ErrUnknownSize):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ai.ErrNotConfigured),
		errors.Is(err, cartsvc.ErrRegistryClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *handlers) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

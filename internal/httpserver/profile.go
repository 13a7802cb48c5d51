package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"nexus-storefront/internal/domain"
	profilesvc "nexus-storefront/internal/service/profile"
)

func (h *handlers) getProfile(c *gin.Context) {
	view, err := h.deps.Profiles.Get(c.Request.Context(), *currentIdentity(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) updateProfile(c *gin.Context) {
	var req profilesvc.Update
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	view, err := h.deps.Profiles.Update(c.Request.Context(), *currentIdentity(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) myOrders(c *gin.Context) {
	orders, err := h.deps.Orders.ListForUser(c.Request.Context(), currentIdentity(c).UID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"total": len(orders), "results": orders})
}

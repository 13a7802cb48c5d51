package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	checkoutsvc "nexus-storefront/internal/service/checkout"
)

type checkoutRequest struct {
	Phone   *string                         `json:"phone"`
	Address *string                         `json:"address"`
	Payment checkoutsvc.PaymentMethod       `json:"payment"`
	Wallet  *checkoutsvc.WalletConfirmation `json:"wallet"`
}

func (h *handlers) checkoutInstructions(c *gin.Context) {
	in, err := h.deps.Checkout.Instructions(c.Request.Context(), sessionKey(c), currentIdentity(c).UID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, in)
}

func (h *handlers) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if req.Payment == "" {
		req.Payment = checkoutsvc.PaymentCOD
	}
	res := h.deps.Checkout.Checkout(c.Request.Context(), checkoutsvc.Request{
		Identity:       currentIdentity(c),
		SessionKey:     sessionKey(c),
		Phone:          req.Phone,
		Address:        req.Address,
		Payment:        req.Payment,
		Wallet:         req.Wallet,
		IdempotencyKey: c.GetHeader(headerIdempotencyKey),
	})
	c.JSON(checkoutStatus(res), res)
}

func checkoutStatus(res checkoutsvc.Result) int {
	switch res.State {
	case checkoutsvc.StateSuccess:
		return http.StatusCreated
	case checkoutsvc.StateIdle:
		return http.StatusOK
	case checkoutsvc.StateFailed:
		return http.StatusInternalServerError
	case checkoutsvc.StateBlocked:
		switch res.Reason {
		case checkoutsvc.ReasonNotAuthenticated:
			return http.StatusUnauthorized
		case checkoutsvc.ReasonEmailNotVerified:
			return http.StatusForbidden
		case checkoutsvc.ReasonInProgress:
			return http.StatusConflict
		}
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	customersvc "nexus-storefront/internal/service/customer"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

// signup creates an unverified account. The verification token stands in for
// the link a mailer would deliver.
func (h *handlers) signup(c *gin.Context) {
	var req customersvc.SignupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	acct, verifyToken, err := h.deps.Accounts.Signup(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"account":           acct,
		"verificationToken": verifyToken,
	})
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	acct, token, err := h.deps.Accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   h.deps.Accounts.AccessTTLSeconds(),
		"account":      acct,
	})
}

func (h *handlers) verifyEmail(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		badRequest(c, "token is required")
		return
	}
	if err := h.deps.Accounts.ConfirmEmail(c.Request.Context(), req.Token); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "verified"})
}

// logout revokes the credential and drops the session's cart mirror. The
// persisted cart is kept for the next sign-in.
func (h *handlers) logout(c *gin.Context) {
	who := currentIdentity(c)
	h.deps.Carts.SignOut(sessionKey(c))
	if err := h.deps.Identity.SignOut(c.Request.Context(), *who, c.GetString(ctxToken)); err != nil {
		h.logger.Warn("sign out", zap.String("uid", who.UID), zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}

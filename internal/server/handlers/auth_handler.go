package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/storefront/internal/app"
	"github.com/mamadbah2/storefront/internal/domain/models"
	"github.com/mamadbah2/storefront/internal/service/auth"
)

// AuthHandler signs terminals in and out.
type AuthHandler struct {
	app    *app.App
	auth   *auth.Service
	logger *zap.Logger
}

// NewAuthHandler constructs the login handler.
func NewAuthHandler(application *app.App, authSvc *auth.Service, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{app: application, auth: authSvc, logger: logger}
}

// Login checks the credentials, opens a fresh terminal session behind an
// HttpOnly cookie and returns the token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	token, err := h.auth.Login(c.Request.Context(), req.CustomerName, req.Password)
	if err != nil {
		respondError(c, h.logger, "login failed", err)
		return
	}

	if previous, ok := optionalSession(c); ok {
		h.app.EndSession(c.Request.Context(), previous.ID())
	}

	session := h.app.NewSession()
	if err := session.SignIn(c.Request.Context(), token); err != nil {
		h.app.EndSession(c.Request.Context(), session.ID())
		respondError(c, h.logger, "failed to sign in terminal", err)
		return
	}
	setSessionCookie(c, session.ID(), time.Until(token.ExpiresAt))

	h.logger.Info("terminal signed in",
		zap.String("session_id", session.ID()),
		zap.String("identity", string(token.Identity.Type)),
		zap.String("customer", token.Identity.CustomerName))

	c.JSON(http.StatusOK, token)
}

// Logout ends the cookie session, if any, and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	if session, ok := optionalSession(c); ok {
		h.app.EndSession(c.Request.Context(), session.ID())
	}
	setSessionCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

func setSessionCookie(c *gin.Context, id string, ttl time.Duration) {
	maxAge := -1
	if ttl > 0 {
		maxAge = int(ttl / time.Second)
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookie, id, maxAge, "/", "", c.Request.TLS != nil, true)
}

// Me returns the identity the request is scoped to.
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, identityFrom(c))
}

package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/storefront/internal/app"
	"github.com/mamadbah2/storefront/internal/domain/models"
	"github.com/mamadbah2/storefront/internal/fetch"
	"github.com/mamadbah2/storefront/internal/service/auth"
	"github.com/mamadbah2/storefront/internal/service/orders"
	"github.com/mamadbah2/storefront/internal/service/pos"
	"github.com/mamadbah2/storefront/internal/service/reporting"
	"github.com/mamadbah2/storefront/pkg/clients/appscript"
)

// SessionCookie carries the server-issued terminal session id.
const SessionCookie = "storefront_session"

const (
	sessionKey  = "session"
	identityKey = "identity"
)

var errProductNotFound = errors.New("product not found")

// Middleware resolves the terminal session and the caller identity.
type Middleware struct {
	app    *app.App
	auth   *auth.Service
	logger *zap.Logger
}

// NewMiddleware constructs the session and auth middleware.
func NewMiddleware(application *app.App, authSvc *auth.Service, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{app: application, auth: authSvc, logger: logger}
}

// Session attaches the live session named by the session cookie. Unknown ids
// are ignored and never create a session.
func (m *Middleware) Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, err := c.Cookie(SessionCookie); err == nil {
			if session, ok := m.app.ResumeSession(c.Request.Context(), id); ok {
				c.Set(sessionKey, session)
			}
		}
		c.Next()
	}
}

// RequireAuth accepts a bearer token, or the token remembered by the cookie
// session at login, and scopes the session to its identity. A bearer token
// without a cookie gets a session derived from the token itself.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, hasSession := optionalSession(c)

		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" && hasSession {
			if stored, ok := session.StoredToken(c.Request.Context()); ok {
				raw = stored.Token
			}
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		identity, err := m.auth.Parse(raw)
		if err != nil {
			m.logger.Debug("rejected token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		if !hasSession {
			session = m.app.Session(bearerSessionID(raw))
			c.Set(sessionKey, session)
		}

		if err := session.Adopt(identity); err != nil {
			m.logger.Error("failed to scope session", zap.String("session_id", session.ID()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireStore rejects customer identities.
func (m *Middleware) RequireStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !identityFrom(c).IsStore() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "store login required"})
			return
		}
		c.Next()
	}
}

func sessionFrom(c *gin.Context) *app.Session {
	return c.MustGet(sessionKey).(*app.Session)
}

func optionalSession(c *gin.Context) (*app.Session, bool) {
	if v, ok := c.Get(sessionKey); ok {
		if session, ok := v.(*app.Session); ok {
			return session, true
		}
	}
	return nil, false
}

// bearerSessionID names the session of a verified bearer token.
func bearerSessionID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "bearer:" + hex.EncodeToString(sum[:])
}

func identityFrom(c *gin.Context) models.Identity {
	if v, ok := c.Get(identityKey); ok {
		if identity, ok := v.(models.Identity); ok {
			return identity
		}
	}
	return models.Identity{}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, app.ErrNotSignedIn):
		return http.StatusUnauthorized
	case errors.Is(err, orders.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, orders.ErrReceiptNotFound), errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, pos.ErrItemNotFound), errors.Is(err, errProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, pos.ErrEmptyCart), errors.Is(err, pos.ErrPaymentExceedsTotal), errors.Is(err, pos.ErrNegativePayment),
		errors.Is(err, pos.ErrInvalidQuantity), errors.Is(err, pos.ErrNegativeRate), errors.Is(err, pos.ErrCustomerRequired),
		errors.Is(err, reporting.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, pos.ErrSharingDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, appscript.ErrRejected), errors.Is(err, fetch.ErrNetwork),
		errors.Is(err, fetch.ErrParse), errors.Is(err, fetch.ErrEmptyResult):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err))
	} else {
		logger.Debug(msg, zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

package authctx

import (
	"context"
	"errors"
	"net/http"

	"auth-shell/internal/auth"
	"auth-shell/internal/logger"
	"auth-shell/internal/session"

	"github.com/gin-gonic/gin"
)

// Mount resolves the auth state of every request and attaches it to the
// request context. Redirect callbacks are completed here and answered with
// a redirect to the same path without the query.
func (p *Provider) Mount() gin.HandlerFunc {
	return func(c *gin.Context) {
		r := c.Request

		if r.Method == http.MethodGet && IsRedirectCallback(r.URL) {
			p.completeCallback(c)
			return
		}

		sessionID := session.IDFromRequest(r, p.cookie)

		state, err := p.Resolve(r.Context(), sessionID)
		if err != nil {
			var initErr *InitError
			if !errors.As(err, &initErr) {
				logger.FromContext(r.Context()).Warn("auth state resolution failed", "error", err)
			}
			state = State{}
		}

		c.Request = r.WithContext(WithValue(r.Context(), &Value{
			State:     state,
			SessionID: sessionID,
			provider:  p,
		}))
		c.Next()
	}
}

func (p *Provider) completeCallback(c *gin.Context) {
	next, err := p.HandleRedirectCallback(c.Writer, c.Request)
	if err != nil {
		logger.FromContext(c.Request.Context()).Warn("redirect callback failed", "error", err)

		status, msg := ErrorStatus(err)
		c.AbortWithStatusJSON(status, gin.H{"error": msg})
		return
	}

	c.Redirect(http.StatusSeeOther, next)
	c.Abort()
}

// ErrorStatus maps an auth error to an HTTP status and a client-safe message.
func ErrorStatus(err error) (int, string) {
	var initErr *InitError
	var cbErr *auth.CallbackError

	switch {
	case errors.Is(err, ErrClientNotReady),
		errors.As(err, &initErr),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "identity provider unavailable"
	case errors.Is(err, auth.ErrLoginRequired):
		return http.StatusUnauthorized, "login required"
	case errors.As(err, &cbErr):
		return http.StatusUnauthorized, cbErr.Code
	case errors.Is(err, auth.ErrInvalidState),
		errors.Is(err, auth.ErrMissingCode),
		errors.Is(err, auth.ErrNonceMismatch):
		return http.StatusUnauthorized, "authentication failed"
	default:
		return http.StatusBadGateway, "identity provider error"
	}
}

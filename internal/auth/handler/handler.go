package handler

import (
	"net/http"

	"auth-shell/internal/auth/client"
	"auth-shell/internal/authctx"
	"auth-shell/internal/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	// logoutReturnTo is where the identity provider sends the browser after
	// a federated logout. It must be listed as an allowed logout URL.
	logoutReturnTo string
}

func NewHandler(logoutReturnTo string) *Handler {
	return &Handler{logoutReturnTo: logoutReturnTo}
}

// RegisterRoutes mounts the login and logout endpoints. guard runs in front
// of /login only.
func (h *Handler) RegisterRoutes(r *gin.Engine, guard ...gin.HandlerFunc) {
	r.GET("/login", append(guard, h.login)...)
	r.POST("/logout", h.logout)
}

// RegisterAPI mounts the session-backed JSON endpoints on an authenticated
// group.
func (h *Handler) RegisterAPI(api *gin.RouterGroup) {
	api.GET("/me", h.me)
	api.GET("/token", h.token)
	api.GET("/claims", h.claims)
}

// LogRoutes prints every registered route once at startup.
func LogRoutes(r *gin.Engine) {
	for _, route := range r.Routes() {
		logger.Debug("route registered", map[string]any{
			"method": route.Method,
			"path":   route.Path,
		})
	}
}

func (h *Handler) login(c *gin.Context) {
	v, ok := authValue(c)
	if !ok {
		return
	}

	authURL, err := v.Provider().LoginWithRedirect(c.Writer, c.Request, client.LoginOptions{
		ReturnTo:   c.Query("returnTo"),
		Prompt:     c.Query("prompt"),
		ScreenHint: c.Query("screen_hint"),
	})
	if err != nil {
		fail(c, "login redirect failed", err)
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

func (h *Handler) logout(c *gin.Context) {
	v, ok := authValue(c)
	if !ok {
		return
	}

	next, err := v.Provider().Logout(c.Writer, c.Request, client.LogoutOptions{
		ReturnTo:  h.logoutReturnTo,
		LocalOnly: c.Query("local") == "1",
	})
	if err != nil {
		fail(c, "logout failed", err)
		return
	}

	logger.FromContext(c.Request.Context()).Info("logout",
		"had_session", v.SessionID != "",
		"ip", c.ClientIP(),
	)

	c.Redirect(http.StatusSeeOther, next)
}

func (h *Handler) me(c *gin.Context) {
	v, ok := authValue(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, v.User)
}

func (h *Handler) token(c *gin.Context) {
	v, ok := authValue(c)
	if !ok {
		return
	}

	tok, err := v.Provider().GetTokenSilently(c.Request.Context(), v.SessionID, client.TokenOptions{
		IgnoreCache: c.Query("fresh") == "1",
	})
	if err != nil {
		fail(c, "token fetch failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": tok,
	})
}

func (h *Handler) claims(c *gin.Context) {
	v, ok := authValue(c)
	if !ok {
		return
	}

	claims, err := v.Provider().GetIDTokenClaims(c.Request.Context(), v.SessionID)
	if err != nil {
		fail(c, "id token claims failed", err)
		return
	}

	out := make(gin.H, len(claims.Claims)+1)
	for k, val := range claims.Claims {
		out[k] = val
	}
	out["__raw"] = claims.Raw

	c.JSON(http.StatusOK, out)
}

func authValue(c *gin.Context) (*authctx.Value, bool) {
	v, err := authctx.FromContext(c.Request.Context())
	if err != nil {
		logger.Error("auth handler outside provider", map[string]any{
			"path": c.FullPath(),
		})
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "internal error",
		})
		return nil, false
	}
	return v, true
}

func fail(c *gin.Context, msg string, err error) {
	status, public := authctx.ErrorStatus(err)
	logger.FromContext(c.Request.Context()).Warn(msg,
		"error", err,
		"status", status,
	)
	c.AbortWithStatusJSON(status, gin.H{
		"error": public,
	})
}

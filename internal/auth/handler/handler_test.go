package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"auth-shell/internal/auth/authtest"
	"auth-shell/internal/auth/client"
	"auth-shell/internal/authctx"
	"auth-shell/internal/middleware"
	"auth-shell/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	engine *gin.Engine
	idp    *authtest.Provider
	cookie *http.Cookie
	flow   *http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &testServer{idp: authtest.NewProvider()}
	store, _ := authtest.NewRedisStore(t)

	p := authctx.New(func(context.Context) (*client.Client, error) {
		return client.New(s.idp, store, client.Options{SessionTTL: time.Hour}), nil
	}, session.NewFlowStore([]byte("0123456789abcdef0123456789abcdef"), true), session.DefaultCookieOptions(true))
	p.Start(context.Background())
	<-p.Ready()

	r := gin.New()
	r.Use(p.Mount())

	h := NewHandler("https://app.example.com/")
	h.RegisterRoutes(r)

	api := r.Group("/api")
	api.Use(middleware.GinRequireAuth())
	h.RegisterAPI(api)

	s.engine = r
	return s
}

func (s *testServer) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for _, c := range []*http.Cookie{s.cookie, s.flow} {
		if c != nil {
			req.AddCookie(c)
		}
	}

	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		switch {
		case c.Name == session.CookieName && c.MaxAge < 0:
			s.cookie = nil
		case c.Name == session.CookieName:
			s.cookie = c
		case c.MaxAge < 0:
			s.flow = nil
		default:
			s.flow = c
		}
	}
	return rec
}

func (s *testServer) signIn(t *testing.T) {
	t.Helper()
	rec := s.do(t, http.MethodGet, "/login")
	require.Equal(t, http.StatusFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/?code="+authtest.GoodCode+"&state="+url.QueryEscape(s.idp.LastAuthorize().State))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.NotNil(t, s.cookie)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestLoginRedirect(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/login?returnTo=%2Fdashboard&screen_hint=signup")
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "idp.example.com", loc.Host)
	assert.NotEmpty(t, loc.Query().Get("state"))
	assert.Equal(t, "signup", s.idp.LastAuthorize().ScreenHint)
	assert.NotNil(t, s.flow, "login transaction cookie issued")
}

func TestAPIRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/me", "/api/token", "/api/claims"} {
		rec := s.do(t, http.MethodGet, path)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestMe(t *testing.T) {
	s := newTestServer(t)
	s.signIn(t)

	rec := s.do(t, http.MethodGet, "/api/me")
	require.Equal(t, http.StatusOK, rec.Code)

	me := decode(t, rec)
	assert.Equal(t, authtest.Subject, me["sub"])
	assert.Equal(t, "test@example.com", me["email"])
}

func TestToken(t *testing.T) {
	s := newTestServer(t)
	s.signIn(t)

	rec := s.do(t, http.MethodGet, "/api/token")
	require.Equal(t, http.StatusOK, rec.Code)
	cached := decode(t, rec)["access_token"]
	assert.NotEmpty(t, cached)
	assert.Zero(t, s.idp.Refreshes())

	rec = s.do(t, http.MethodGet, "/api/token?fresh=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, cached, decode(t, rec)["access_token"])
	assert.Equal(t, 1, s.idp.Refreshes())
}

func TestClaims(t *testing.T) {
	s := newTestServer(t)
	s.signIn(t)

	rec := s.do(t, http.MethodGet, "/api/claims")
	require.Equal(t, http.StatusOK, rec.Code)

	claims := decode(t, rec)
	assert.Equal(t, authtest.Subject, claims["sub"])
	assert.Equal(t, "header.payload.signature", claims["__raw"])
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	s.signIn(t)

	rec := s.do(t, http.MethodPost, "/logout")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/v2/logout", loc.Path)
	assert.Equal(t, "https://app.example.com/", loc.Query().Get("returnTo"))
	assert.Nil(t, s.cookie)

	rec = s.do(t, http.MethodGet, "/api/me")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutLocalOnly(t *testing.T) {
	s := newTestServer(t)
	s.signIn(t)

	rec := s.do(t, http.MethodPost, "/logout?local=1")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestHandlersOutsideProvider(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler("/").RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

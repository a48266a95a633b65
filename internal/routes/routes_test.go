package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testGuard mirrors the real guard's contract: no identity header means
// the login-redirect payload, otherwise the user id lands in the context.
func testGuard(c *gin.Context) {
	uid := c.GetHeader("X-User-Id")
	if uid == "" {
		Deny(c)
		return
	}
	c.Set("user_db_id", uid)
	c.Next()
}

func buildTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	table := Table{
		{Method: http.MethodGet, Path: "/feed", Auth: false, Handler: func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
		}},
		{Method: http.MethodGet, Path: "/mine", Auth: true, Handler: func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true, "user": c.GetString("user_db_id")})
		}},
	}
	table.Mount(r.Group("/api/v1/things"), testGuard)
	return r
}

func TestGuardedRouteWithoutIdentityRedirectsToLogin(t *testing.T) {
	r := buildTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/things/mine", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, LoginPath, body["login_url"])
}

func TestGuardedRouteWithIdentitySucceeds(t *testing.T) {
	r := buildTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/things/mine", nil)
	req.Header.Set("X-User-Id", "user-123")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "user-123", body["user"])
}

func TestPublicRouteSkipsGuard(t *testing.T) {
	r := buildTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/things/feed", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGuardRunsBeforeHandlerOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	invoked := false
	table := Table{
		{Method: http.MethodDelete, Path: "/x", Auth: true, Handler: func(c *gin.Context) {
			invoked = true
			c.Status(http.StatusNoContent)
		}},
	}
	table.Mount(r.Group("/"), testGuard)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/x", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, invoked, "handler must not run when the guard denies")
}

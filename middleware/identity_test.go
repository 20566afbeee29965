package middleware

import (
	"Storefront/pkg/context"
	"Storefront/pkg/jwt"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

// fixedIDs 按顺序返回预设的会话号
type fixedIDs struct {
	n int
}

func (f *fixedIDs) NewID() string {
	f.n++
	return fmt.Sprintf("sess-%d", f.n)
}

func newEngine(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", mw, func(c *gin.Context) {
		sid, _ := context.GetSessionID(c)
		c.JSON(http.StatusOK, gin.H{"session": sid, "user": context.GetUserID(c)})
	})
	return r
}

func get(r http.Handler, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdentity_IssuesSession(t *testing.T) {
	r := newEngine(Identity(secret, &fixedIDs{}))

	w := get(r, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sess-1", w.Header().Get(SessionHeader))
	assert.Contains(t, w.Body.String(), `"session":"sess-1"`)

	w = get(r, http.Header{SessionHeader: []string{"device-1"}})
	assert.Equal(t, "device-1", w.Header().Get(SessionHeader))

	// 过长的会话号被替换
	w = get(r, http.Header{SessionHeader: []string{strings.Repeat("x", 65)}})
	assert.Equal(t, "sess-2", w.Header().Get(SessionHeader))
}

func TestIdentity_OptionalToken(t *testing.T) {
	r := newEngine(Identity(secret, &fixedIDs{}))

	token, err := jwt.GenerateToken(secret, "u1", jwt.TypeAccess, time.Hour)
	require.NoError(t, err)
	w := get(r, http.Header{"Authorization": []string{"Bearer " + token}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":"u1"`)
	assert.Empty(t, w.Header().Get("X-New-Access-Token"))

	w = get(r, http.Header{"Authorization": []string{"Bearer nope"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(r, http.Header{"Authorization": []string{"Token " + token}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIdentity_RotatesExpiringToken(t *testing.T) {
	r := newEngine(Identity(secret, &fixedIDs{}))

	token, err := jwt.GenerateToken(secret, "u1", jwt.TypeAccess, time.Minute)
	require.NoError(t, err)
	w := get(r, http.Header{"Authorization": []string{"Bearer " + token}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-New-Access-Token"))
}

func TestAuth_RequiresToken(t *testing.T) {
	r := newEngine(Auth(secret))

	w := get(r, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := jwt.GenerateToken(secret, "ops", jwt.TypeAccess, time.Hour)
	require.NoError(t, err)
	w = get(r, http.Header{"Authorization": []string{"Bearer " + token}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":"ops"`)
}

func TestAdmin_RequiresAdminRole(t *testing.T) {
	r := newEngine(Admin(secret))

	w := get(r, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := jwt.GenerateToken(secret, "u1", jwt.TypeAccess, time.Hour)
	require.NoError(t, err)
	w = get(r, http.Header{"Authorization": []string{"Bearer " + token}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	token, err = jwt.GenerateRoleToken(secret, "ops", jwt.TypeAccess, jwt.RoleAdmin, time.Hour)
	require.NoError(t, err)
	w = get(r, http.Header{"Authorization": []string{"Bearer " + token}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":"ops"`)
}

// 续签的 token 保留运营角色
func TestAdmin_RotationKeepsRole(t *testing.T) {
	r := newEngine(Admin(secret))

	token, err := jwt.GenerateRoleToken(secret, "ops", jwt.TypeAccess, jwt.RoleAdmin, time.Minute)
	require.NoError(t, err)
	w := get(r, http.Header{"Authorization": []string{"Bearer " + token}})
	require.Equal(t, http.StatusOK, w.Code)

	fresh := w.Header().Get("X-New-Access-Token")
	require.NotEmpty(t, fresh)
	claims, err := jwt.ParseToken(secret, jwt.TypeAccess, fresh)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
}

func TestRecovery_ReturnsServerError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery())
	r.GET("/whoami", func(c *gin.Context) {
		panic("boom")
	})

	w := get(r, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code":500`)
}

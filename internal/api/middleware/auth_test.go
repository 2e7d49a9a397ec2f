package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("segredo-de-teste")

func signed(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	protected := r.Group("/")
	protected.Use(AuthMiddleware(secret))
	protected.GET("/emitir", func(c *gin.Context) { c.Status(http.StatusOK) })
	protected.GET("/cancelar", PermissionMiddleware(PermissionCancel), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func request(r http.Handler, path, authorization string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter()
	valid := signed(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{
		"sub": "caixa-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	expired := signed(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{
		"sub": "caixa-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	otherKey := signed(t, jwt.SigningMethodHS256, []byte("outra-chave"), jwt.MapClaims{"sub": "caixa-1"})
	unsigned := signed(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"sub": "caixa-1"})

	assert.Equal(t, http.StatusOK, request(r, "/emitir", "Bearer "+valid))
	assert.Equal(t, http.StatusUnauthorized, request(r, "/emitir", ""))
	assert.Equal(t, http.StatusUnauthorized, request(r, "/emitir", valid))
	assert.Equal(t, http.StatusUnauthorized, request(r, "/emitir", "Bearer "+expired))
	assert.Equal(t, http.StatusUnauthorized, request(r, "/emitir", "Bearer "+otherKey))
	assert.Equal(t, http.StatusUnauthorized, request(r, "/emitir", "Bearer "+unsigned))
}

func TestPermissionMiddleware(t *testing.T) {
	r := newRouter()
	operator := signed(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{
		"roles": []string{"nfce:emitir"},
	})
	manager := signed(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{
		"roles": []string{"nfce:emitir", PermissionCancel},
	})
	noRoles := signed(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"sub": "caixa-1"})

	assert.Equal(t, http.StatusForbidden, request(r, "/cancelar", "Bearer "+operator))
	assert.Equal(t, http.StatusOK, request(r, "/cancelar", "Bearer "+manager))
	assert.Equal(t, http.StatusForbidden, request(r, "/cancelar", "Bearer "+noRoles))
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/contribmint/contribmint-api/internal/models"
	"github.com/contribmint/contribmint-api/internal/service"
	"github.com/contribmint/contribmint-api/pkg/logger"
)

func tokenFor(t *testing.T, userID string, role models.UserRole) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, models.JWTClaims{UserID: userID, Role: role}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func newProtectedRouter(roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	chain := []gin.HandlerFunc{JWT(service.NewTokenService("secret", ""))}
	if len(roles) > 0 {
		chain = append(chain, RequireRoles(roles...))
	}
	chain = append(chain, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(logger.ContextUserIDKey))
	})
	router.GET("/protected", chain...)
	return router
}

func serve(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestJWTMiddleware(t *testing.T) {
	router := newProtectedRouter()

	ok := serve(router, "Bearer "+tokenFor(t, "user-1", models.RoleContributor))
	assert.Equal(t, http.StatusOK, ok.Code)
	assert.Equal(t, "user-1", ok.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(router, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "Bearer garbage").Code)
}

func TestRequireRoles(t *testing.T) {
	router := newProtectedRouter(models.RoleAdmin, models.RoleMaintainer)

	assert.Equal(t, http.StatusOK, serve(router, "Bearer "+tokenFor(t, "m", models.RoleMaintainer)).Code)
	assert.Equal(t, http.StatusForbidden, serve(router, "Bearer "+tokenFor(t, "c", models.RoleContributor)).Code)
}

func TestIngestKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hash, err := bcrypt.GenerateFromPassword([]byte("ingest-key"), bcrypt.MinCost)
	require.NoError(t, err)

	build := func(h string) *gin.Engine {
		router := gin.New()
		router.GET("/protected", IngestKey(h), func(c *gin.Context) { c.Status(http.StatusNoContent) })
		return router
	}

	router := build(string(hash))
	assert.Equal(t, http.StatusNoContent, serve(router, "Bearer ingest-key").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "Bearer wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "").Code)

	assert.Equal(t, http.StatusInternalServerError, serve(build(""), "Bearer ingest-key").Code)
}

func TestMetricsMiddlewareRecordsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/protected", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(router, "")
	families, err := metrics.Registry().Gather()
	require.NoError(t, err)

	found := false
	for _, family := range families {
		if family.GetName() == "http_requests_total" {
			found = true
		}
	}
	assert.True(t, found)
}

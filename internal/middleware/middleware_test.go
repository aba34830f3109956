package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hr-admin-api/internal/models"
	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
	"github.com/noah-isme/hr-admin-api/pkg/middleware/requestid"
)

type staticValidator struct {
	claims *models.JWTClaims
}

func (v staticValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return v.claims, nil
}

func newProtectedRouter(claims *models.JWTClaims, guard gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWT(staticValidator{claims: claims}))
	router.GET("/employees/:id", guard, func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func serve(router http.Handler, path, token string) int {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(recorder, req)
	return recorder.Code
}

func TestJWTRequiresBearerToken(t *testing.T) {
	router := newProtectedRouter(&models.JWTClaims{EmployeeID: "e1"}, func(c *gin.Context) { c.Next() })

	assert.Equal(t, http.StatusUnauthorized, serve(router, "/employees/e1", ""))
	assert.Equal(t, http.StatusUnauthorized, serve(router, "/employees/e1", "bad"))
	assert.Equal(t, http.StatusNoContent, serve(router, "/employees/e1", "good"))
}

func TestRBACAcceptsAnyHeldRole(t *testing.T) {
	claims := &models.JWTClaims{EmployeeID: "e1", Roles: []models.Role{models.RoleEmployee, models.RoleHR}}
	router := newProtectedRouter(claims, RequireRoles(models.RoleAdmin, models.RoleHR))
	assert.Equal(t, http.StatusNoContent, serve(router, "/employees/e2", "good"))

	router = newProtectedRouter(claims, RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, serve(router, "/employees/e2", "good"))
}

func TestRBACSelf(t *testing.T) {
	claims := &models.JWTClaims{EmployeeID: "e1", Roles: []models.Role{models.RoleEmployee}}
	router := newProtectedRouter(claims, RBAC(string(models.RoleAdmin), RoleSelf))

	assert.Equal(t, http.StatusNoContent, serve(router, "/employees/e1", "good"))
	assert.Equal(t, http.StatusForbidden, serve(router, "/employees/e2", "good"))
}

func TestRateLimiterRejectsBurstOverflow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewRateLimiter(1, 2)
	router := gin.New()
	router.Use(limiter.Middleware())
	router.POST("/auth/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		codes = append(codes, recorder.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiterSweep(t *testing.T) {
	limiter := NewRateLimiter(10, 1)
	limiter.idleTTL = time.Millisecond
	limiter.Limiter("10.0.0.1")
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, limiter.Sweep())
}

type auditRecorder struct {
	logs []*models.AuditLog
	err  error
}

func (a *auditRecorder) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return a.err
}

func TestAuditRecordsSuccessfulRequestsOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := &auditRecorder{err: errors.New("ignored")}
	claims := &models.JWTClaims{EmployeeID: "admin", Roles: []models.Role{models.RoleAdmin}}
	router := gin.New()
	router.Use(JWT(staticValidator{claims: claims}))
	router.GET("/reports/:id", Audit(recorder, nil, "REPORT_DOWNLOAD", "employee_import"), func(c *gin.Context) {
		if c.Param("id") == "missing" {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, serve(router, "/reports/r1", "good"))
	assert.Equal(t, http.StatusNotFound, serve(router, "/reports/missing", "good"))

	require.Len(t, recorder.logs, 1)
	assert.Equal(t, "admin", *recorder.logs[0].ActorID)
	assert.Equal(t, "r1", *recorder.logs[0].ResourceID)
}

type observerStub struct {
	paths []string
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.paths = append(o.paths, path)
}

func TestMetricsGroupsUnmatchedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &observerStub{}
	router := gin.New()
	router.Use(Metrics(observer))
	router.GET("/employees/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(router, "/employees/e1", "")
	serve(router, "/nowhere", "")
	assert.Equal(t, []string{"/employees/:id", "unmatched"}, observer.paths)
}

func TestResponseMetaCarriesRequestIDAndCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(requestid.Middleware(), WithResponseMeta())

	var meta map[string]interface{}
	router.GET("/employees/:id", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/employees/42", nil)
	req.Header.Set("X-Request-ID", "req-123")
	router.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, meta)
	assert.Equal(t, "req-123", meta[MetaRequestID])
	assert.Equal(t, true, meta[MetaCacheHit])
}

func TestExtractMetaEmptyIsNil(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, ExtractMeta(c))

	SetMeta(c, "rows", 3)
	assert.Equal(t, 3, ExtractMeta(c)["rows"])
}

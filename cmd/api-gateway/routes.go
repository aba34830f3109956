package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/hr-admin-api/api/swagger"
	"github.com/noah-isme/hr-admin-api/internal/handler"
	"github.com/noah-isme/hr-admin-api/internal/middleware"
	"github.com/noah-isme/hr-admin-api/internal/models"
	"github.com/noah-isme/hr-admin-api/pkg/config"
	"github.com/noah-isme/hr-admin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/hr-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/hr-admin-api/pkg/middleware/requestid"
)

type routes struct {
	auth        *handler.AuthHandler
	employees   *handler.EmployeeHandler
	imports     *handler.EmployeeImportHandler
	exports     *handler.ExportHandler
	metrics     *handler.MetricsHandler
	tokens      middleware.TokenValidator
	audit       middleware.AuditWriter
	observer    middleware.RequestObserver
	rateLimiter *middleware.RateLimiter
}

func newRouter(cfg *config.Config, h routes, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(h.observer))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	authn := middleware.JWT(h.tokens)
	managers := middleware.RequireRoles(models.RoleAdmin, models.RoleHR)

	auth := api.Group("/auth")
	{
		limited := auth.Group("", h.rateLimiter.Middleware())
		limited.POST("/login", h.auth.Login)
		limited.POST("/refresh", h.auth.Refresh)
		limited.POST("/forgot-password", h.auth.ForgotPassword)
		limited.POST("/reset-password", h.auth.ResetPassword)
		limited.POST("/activate", h.auth.Activate)

		auth.POST("/logout", authn, h.auth.Logout)
		auth.POST("/change-password", authn, h.auth.ChangePassword)
		auth.GET("/me", authn, h.auth.Me)
	}

	// Signed links are opened from emails or browsers, so the token is the credential.
	api.GET("/employees/import/reports/:token",
		middleware.OptionalJWT(h.tokens),
		middleware.Audit(h.audit, logr, models.AuditActionImportReport, "import_report"),
		h.imports.Report,
	)

	employees := api.Group("/employees", authn)
	{
		employees.GET("/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleHR), middleware.RoleSelf), h.employees.Get)

		manage := employees.Group("", managers)
		manage.GET("", h.employees.List)
		manage.POST("", h.employees.Create)
		manage.GET("/export", h.exports.Employees)
		manage.PUT("/:id", h.employees.Update)
		manage.DELETE("/:id", h.employees.Delete)
		manage.PATCH("/:id/disabled", h.employees.SetDisabled)
		manage.PUT("/:id/roles", middleware.RequireRoles(models.RoleAdmin), h.employees.UpdateRoles)

		imports := manage.Group("/import")
		imports.GET("/schema", h.imports.Schema)
		imports.GET("/template", h.exports.Template)
		imports.POST("", h.imports.Import)
		imports.POST("/file", h.imports.ImportFile)
		validate := imports.Group("", middleware.Audit(h.audit, logr, models.AuditActionImportValidate, "employee"))
		validate.POST("/validate", h.imports.Validate)
		validate.POST("/file/validate", h.imports.ValidateFile)
	}

	api.GET("/system/metrics", authn, middleware.RequireRoles(models.RoleAdmin), h.metrics.Snapshot)

	return r
}

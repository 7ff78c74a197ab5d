// Package handlers binds the CMS engine to HTTP.
//
// Handlers never render errors themselves: they attach them with c.Error and
// middleware.ErrorHandler writes the response.
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"autohaus.io/cms/internal/api/middleware"
	"autohaus.io/cms/internal/domain"
	apperrors "autohaus.io/cms/internal/pkg/errors"
	"autohaus.io/cms/internal/service"
)

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Server implements the CMS handlers.
type Server struct {
	engine *service.Engine
	checks map[string]ReadinessCheck
	pools  func() map[string]any
}

// ServerDeps holds all dependencies for creating a Server.
type ServerDeps struct {
	Engine *service.Engine
	// Checks are run by the readiness probe, keyed by dependency name.
	Checks map[string]ReadinessCheck
	// PoolStats is optional and reported by the readiness probe.
	PoolStats func() map[string]any
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	return &Server{
		engine: deps.Engine,
		checks: deps.Checks,
		pools:  deps.PoolStats,
	}
}

// RegisterHealth registers the unauthenticated probes on rg.
func (s *Server) RegisterHealth(rg *gin.RouterGroup) {
	rg.GET("/health/live", s.GetLiveness)
	rg.GET("/health/ready", s.GetReadiness)
}

// Register registers the CMS routes on rg, which must already authenticate.
func (s *Server) Register(rg *gin.RouterGroup) {
	cms := rg.Group("/cms")
	cms.GET("/permissions", s.GetPermissions)
	cms.GET("/dashboard", s.GetDashboard)
	cms.GET("/search", s.Search)

	cms.GET("/:entity", s.ListEntities)
	cms.POST("/:entity", s.CreateEntity)
	cms.GET("/:entity/schema", s.DescribeEntity)
	cms.POST("/:entity/upload", s.UploadFile)
	cms.GET("/:entity/:id", s.GetEntity)
	cms.PUT("/:entity/:id", s.UpdateEntity)
	cms.DELETE("/:entity/:id", s.DeleteEntity)
	cms.GET("/:entity/:id/audit", s.GetAuditTrail)
}

// principal returns the caller attached by JWTAuth.
func principal(c *gin.Context) (domain.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c.Request.Context())
	if !ok {
		_ = c.Error(apperrors.Unauthorized(apperrors.CodeUnauthorized, "authentication required"))
		return domain.Principal{}, false
	}
	return p, true
}

package app

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"autohaus.io/cms/internal/api/handlers"
	"autohaus.io/cms/internal/api/middleware"
	"autohaus.io/cms/internal/config"
	"autohaus.io/cms/internal/pkg/logger"
	"autohaus.io/cms/internal/pkg/metrics"
)

// defaultAllowedOrigins serve the admin frontend in development.
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

func newRouter(cfg *config.Config, server *handlers.Server, jwtCfg middleware.JWTConfig) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = handlers.MaxBodyBytes
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.ErrorHandler())
	router.Use(cors.New(buildCORSConfig(cfg)))

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	if base := cfg.Storage.PublicBaseURL; cfg.Storage.Driver == config.StorageLocal && strings.HasPrefix(base, "/") {
		router.Static(strings.TrimSuffix(base, "/"), cfg.Storage.LocalDir)
	}

	v1 := router.Group("/api/v1")
	server.RegisterHealth(v1)

	protected := v1.Group("")
	protected.Use(middleware.JWTAuth(jwtCfg))
	server.Register(protected)

	debug := protected.Group("/debug", middleware.RequireElevated())
	debug.GET("/loglevel", gin.WrapH(logger.HTTPHandler()))
	debug.PUT("/loglevel", gin.WrapH(logger.HTTPHandler()))
	return router
}

// buildCORSConfig turns server settings into a cors config. A wildcard origin
// is honored only with the unsafe flag, and then credentials are disabled.
func buildCORSConfig(cfg *config.Config) cors.Config {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: cfg.Server.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}

	if cfg.Server.UnsafeAllowAllOrigins {
		cc.AllowAllOrigins = true
		cc.AllowCredentials = false
		return cc
	}

	origins := make([]string, 0, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			logger.Warn("ignoring wildcard CORS origin; set server.unsafe_allow_all_origins to allow it")
			continue
		}
		origins = append(origins, o)
	}
	if len(origins) == 0 {
		origins = append(origins, defaultAllowedOrigins...)
	}
	cc.AllowOrigins = origins
	logger.Debug("CORS configured", zap.Strings("origins", origins))
	return cc
}

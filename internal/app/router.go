package app

import (
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartfarm.io/farm/internal/api/handlers"
	"smartfarm.io/farm/internal/api/middleware"
	"smartfarm.io/farm/internal/config"
	"smartfarm.io/farm/internal/domain"
	"smartfarm.io/farm/internal/pkg/logger"
	"smartfarm.io/farm/internal/storage"
)

const apiBasePath = "/api/v1"

// defaultAllowedOrigins serve the web client's local dev servers.
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

type routerDeps struct {
	cfg    *config.Config
	server *handlers.Server
	jwt    middleware.JWTConfig
	doc    *openapi3.T
	store  storage.Store
}

func newRouter(d routerDeps) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.Metrics(),
		middleware.ErrorHandler(),
		cors.New(buildCORSConfig(d.cfg)),
	)
	if d.cfg.Server.Gzip {
		// Workbooks are already zip containers.
		router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{apiBasePath + "/summary/export"})))
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if local, ok := d.store.(*storage.LocalStore); ok && strings.HasPrefix(d.cfg.Storage.PublicBaseURL, "/") {
		router.Static(d.cfg.Storage.PublicBaseURL, local.Dir())
	}

	v1 := router.Group(apiBasePath)
	v1.Use(middleware.MustOpenAPIValidator(d.doc, apiBasePath))
	d.server.RegisterPublic(v1)

	authed := v1.Group("", middleware.JWTAuth(d.jwt))
	d.server.RegisterAuthenticated(authed)
	admin := authed.Group("/admin", middleware.RequireRole(domain.RoleAdmin))
	d.server.RegisterAdmin(admin)
	admin.GET("/log-level", gin.WrapH(logger.Level()))
	admin.PUT("/log-level", gin.WrapH(logger.Level()))

	return router
}

// buildCORSConfig allows the configured origins. A "*" entry is honored only
// with UnsafeAllowAllOrigins, which also turns off credentials.
func buildCORSConfig(cfg *config.Config) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: cfg.Server.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}

	if cfg.Server.UnsafeAllowAllOrigins {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
		return c
	}

	origins := make([]string, 0, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o == "" || o == "*" {
			continue
		}
		origins = append(origins, o)
	}
	if len(origins) == 0 {
		origins = append(origins, defaultAllowedOrigins...)
	}
	c.AllowOrigins = origins
	return c
}

// Package handlers implements the farm HTTP API on top of the services.
//
// Handlers bind and convert; every rule lives in internal/service. Errors are
// pushed with c.Error and rendered by middleware.ErrorHandler.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"

	"smartfarm.io/farm/internal/api/middleware"
	"smartfarm.io/farm/internal/authz"
	"smartfarm.io/farm/internal/domain"
	apperrors "smartfarm.io/farm/internal/pkg/errors"
	"smartfarm.io/farm/internal/repository"
	"smartfarm.io/farm/internal/service"
)

// Server holds the handlers' dependencies.
type Server struct {
	repo       repository.Repository
	users      *service.UserService
	plots      *service.PlotService
	cycles     *service.CycleService
	activities *service.ActivityService
	aggregates *service.AggregationService
	catalog    *service.CatalogService
	admin      *service.AdminService
	uploads    *service.UploadService
}

// ServerDeps holds all dependencies for creating a Server.
type ServerDeps struct {
	Repo       repository.Repository
	Users      *service.UserService
	Plots      *service.PlotService
	Cycles     *service.CycleService
	Activities *service.ActivityService
	Aggregates *service.AggregationService
	Catalog    *service.CatalogService
	Admin      *service.AdminService
	Uploads    *service.UploadService
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	return &Server{
		repo:       deps.Repo,
		users:      deps.Users,
		plots:      deps.Plots,
		cycles:     deps.Cycles,
		activities: deps.Activities,
		aggregates: deps.Aggregates,
		catalog:    deps.Catalog,
		admin:      deps.Admin,
		uploads:    deps.Uploads,
	}
}

// principal is the caller set by middleware.JWTAuth, or the zero Principal.
func principal(c *gin.Context) authz.Principal {
	return middleware.GetPrincipal(c.Request.Context())
}

// pathParam binds a simple-style path parameter.
func pathParam(c *gin.Context, name string) (string, bool) {
	var value string
	err := runtime.BindStyledParameterWithOptions("simple", name, c.Param(name), &value, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil || strings.TrimSpace(value) == "" {
		_ = c.Error(apperrors.ErrValidation(name, "invalid "+name))
		return "", false
	}
	return value, true
}

// bindJSON decodes the request body into dst.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeValidationFailed, "invalid request body", http.StatusBadRequest))
		return false
	}
	return true
}

// fail pushes err for the error handler.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
}

// parseDate accepts YYYY-MM-DD (midnight UTC) or RFC 3339. Nil and blank
// mean unset.
func parseDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, _, err := domain.ParseDate(*raw)
	if err != nil {
		return nil, apperrors.ErrValidation(field, field+" must be YYYY-MM-DD or RFC 3339")
	}
	return &t, nil
}

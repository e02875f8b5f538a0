package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartfarm.io/farm/internal/export"
	apperrors "smartfarm.io/farm/internal/pkg/errors"
)

// Summary handles GET /summary?startDate&endDate.
func (s *Server) Summary(c *gin.Context) {
	sum, err := s.aggregates.Summary(c.Request.Context(), principal(c), c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// ExportSummary handles GET /summary/export?startDate&endDate. The
// workbook is built in memory so a failure still yields a JSON error.
func (s *Server) ExportSummary(c *gin.Context) {
	sum, err := s.aggregates.Summary(c.Request.Context(), principal(c), c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteSummary(&buf, sum); err != nil {
		fail(c, apperrors.ErrInternal(err))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(sum.StartDate, sum.EndDate)+`"`)
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

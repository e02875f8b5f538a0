package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminStats handles GET /admin/stats.
func (s *Server) AdminStats(c *gin.Context) {
	stats, err := s.admin.Stats(c.Request.Context(), principal(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// AllPlotsForMap handles GET /admin/plots/map.
func (s *Server) AllPlotsForMap(c *gin.Context) {
	plots, err := s.admin.PlotsForMap(c.Request.Context(), principal(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plots)
}

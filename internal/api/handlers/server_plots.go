package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartfarm.io/farm/internal/service"
)

type plotRequest struct {
	Name      *string  `json:"name"`
	SizeRai   *float64 `json:"sizeRai"`
	SizeNgan  *float64 `json:"sizeNgan"`
	SizeWa    *float64 `json:"sizeWa"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   *string  `json:"address"`
}

func (r plotRequest) input() service.PlotInput {
	return service.PlotInput{
		Name:      r.Name,
		SizeRai:   r.SizeRai,
		SizeNgan:  r.SizeNgan,
		SizeWa:    r.SizeWa,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Address:   r.Address,
	}
}

type startCycleRequest struct {
	CropVarietyID  string  `json:"cropVarietyId"`
	StartDate      *string `json:"startDate"`
	StandardPlanID *string `json:"standardPlanId"`
}

// ListPlots handles GET /plots.
func (s *Server) ListPlots(c *gin.Context) {
	plots, err := s.plots.ListPlots(c.Request.Context(), principal(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plots)
}

// CreatePlot handles POST /plots.
func (s *Server) CreatePlot(c *gin.Context) {
	var req plotRequest
	if !bindJSON(c, &req) {
		return
	}
	plot, err := s.plots.CreatePlot(c.Request.Context(), principal(c), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, plot)
}

// GetPlot handles GET /plots/:plotId.
func (s *Server) GetPlot(c *gin.Context) {
	plotID, ok := pathParam(c, "plotId")
	if !ok {
		return
	}
	plot, err := s.plots.GetPlot(c.Request.Context(), principal(c), plotID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plot)
}

// UpdatePlot handles PATCH /plots/:plotId.
func (s *Server) UpdatePlot(c *gin.Context) {
	plotID, ok := pathParam(c, "plotId")
	if !ok {
		return
	}
	var req plotRequest
	if !bindJSON(c, &req) {
		return
	}
	plot, err := s.plots.UpdatePlot(c.Request.Context(), principal(c), plotID, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plot)
}

// DeletePlot handles DELETE /plots/:plotId.
func (s *Server) DeletePlot(c *gin.Context) {
	plotID, ok := pathParam(c, "plotId")
	if !ok {
		return
	}
	if err := s.plots.DeletePlot(c.Request.Context(), principal(c), plotID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PlotHistory handles GET /plots/:plotId/cycles.
func (s *Server) PlotHistory(c *gin.Context) {
	plotID, ok := pathParam(c, "plotId")
	if !ok {
		return
	}
	cycles, err := s.cycles.PlotHistory(c.Request.Context(), principal(c), plotID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cycles)
}

// StartPlantingCycle handles POST /plots/:plotId/cycles.
func (s *Server) StartPlantingCycle(c *gin.Context) {
	plotID, ok := pathParam(c, "plotId")
	if !ok {
		return
	}
	var req startCycleRequest
	if !bindJSON(c, &req) {
		return
	}
	start, err := parseDate("startDate", req.StartDate)
	if err != nil {
		fail(c, err)
		return
	}
	cycle, err := s.cycles.StartCycle(c.Request.Context(), principal(c), plotID, service.StartCycleInput{
		CropVarietyID:  req.CropVarietyID,
		StartDate:      start,
		StandardPlanID: req.StandardPlanID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cycle)
}

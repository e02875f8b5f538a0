package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartfarm.io/farm/internal/service"
)

type completeCycleRequest struct {
	EndDate *string `json:"endDate"`
}

type abandonCycleRequest struct {
	Reason string `json:"reason"`
}

type activityRequest struct {
	Type         string   `json:"type"`
	Description  string   `json:"description"`
	ActivityDate *string  `json:"activityDate"`
	Cost         *float64 `json:"cost"`
	Income       *float64 `json:"income"`
	Images       []string `json:"images"`
}

type activityPatchRequest struct {
	Type         *string   `json:"type"`
	Description  *string   `json:"description"`
	ActivityDate *string   `json:"activityDate"`
	Cost         *float64  `json:"cost"`
	Income       *float64  `json:"income"`
	Images       *[]string `json:"images"`
}

// bindOptionalJSON decodes a body that may be absent.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, dst)
}

// GetCycle handles GET /cycles/:cycleId.
func (s *Server) GetCycle(c *gin.Context) {
	cycleID, ok := pathParam(c, "cycleId")
	if !ok {
		return
	}
	cycle, err := s.cycles.GetCycle(c.Request.Context(), principal(c), cycleID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cycle)
}

// CompleteCycle handles POST /cycles/:cycleId/complete.
func (s *Server) CompleteCycle(c *gin.Context) {
	cycleID, ok := pathParam(c, "cycleId")
	if !ok {
		return
	}
	var req completeCycleRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	end, err := parseDate("endDate", req.EndDate)
	if err != nil {
		fail(c, err)
		return
	}
	cycle, err := s.cycles.CompleteCycle(c.Request.Context(), principal(c), cycleID, end)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cycle)
}

// AbandonCycle handles POST /cycles/:cycleId/abandon.
func (s *Server) AbandonCycle(c *gin.Context) {
	cycleID, ok := pathParam(c, "cycleId")
	if !ok {
		return
	}
	var req abandonCycleRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	cycle, err := s.cycles.AbandonCycle(c.Request.Context(), principal(c), cycleID, req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cycle)
}

// CycleStats handles GET /cycles/:cycleId/stats.
func (s *Server) CycleStats(c *gin.Context) {
	cycleID, ok := pathParam(c, "cycleId")
	if !ok {
		return
	}
	stats, err := s.aggregates.CycleStats(c.Request.Context(), principal(c), cycleID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CycleStatsByType handles GET /cycles/:cycleId/stats/by-type.
func (s *Server) CycleStatsByType(c *gin.Context) {
	cycleID, ok := pathParam(c, "cycleId")
	if !ok {
		return
	}
	byType, err := s.aggregates.StatsByType(c.Request.Context(), principal(c), cycleID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, byType)
}

// ListActivities handles GET /cycles/:cycleId/activities.
func (s *Server) ListActivities(c *gin.Context) {
	cycleID, ok := pathParam(c, "cycleId")
	if !ok {
		return
	}
	activities, err := s.activities.ListActivities(c.Request.Context(), principal(c), cycleID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, activities)
}

// AddActivity handles POST /cycles/:cycleId/activities.
func (s *Server) AddActivity(c *gin.Context) {
	cycleID, ok := pathParam(c, "cycleId")
	if !ok {
		return
	}
	var req activityRequest
	if !bindJSON(c, &req) {
		return
	}
	at, err := parseDate("activityDate", req.ActivityDate)
	if err != nil {
		fail(c, err)
		return
	}
	activity, err := s.activities.AddActivity(c.Request.Context(), principal(c), cycleID, service.ActivityInput{
		Type:         req.Type,
		Description:  req.Description,
		ActivityDate: at,
		Cost:         req.Cost,
		Income:       req.Income,
		Images:       req.Images,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, activity)
}

// UpdateActivity handles PATCH /activities/:activityId.
func (s *Server) UpdateActivity(c *gin.Context) {
	activityID, ok := pathParam(c, "activityId")
	if !ok {
		return
	}
	var req activityPatchRequest
	if !bindJSON(c, &req) {
		return
	}
	at, err := parseDate("activityDate", req.ActivityDate)
	if err != nil {
		fail(c, err)
		return
	}
	activity, err := s.activities.UpdateActivity(c.Request.Context(), principal(c), activityID, service.ActivityPatch{
		Type:         req.Type,
		Description:  req.Description,
		ActivityDate: at,
		Cost:         req.Cost,
		Income:       req.Income,
		Images:       req.Images,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, activity)
}

// DeleteActivity handles DELETE /activities/:activityId.
func (s *Server) DeleteActivity(c *gin.Context) {
	activityID, ok := pathParam(c, "activityId")
	if !ok {
		return
	}
	if err := s.activities.DeleteActivity(c.Request.Context(), principal(c), activityID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartfarm.io/farm/internal/service"
)

type cropTypeRequest struct {
	Name        string `json:"name"`
	NameEn      string `json:"nameEn"`
	NameTh      string `json:"nameTh"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

func (r cropTypeRequest) input() service.CropTypeInput {
	return service.CropTypeInput{Name: r.Name, NameEn: r.NameEn, NameTh: r.NameTh, Description: r.Description, Icon: r.Icon}
}

type varietyRequest struct {
	CropTypeID       string `json:"cropTypeId"`
	Name             string `json:"name"`
	NameEn           string `json:"nameEn"`
	NameTh           string `json:"nameTh"`
	Description      string `json:"description"`
	GrowthPeriodDays *int   `json:"growthPeriodDays"`
}

func (r varietyRequest) input() service.VarietyInput {
	return service.VarietyInput{
		CropTypeID:       r.CropTypeID,
		Name:             r.Name,
		NameEn:           r.NameEn,
		NameTh:           r.NameTh,
		Description:      r.Description,
		GrowthPeriodDays: r.GrowthPeriodDays,
	}
}

type planTaskRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	DayFromStart int    `json:"dayFromStart"`
	ActivityType string `json:"activityType"`
}

func (r planTaskRequest) input() service.PlanTaskInput {
	return service.PlanTaskInput{Title: r.Title, Description: r.Description, DayFromStart: r.DayFromStart, ActivityType: r.ActivityType}
}

type planRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	VarietyIDs  []string          `json:"varietyIds"`
	Tasks       []planTaskRequest `json:"tasks"`
}

func (r planRequest) input() service.PlanInput {
	in := service.PlanInput{Name: r.Name, Description: r.Description, VarietyIDs: r.VarietyIDs}
	for _, t := range r.Tasks {
		in.Tasks = append(in.Tasks, t.input())
	}
	return in
}

// ListCropTypes handles GET /crop-types.
func (s *Server) ListCropTypes(c *gin.Context) {
	types, err := s.catalog.ListCropTypes(c.Request.Context(), principal(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, types)
}

// ListStandardPlans handles GET /standard-plans.
func (s *Server) ListStandardPlans(c *gin.Context) {
	plans, err := s.catalog.ListStandardPlans(c.Request.Context(), principal(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

// CreateCropType handles POST /admin/crop-types.
func (s *Server) CreateCropType(c *gin.Context) {
	var req cropTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	ct, err := s.catalog.CreateCropType(c.Request.Context(), principal(c), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ct)
}

// GetCropType handles GET /admin/crop-types/:id.
func (s *Server) GetCropType(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	ct, err := s.catalog.GetCropType(c.Request.Context(), principal(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ct)
}

// UpdateCropType handles PATCH /admin/crop-types/:id.
func (s *Server) UpdateCropType(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	var req cropTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	ct, err := s.catalog.UpdateCropType(c.Request.Context(), principal(c), id, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ct)
}

// DeleteCropType handles DELETE /admin/crop-types/:id.
func (s *Server) DeleteCropType(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	if err := s.catalog.DeleteCropType(c.Request.Context(), principal(c), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateVariety handles POST /admin/varieties.
func (s *Server) CreateVariety(c *gin.Context) {
	var req varietyRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := s.catalog.CreateVariety(c.Request.Context(), principal(c), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

// GetVariety handles GET /admin/varieties/:id.
func (s *Server) GetVariety(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	v, err := s.catalog.GetVariety(c.Request.Context(), principal(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// UpdateVariety handles PATCH /admin/varieties/:id.
func (s *Server) UpdateVariety(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	var req varietyRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := s.catalog.UpdateVariety(c.Request.Context(), principal(c), id, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// DeleteVariety handles DELETE /admin/varieties/:id.
func (s *Server) DeleteVariety(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	if err := s.catalog.DeleteVariety(c.Request.Context(), principal(c), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateStandardPlan handles POST /admin/standard-plans.
func (s *Server) CreateStandardPlan(c *gin.Context) {
	var req planRequest
	if !bindJSON(c, &req) {
		return
	}
	plan, err := s.catalog.CreatePlan(c.Request.Context(), principal(c), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

// GetStandardPlan handles GET /admin/standard-plans/:id.
func (s *Server) GetStandardPlan(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	plan, err := s.catalog.GetPlan(c.Request.Context(), principal(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// UpdateStandardPlan handles PATCH /admin/standard-plans/:id. Omitting
// varietyIds keeps the current links.
func (s *Server) UpdateStandardPlan(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	var req planRequest
	if !bindJSON(c, &req) {
		return
	}
	plan, err := s.catalog.UpdatePlan(c.Request.Context(), principal(c), id, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// DeleteStandardPlan handles DELETE /admin/standard-plans/:id.
func (s *Server) DeleteStandardPlan(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	if err := s.catalog.DeletePlan(c.Request.Context(), principal(c), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddPlanTask handles POST /admin/standard-plans/:id/tasks.
func (s *Server) AddPlanTask(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	var req planTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := s.catalog.AddPlanTask(c.Request.Context(), principal(c), id, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// UpdatePlanTask handles PATCH /admin/plan-tasks/:taskId.
func (s *Server) UpdatePlanTask(c *gin.Context) {
	taskID, ok := pathParam(c, "taskId")
	if !ok {
		return
	}
	var req planTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := s.catalog.UpdatePlanTask(c.Request.Context(), principal(c), taskID, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// DeletePlanTask handles DELETE /admin/plan-tasks/:taskId.
func (s *Server) DeletePlanTask(c *gin.Context) {
	taskID, ok := pathParam(c, "taskId")
	if !ok {
		return
	}
	if err := s.catalog.DeletePlanTask(c.Request.Context(), principal(c), taskID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

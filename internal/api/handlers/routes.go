package handlers

import "github.com/gin-gonic/gin"

// RegisterPublic mounts the routes that need no session.
func (s *Server) RegisterPublic(r gin.IRoutes) {
	r.GET("/health/live", s.GetLiveness)
	r.GET("/health/ready", s.GetReadiness)
	r.POST("/auth/login", s.Login)
	r.POST("/auth/register", s.Register)
}

// RegisterAuthenticated mounts the routes of any signed-in user.
func (s *Server) RegisterAuthenticated(r gin.IRoutes) {
	r.GET("/me", s.GetProfile)
	r.PATCH("/me", s.UpdateProfile)
	r.PUT("/me/username", s.SetUsername)
	r.PUT("/me/password", s.SetPassword)
	r.POST("/me/accounts", s.LinkAccount)
	r.DELETE("/me/accounts/:provider", s.UnlinkAccount)

	r.GET("/plots", s.ListPlots)
	r.POST("/plots", s.CreatePlot)
	r.GET("/plots/:plotId", s.GetPlot)
	r.PATCH("/plots/:plotId", s.UpdatePlot)
	r.DELETE("/plots/:plotId", s.DeletePlot)
	r.GET("/plots/:plotId/cycles", s.PlotHistory)
	r.POST("/plots/:plotId/cycles", s.StartPlantingCycle)

	r.GET("/cycles/:cycleId", s.GetCycle)
	r.POST("/cycles/:cycleId/complete", s.CompleteCycle)
	r.POST("/cycles/:cycleId/abandon", s.AbandonCycle)
	r.GET("/cycles/:cycleId/stats", s.CycleStats)
	r.GET("/cycles/:cycleId/stats/by-type", s.CycleStatsByType)
	r.GET("/cycles/:cycleId/activities", s.ListActivities)
	r.POST("/cycles/:cycleId/activities", s.AddActivity)
	r.PATCH("/activities/:activityId", s.UpdateActivity)
	r.DELETE("/activities/:activityId", s.DeleteActivity)

	r.GET("/summary", s.Summary)
	r.GET("/summary/export", s.ExportSummary)

	r.POST("/uploads", s.Upload)
	r.DELETE("/uploads/*publicId", s.DeleteUpload)

	r.GET("/crop-types", s.ListCropTypes)
	r.GET("/standard-plans", s.ListStandardPlans)
}

// RegisterAdmin mounts the admin routes. The group is expected to carry
// middleware.RequireRole(domain.RoleAdmin); the services check the role again.
func (s *Server) RegisterAdmin(r gin.IRoutes) {
	r.GET("/plots/map", s.AllPlotsForMap)
	r.GET("/stats", s.AdminStats)

	r.POST("/crop-types", s.CreateCropType)
	r.GET("/crop-types/:id", s.GetCropType)
	r.PATCH("/crop-types/:id", s.UpdateCropType)
	r.DELETE("/crop-types/:id", s.DeleteCropType)

	r.POST("/varieties", s.CreateVariety)
	r.GET("/varieties/:id", s.GetVariety)
	r.PATCH("/varieties/:id", s.UpdateVariety)
	r.DELETE("/varieties/:id", s.DeleteVariety)

	r.POST("/standard-plans", s.CreateStandardPlan)
	r.GET("/standard-plans/:id", s.GetStandardPlan)
	r.PATCH("/standard-plans/:id", s.UpdateStandardPlan)
	r.DELETE("/standard-plans/:id", s.DeleteStandardPlan)
	r.POST("/standard-plans/:id/tasks", s.AddPlanTask)

	r.PATCH("/plan-tasks/:taskId", s.UpdatePlanTask)
	r.DELETE("/plan-tasks/:taskId", s.DeletePlanTask)
}

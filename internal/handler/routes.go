package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/psy-schedule-api/internal/middleware"
	"github.com/noah-isme/psy-schedule-api/internal/models"
)

// RegisterScheduleRoutes mounts the calendar endpoints on an authenticated group.
func RegisterScheduleRoutes(group *gin.RouterGroup, h *ScheduleHandler) {
	staff := middleware.RequireRoles(models.RolePsychologist, models.RoleAdmin)

	schedule := group.Group("/schedule", staff)
	schedule.GET("", h.Get)
	schedule.POST("/navigate", h.Navigate)
	schedule.PUT("/view", h.SetViewMode)
	schedule.PUT("/viewport", h.SetViewport)
	schedule.POST("/reload", h.Reload)
	schedule.GET("/export", h.Export)
	schedule.POST("/confirmation/confirm", h.Confirm)
	schedule.POST("/confirmation/cancel", h.Cancel)

	appointments := group.Group("/appointments", staff)
	appointments.GET("/:id/transitions", h.Transitions)
	appointments.POST("/:id/status", h.StageStatus)
	appointments.PATCH("/:id/notes", h.UpdateNotes)
	appointments.GET("/:id/history", h.History)
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/score-analytics-api/internal/middleware"
	"github.com/noah-isme/score-analytics-api/internal/models"
)

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Analytics *AnalyticsHandler
	Scores    *ScoreHandler
	Roster    *RosterHandler
	Health    *HealthHandler
}

// Register mounts probes at the root and the API under prefix. A nil tokens
// validator leaves every route open.
func Register(r *gin.Engine, prefix string, routes Routes, tokens middleware.TokenValidator) {
	r.GET("/health", routes.Health.Health)
	r.GET("/ready", routes.Health.Ready)
	r.GET("/metrics", routes.Health.Prometheus)

	api := r.Group(prefix)
	api.Use(middleware.WithResponseMeta())
	writers := []gin.HandlerFunc{}
	if tokens != nil {
		api.Use(middleware.JWT(tokens))
		writers = append(writers, middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher))
	}
	write := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, writers...), h)
	}

	analytics := api.Group("/analytics")
	analytics.GET("/students/:id", routes.Analytics.StudentReport)
	analytics.GET("/classes/:id", routes.Analytics.ClassReport)
	analytics.GET("/classes/:id/export", routes.Analytics.ExportClassReport)
	analytics.GET("/system", routes.Analytics.System)

	scores := api.Group("/scores")
	scores.GET("", routes.Scores.List)
	scores.POST("", write(routes.Scores.Create)...)
	scores.PUT("", write(routes.Scores.Upsert)...)
	scores.POST("/import", write(routes.Scores.Import)...)
	scores.POST("/import/xlsx", write(routes.Scores.ImportXLSX)...)

	api.GET("/classes", routes.Roster.ListClasses)
	api.POST("/classes", write(routes.Roster.CreateClass)...)
	api.GET("/classes/:id", routes.Roster.GetClass)
	api.GET("/students", routes.Roster.ListStudents)
	api.POST("/students", write(routes.Roster.CreateStudent)...)
	api.GET("/students/:id", routes.Roster.GetStudent)
	api.GET("/exams", routes.Roster.ListExams)
	api.POST("/exams", write(routes.Roster.CreateExam)...)
}

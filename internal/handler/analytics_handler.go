package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/score-analytics-api/internal/middleware"
	"github.com/noah-isme/score-analytics-api/internal/models"
	"github.com/noah-isme/score-analytics-api/internal/service"
	"github.com/noah-isme/score-analytics-api/pkg/response"
)

type analyticsService interface {
	StudentReport(ctx context.Context, studentID string, subject *models.Subject) (*models.StudentAnalyticsReport, bool, error)
	ClassReport(ctx context.Context, classID string, subject *models.Subject) (*models.ClassAnalyticsReport, bool, error)
	SystemMetrics() models.AnalyticsSystemMetrics
}

type exportService interface {
	ExportClassReport(ctx context.Context, classID string, subject *models.Subject, format service.ExportFormat) (*service.ExportFile, error)
}

// AnalyticsHandler exposes student and class performance reports.
type AnalyticsHandler struct {
	analytics analyticsService
	exports   exportService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics analyticsService, exports exportService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, exports: exports}
}

// StudentReport godoc
// @Summary Student performance report
// @Tags Analytics
// @Produce json
// @Param id path string true "Student ID"
// @Param subject query string false "Subject filter (CHINESE, MATH, ENGLISH)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /analytics/students/{id} [get]
func (h *AnalyticsHandler) StudentReport(c *gin.Context) {
	subject, err := subjectQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	report, cacheHit, err := h.analytics.StudentReport(c.Request.Context(), c.Param("id"), subject)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, report, nil, middleware.ResponseMeta(c))
}

// ClassReport godoc
// @Summary Class performance report
// @Tags Analytics
// @Produce json
// @Param id path string true "Class ID"
// @Param subject query string false "Subject filter (CHINESE, MATH, ENGLISH)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /analytics/classes/{id} [get]
func (h *AnalyticsHandler) ClassReport(c *gin.Context) {
	subject, err := subjectQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	report, cacheHit, err := h.analytics.ClassReport(c.Request.Context(), c.Param("id"), subject)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, report, nil, middleware.ResponseMeta(c))
}

// ExportClassReport godoc
// @Summary Download a class report
// @Tags Analytics
// @Produce octet-stream
// @Param id path string true "Class ID"
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Param subject query string false "Subject filter"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /analytics/classes/{id}/export [get]
func (h *AnalyticsHandler) ExportClassReport(c *gin.Context) {
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	subject, err := subjectQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exports.ExportClassReport(c.Request.Context(), c.Param("id"), subject, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// System godoc
// @Summary Analytics instrumentation snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.analytics.SystemMetrics(), nil, middleware.ResponseMeta(c))
}

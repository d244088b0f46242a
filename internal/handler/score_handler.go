package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/score-analytics-api/internal/dto"
	"github.com/noah-isme/score-analytics-api/internal/models"
	"github.com/noah-isme/score-analytics-api/internal/service"
	appErrors "github.com/noah-isme/score-analytics-api/pkg/errors"
	"github.com/noah-isme/score-analytics-api/pkg/response"
)

type scoreService interface {
	List(ctx context.Context, selector models.ScoreSelector) ([]models.ScoreView, error)
	Create(ctx context.Context, req service.ScoreRequest) (*models.Score, error)
	Upsert(ctx context.Context, req service.ScoreRequest) (*models.Score, error)
}

type importService interface {
	Import(ctx context.Context, req dto.ImportScoresRequest) (*dto.ImportResult, error)
	ImportXLSX(ctx context.Context, r io.Reader) (*dto.ImportResult, error)
}

// ScoreHandler exposes score reads, writes and imports.
type ScoreHandler struct {
	scores         scoreService
	imports        importService
	maxUploadBytes int64
}

// NewScoreHandler constructs a score handler. maxUploadBytes bounds XLSX uploads.
func NewScoreHandler(scores scoreService, imports importService, maxUploadBytes int64) *ScoreHandler {
	return &ScoreHandler{scores: scores, imports: imports, maxUploadBytes: maxUploadBytes}
}

// List godoc
// @Summary List raw scores of one student or one class
// @Tags Scores
// @Produce json
// @Param student_id query string false "Student ID"
// @Param class_id query string false "Class ID"
// @Param subject query string false "Subject filter"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /scores [get]
func (h *ScoreHandler) List(c *gin.Context) {
	subject, err := subjectQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	scores, err := h.scores.List(c.Request.Context(), models.ScoreSelector{
		StudentID: c.Query("student_id"),
		ClassID:   c.Query("class_id"),
		Subject:   subject,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scores, nil)
}

// Create godoc
// @Summary Record a score
// @Tags Scores
// @Accept json
// @Produce json
// @Param payload body service.ScoreRequest true "Score payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /scores [post]
func (h *ScoreHandler) Create(c *gin.Context) {
	var req service.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	score, err := h.scores.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, score)
}

// Upsert godoc
// @Summary Create or correct a score
// @Tags Scores
// @Accept json
// @Produce json
// @Param payload body service.ScoreRequest true "Score payload"
// @Success 200 {object} response.Envelope
// @Router /scores [put]
func (h *ScoreHandler) Upsert(c *gin.Context) {
	var req service.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	score, err := h.scores.Upsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score, nil)
}

// Import godoc
// @Summary Batch import scores by name
// @Tags Scores
// @Accept json
// @Produce json
// @Param payload body dto.ImportScoresRequest true "Rows"
// @Success 200 {object} response.Envelope
// @Router /scores/import [post]
func (h *ScoreHandler) Import(c *gin.Context) {
	var req dto.ImportScoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.imports.Import(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ImportXLSX godoc
// @Summary Import scores from an XLSX workbook
// @Tags Scores
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Workbook"
// @Success 200 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /scores/import/xlsx [post]
func (h *ScoreHandler) ImportXLSX(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("upload exceeds %d bytes", h.maxUploadBytes)))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read upload"))
		return
	}
	defer file.Close()

	result, err := h.imports.ImportXLSX(c.Request.Context(), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

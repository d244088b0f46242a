package handler

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/score-analytics-api/internal/models"
	appErrors "github.com/noah-isme/score-analytics-api/pkg/errors"
)

// subjectQuery resolves the optional subject filter, accepting codes and localized aliases.
func subjectQuery(c *gin.Context) (*models.Subject, error) {
	raw := strings.TrimSpace(c.Query("subject"))
	if raw == "" {
		return nil, nil
	}
	subject, ok := models.ParseSubject(raw)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidSelector, fmt.Sprintf("unknown subject %q", raw))
	}
	return &subject, nil
}

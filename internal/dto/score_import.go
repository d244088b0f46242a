package dto

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number accepts a JSON number or a numeric string. Unparseable text decodes
// to NaN so the row, not the whole batch, is rejected.
type Number struct {
	Value float64
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*n = ParseNumber(raw)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Number{Value: v, Set: true}
	return nil
}

// ParseNumber converts spreadsheet text. Blank text is unset.
func ParseNumber(raw string) Number {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Number{}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		v = math.NaN()
	}
	return Number{Value: v, Set: true}
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Set || math.IsNaN(n.Value) {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// ImportScoreRow is one row of a batch import, addressed by names rather than IDs.
type ImportScoreRow struct {
	StudentName string `json:"student_name"`
	ClassName   string `json:"class_name"`
	ExamName    string `json:"exam_name"`
	Subject     string `json:"subject"`
	Score       Number `json:"score"`
	ExamDate    string `json:"exam_date,omitempty"`
}

// ImportScoresRequest captures POST /scores/import payload.
type ImportScoresRequest struct {
	Scores []ImportScoreRow `json:"scores" validate:"required,min=1"`
}

// ImportRowError reports why one row was rejected. Row is 1-based.
type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult summarises a batch import.
type ImportResult struct {
	Success int              `json:"success"`
	Failed  int              `json:"failed"`
	Errors  []ImportRowError `json:"errors"`
}

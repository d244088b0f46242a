package service

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/score-analytics-api/internal/dto"
	appErrors "github.com/noah-isme/score-analytics-api/pkg/errors"
)

type sheetColumn int

const (
	colStudent sheetColumn = iota
	colClass
	colExam
	colSubject
	colScore
	colExamDate
)

// headerAliases maps accepted header spellings to columns.
var headerAliases = map[string]sheetColumn{
	"student_name": colStudent, "studentname": colStudent, "student": colStudent, "name": colStudent,
	"学生姓名": colStudent, "姓名": colStudent, "学生": colStudent,
	"class_name": colClass, "classname": colClass, "class": colClass, "班级": colClass, "班级名称": colClass,
	"exam_name": colExam, "examname": colExam, "exam": colExam, "考试名称": colExam, "考试": colExam,
	"subject": colSubject, "科目": colSubject, "学科": colSubject,
	"score": colScore, "成绩": colScore, "分数": colScore,
	"exam_date": colExamDate, "examdate": colExamDate, "date": colExamDate, "考试日期": colExamDate, "日期": colExamDate,
}

var requiredColumns = []sheetColumn{colStudent, colClass, colExam, colSubject, colScore}

// ParseScoreSheet converts the first sheet of an XLSX workbook into import rows.
// The first row is the header; blank rows are skipped.
func ParseScoreSheet(r io.Reader) ([]dto.ImportScoreRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to open workbook")
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "workbook does not contain any sheets")
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("failed to read sheet %s", sheet))
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "sheet is empty")
	}

	columns := make(map[sheetColumn]int)
	for idx, header := range rows[0] {
		col, ok := headerAliases[strings.ToLower(strings.TrimSpace(header))]
		if !ok {
			continue
		}
		if _, dup := columns[col]; !dup {
			columns[col] = idx
		}
	}
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				"missing columns: student_name, class_name, exam_name, subject and score are required")
		}
	}

	out := make([]dto.ImportScoreRow, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		get := func(col sheetColumn) string {
			idx, ok := columns[col]
			if !ok || idx >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[idx])
		}
		if isBlankRow(cells) {
			continue
		}
		out = append(out, dto.ImportScoreRow{
			StudentName: get(colStudent),
			ClassName:   get(colClass),
			ExamName:    get(colExam),
			Subject:     get(colSubject),
			Score:       dto.ParseNumber(get(colScore)),
			ExamDate:    get(colExamDate),
		})
	}
	return out, nil
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

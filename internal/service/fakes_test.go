package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/noah-isme/score-analytics-api/internal/models"
	"github.com/noah-isme/score-analytics-api/internal/repository"
	appErrors "github.com/noah-isme/score-analytics-api/pkg/errors"
)

type stubCacheRepo struct {
	mu       sync.Mutex
	store    map[string][]byte
	getErr   error
	patterns []string
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return s.getErr
	}
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = append(s.patterns, pattern)
	s.store = nil
	return nil
}

func (s *stubCacheRepo) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.store))
	for k := range s.store {
		out = append(out, k)
	}
	return out
}

type stubEngine struct {
	mu            sync.Mutex
	studentCalls  int
	classCalls    int
	studentReport *models.StudentAnalyticsReport
	classReport   *models.ClassAnalyticsReport
	err           error
}

func (e *stubEngine) GetStudentReport(_ context.Context, studentID string, subject *models.Subject) (*models.StudentAnalyticsReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.studentCalls++
	if e.err != nil {
		return nil, e.err
	}
	return e.studentReport, nil
}

func (e *stubEngine) GetClassReport(_ context.Context, classID string, subject *models.Subject) (*models.ClassAnalyticsReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.classCalls++
	if e.err != nil {
		return nil, e.err
	}
	return e.classReport, nil
}

type memoryRoster struct {
	classes  map[string]*models.ClassGroup
	students map[string]*models.Student
	exams    map[string]*models.Exam
	scores   map[models.ExamSubjectKey]map[string]*models.Score
	seq      int
	failOn   string
}

func newMemoryRoster() *memoryRoster {
	return &memoryRoster{
		classes:  make(map[string]*models.ClassGroup),
		students: make(map[string]*models.Student),
		exams:    make(map[string]*models.Exam),
		scores:   make(map[models.ExamSubjectKey]map[string]*models.Score),
	}
}

func (m *memoryRoster) nextID(prefix string) string {
	m.seq++
	return prefix + "-" + strconv.Itoa(m.seq)
}

type memoryClasses struct{ *memoryRoster }
type memoryStudents struct{ *memoryRoster }
type memoryExams struct{ *memoryRoster }
type memoryScores struct{ *memoryRoster }

func (m memoryClasses) List(context.Context) ([]models.ClassDetail, error) {
	out := make([]models.ClassDetail, 0, len(m.classes))
	for _, c := range m.classes {
		out = append(out, models.ClassDetail{ClassGroup: *c, StudentCount: m.countStudents(c.ID)})
	}
	return out, nil
}

func (m memoryClasses) FindByID(_ context.Context, id string) (*models.ClassDetail, error) {
	c, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.ClassDetail{ClassGroup: *c, StudentCount: m.countStudents(id)}, nil
}

func (m memoryClasses) FindByName(_ context.Context, name string) (*models.ClassGroup, error) {
	for _, c := range m.classes {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memoryClasses) Create(_ context.Context, class *models.ClassGroup) error {
	class.ID = m.nextID("class")
	m.classes[class.ID] = class
	return nil
}

func (m *memoryRoster) countStudents(classID string) int {
	n := 0
	for _, s := range m.students {
		if s.ClassID == classID {
			n++
		}
	}
	return n
}

func (m memoryStudents) List(_ context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	out := make([]models.StudentDetail, 0)
	for _, s := range m.students {
		if filter.ClassID != "" && s.ClassID != filter.ClassID {
			continue
		}
		out = append(out, models.StudentDetail{Student: *s, ClassName: m.classes[s.ClassID].Name})
	}
	return out, len(out), nil
}

func (m memoryStudents) FindByID(_ context.Context, id string) (*models.StudentDetail, error) {
	s, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.StudentDetail{Student: *s, ClassName: m.classes[s.ClassID].Name}, nil
}

func (m memoryStudents) FindByNameInClass(_ context.Context, name, classID string) (*models.Student, error) {
	for _, s := range m.students {
		if s.Name == name && s.ClassID == classID {
			return s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memoryStudents) Create(_ context.Context, student *models.Student) error {
	student.ID = m.nextID("student")
	m.students[student.ID] = student
	return nil
}

func (m memoryExams) List(context.Context) ([]models.Exam, error) {
	out := make([]models.Exam, 0, len(m.exams))
	for _, e := range m.exams {
		out = append(out, *e)
	}
	return out, nil
}

func (m memoryExams) FindByID(_ context.Context, id string) (*models.Exam, error) {
	e, ok := m.exams[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return e, nil
}

func (m memoryExams) FindByName(_ context.Context, name string) (*models.Exam, error) {
	for _, e := range m.exams {
		if e.Name == name {
			return e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memoryExams) Create(_ context.Context, exam *models.Exam) error {
	exam.ID = m.nextID("exam")
	m.exams[exam.ID] = exam
	return nil
}

func (m memoryScores) FetchScores(_ context.Context, selector models.ScoreSelector) ([]models.ScoreView, error) {
	out := make([]models.ScoreView, 0)
	for key, byStudent := range m.scores {
		for studentID, score := range byStudent {
			student := m.students[studentID]
			if selector.StudentID != "" && studentID != selector.StudentID {
				continue
			}
			if selector.ClassID != "" && student.ClassID != selector.ClassID {
				continue
			}
			out = append(out, models.ScoreView{ID: score.ID, StudentID: studentID, ClassID: student.ClassID, ExamID: key.ExamID, Subject: key.Subject, Score: score.Score})
		}
	}
	return out, nil
}

func (m memoryScores) Create(_ context.Context, score *models.Score) error {
	if m.lookup(score) != nil {
		return repository.ErrDuplicateScore
	}
	return m.put(score)
}

func (m memoryScores) Upsert(_ context.Context, score *models.Score) error {
	if m.failOn != "" && m.students[score.StudentID].Name == m.failOn {
		return sql.ErrConnDone
	}
	if existing := m.lookup(score); existing != nil {
		existing.Score = score.Score
		score.ID = existing.ID
		return nil
	}
	return m.put(score)
}

func (m memoryScores) lookup(score *models.Score) *models.Score {
	return m.scores[models.ExamSubjectKey{ExamID: score.ExamID, Subject: score.Subject}][score.StudentID]
}

func (m memoryScores) put(score *models.Score) error {
	key := models.ExamSubjectKey{ExamID: score.ExamID, Subject: score.Subject}
	if m.scores[key] == nil {
		m.scores[key] = make(map[string]*models.Score)
	}
	score.ID = m.nextID("score")
	m.scores[key][score.StudentID] = score
	return nil
}

type recordingInvalidator struct{ calls int }

func (r *recordingInvalidator) InvalidateReports(context.Context) error {
	r.calls++
	return nil
}

type recordingWarmer struct{ classes []string }

func (r *recordingWarmer) Schedule(classIDs ...string) {
	r.classes = append(r.classes, classIDs...)
}

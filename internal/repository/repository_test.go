package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/score-analytics-api/internal/models"
	appErrors "github.com/noah-isme/score-analytics-api/pkg/errors"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var scoreViewColumns = []string{"id", "student_id", "student_name", "class_id", "exam_id", "exam_name", "exam_date", "subject", "score"}

func TestScoreRepositoryFetchScoresByClassAndSubject(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(scoreViewColumns).
		AddRow("sc-1", "s1", "Ana", "c1", "e1", "Midterm", date, "MATH", 88.5).
		AddRow("sc-2", "s2", "Budi", "c1", "e1", "Midterm", date, "MATH", 91.0)
	mock.ExpectQuery(regexp.QuoteMeta("JOIN exams e ON e.id = sc.exam_id WHERE st.class_id = $1 AND sc.subject = $2")).
		WithArgs("c1", "MATH").
		WillReturnRows(rows)

	subject := models.SubjectMath
	scores, err := repo.FetchScores(context.Background(), models.ScoreSelector{ClassID: "c1", Subject: &subject})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "Ana", scores[0].StudentName)
	assert.Equal(t, models.SubjectMath, scores[1].Subject)
	assert.Equal(t, 91.0, scores[1].Score)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScoreRepositoryFetchScoresByStudent(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE sc.student_id = $1")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(scoreViewColumns))

	scores, err := repo.FetchScores(context.Background(), models.ScoreSelector{StudentID: "s1"})
	require.NoError(t, err)
	assert.NotNil(t, scores)
	assert.Empty(t, scores)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScoreRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	mock.ExpectExec("INSERT INTO scores").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), &models.Score{StudentID: "s1", ExamID: "e1", Subject: models.SubjectMath, Score: 70})
	assert.ErrorIs(t, err, ErrDuplicateScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScoreRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	mock.ExpectExec("INSERT INTO scores").
		WithArgs(sqlmock.AnyArg(), "s1", "e1", models.SubjectMath, 70.0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	score := &models.Score{StudentID: "s1", ExamID: "e1", Subject: models.SubjectMath, Score: 70}
	require.NoError(t, repo.Create(context.Background(), score))
	assert.NotEmpty(t, score.ID)
	assert.False(t, score.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScoreRepositoryUpsertKeepsExistingID(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (student_id, exam_id, subject) DO UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("existing", created))

	score := &models.Score{StudentID: "s1", ExamID: "e1", Subject: models.SubjectEnglish, Score: 99}
	require.NoError(t, repo.Upsert(context.Background(), score))
	assert.Equal(t, "existing", score.ID)
	assert.Equal(t, created, score.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryListOrderedByName(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewClassRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM classes c ORDER BY c.name ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at", "student_count"}).
			AddRow("c1", "Class 1", now, now, 30).
			AddRow("c2", "Class 2", now, now, 0))

	classes, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, 30, classes[0].StudentCount)
	assert.Equal(t, "Class 2", classes[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery("FROM classes c WHERE c.id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT s.id, s.name, s.class_id, s.created_at, s.updated_at, c.name AS class_name FROM students s JOIN classes c ON c.id = s.class_id WHERE 1=1 AND s.class_id = $1 ORDER BY s.name ASC, s.id ASC LIMIT 20 OFFSET 0")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "class_id", "created_at", "updated_at", "class_name"}).
			AddRow("s1", "Ana", "c1", now, now, "Class 1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students s JOIN classes c ON c.id = s.class_id WHERE 1=1 AND s.class_id = $1")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{ClassID: "c1"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "Class 1", students[0].ClassName)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WithArgs(sqlmock.AnyArg(), "Ana", "c1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), &models.Student{Name: "Ana", ClassID: "c1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryListNewestFirst(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY exam_date DESC, id ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "exam_date", "created_at"}).
			AddRow("e2", "Final", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Now()).
			AddRow("e1", "Midterm", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Now()))

	exams, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, exams, 2)
	assert.Equal(t, "e2", exams[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStoreDelegates(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	store := NewRecordStore(NewStudentRepository(db), NewClassRepository(db), NewScoreRepository(db))

	now := time.Now()
	mock.ExpectQuery("FROM students s JOIN classes c ON c.id = s.class_id WHERE s.id = \\$1").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "class_id", "created_at", "updated_at", "class_name"}).
			AddRow("s1", "Ana", "c1", now, now, "Class 1"))

	student, err := store.FindStudent(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "c1", student.ClassID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)

	var dest map[string]int
	assert.ErrorIs(t, repo.Get(context.Background(), "analytics:class:c1", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "analytics:class:c1", map[string]int{"a": 1}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "analytics:*"))
	assert.NoError(t, repo.Ping(context.Background()))
	assert.NoError(t, repo.Close())
}

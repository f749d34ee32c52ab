package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-exam-api/internal/models"
)

const examColumns = "id, year, exam_type, department, subject_code, subject_name, subject_type, exam_date, session, seating_published, hall_tickets_generated, created_at, updated_at"

// ExamRepository persists scheduled exams.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs an ExamRepository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

func (r *ExamRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateBatch inserts exams, assigning IDs and timestamps where missing.
func (r *ExamRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, exams []models.Exam) error {
	if len(exams) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO exams (id, year, exam_type, department, subject_code, subject_name, subject_type, exam_date, session, seating_published, hall_tickets_generated, created_at, updated_at)
VALUES (:id, :year, :exam_type, :department, :subject_code, :subject_name, :subject_type, :exam_date, :session, :seating_published, :hall_tickets_generated, :created_at, :updated_at)`

	for i := range exams {
		exam := &exams[i]
		if exam.ID == "" {
			exam.ID = uuid.NewString()
		}
		if exam.CreatedAt.IsZero() {
			exam.CreatedAt = now
		}
		exam.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, exam); err != nil {
			return fmt.Errorf("insert exam %s/%s: %w", exam.Department, exam.SubjectCode, err)
		}
	}
	return nil
}

// FindByID fetches an exam. Returns sql.ErrNoRows when missing.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams WHERE id = $1`
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// List returns exams matching the filter ordered by date and session.
func (r *ExamRepository) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.Year > 0 {
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if filter.ExamType != "" {
		conditions = append(conditions, fmt.Sprintf("exam_type = $%d", len(args)+1))
		args = append(args, filter.ExamType)
	}
	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}

	query := fmt.Sprintf(`SELECT %s FROM exams WHERE %s ORDER BY exam_date ASC, session ASC, department ASC`,
		examColumns, strings.Join(conditions, " AND "))

	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, args...); err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return exams, nil
}

// MarkSeatingPublished flags the exam as having a committed seating.
func (r *ExamRepository) MarkSeatingPublished(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `UPDATE exams SET seating_published = TRUE, updated_at = $2 WHERE id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark seating published: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark seating published rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

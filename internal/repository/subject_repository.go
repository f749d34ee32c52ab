package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-exam-api/internal/models"
)

// SubjectRepository reads the examinable subject catalog.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs a SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// ListForScheduling returns subjects for a year in catalog order, optionally limited to departments.
func (r *SubjectRepository) ListForScheduling(ctx context.Context, filter models.SubjectCatalogFilter) ([]models.Subject, error) {
	conditions := []string{"year = $1"}
	args := []interface{}{filter.Year}
	if len(filter.Departments) > 0 {
		conditions = append(conditions, fmt.Sprintf("department = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.Departments))
	}

	query := fmt.Sprintf(`SELECT id, code, name, department, year, subject_type FROM subjects WHERE %s ORDER BY created_at ASC, code ASC`,
		strings.Join(conditions, " AND "))

	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, fmt.Errorf("list subjects for scheduling: %w", err)
	}
	return subjects, nil
}

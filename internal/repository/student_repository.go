package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-exam-api/internal/models"
)

// StudentRepository reads student rosters.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListRoster returns active students matching the filter ordered by register number.
func (r *StudentRepository) ListRoster(ctx context.Context, filter models.RosterFilter) ([]models.Student, error) {
	conditions := []string{"active = TRUE"}
	args := []interface{}{}
	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.Year > 0 {
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}

	query := fmt.Sprintf(`SELECT id, register_number, full_name, department, year, active FROM students WHERE %s ORDER BY register_number ASC`,
		strings.Join(conditions, " AND "))

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return students, nil
}

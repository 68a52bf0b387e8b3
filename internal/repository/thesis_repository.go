package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/thesis-defense-api/internal/models"
)

const thesisColumns = `t.id, t.title, t.supervisor_id, COALESCE(sv.full_name, '') AS supervisor_name, t.student_id, COALESCE(st.full_name, '') AS student_name, t.status, t.created_at`

const thesisJoins = `FROM theses t LEFT JOIN users sv ON sv.id = t.supervisor_id LEFT JOIN users st ON st.id = t.student_id`

// ThesisRepository exposes the thesis reads and status writes the planner needs.
type ThesisRepository struct {
	db *sqlx.DB
}

// NewThesisRepository creates a thesis repository.
func NewThesisRepository(db *sqlx.DB) *ThesisRepository {
	return &ThesisRepository{db: db}
}

// FindByID loads a thesis with supervisor and student names.
func (r *ThesisRepository) FindByID(ctx context.Context, id string) (*models.Thesis, error) {
	query := `SELECT ` + thesisColumns + ` ` + thesisJoins + ` WHERE t.id = $1`
	var thesis models.Thesis
	if err := r.db.GetContext(ctx, &thesis, query, id); err != nil {
		return nil, err
	}
	return &thesis, nil
}

// ListApprovedUnscheduled returns approved theses that have no defense yet,
// oldest first.
func (r *ThesisRepository) ListApprovedUnscheduled(ctx context.Context) ([]models.Thesis, error) {
	query := `SELECT ` + thesisColumns + ` ` + thesisJoins + ` WHERE t.status = $1 AND NOT EXISTS (SELECT 1 FROM defense_schedules d WHERE d.thesis_id = t.id) ORDER BY t.created_at ASC, t.id ASC`
	var theses []models.Thesis
	if err := r.db.SelectContext(ctx, &theses, query, models.ThesisStatusApproved); err != nil {
		return nil, fmt.Errorf("list approved unscheduled theses: %w", err)
	}
	return theses, nil
}

// SetStatus updates the status of a single thesis.
func (r *ThesisRepository) SetStatus(ctx context.Context, id string, status models.ThesisStatus) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE theses SET status = $1, updated_at = NOW() WHERE id = $2`, status, id); err != nil {
		return fmt.Errorf("set thesis status: %w", err)
	}
	return nil
}

// SetAllStatus updates the status of every thesis and returns the row count.
func (r *ThesisRepository) SetAllStatus(ctx context.Context, status models.ThesisStatus) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE theses SET status = $1, updated_at = NOW()`, status)
	if err != nil {
		return 0, fmt.Errorf("set all thesis status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("set all thesis status rows: %w", err)
	}
	return affected, nil
}

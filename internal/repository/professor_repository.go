package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/thesis-defense-api/internal/models"
)

// ProfessorRepository reads the professor pool from the users table.
type ProfessorRepository struct {
	db *sqlx.DB
}

// NewProfessorRepository creates a professor repository.
func NewProfessorRepository(db *sqlx.DB) *ProfessorRepository {
	return &ProfessorRepository{db: db}
}

// ListProfessors returns every active professor ordered by id.
func (r *ProfessorRepository) ListProfessors(ctx context.Context) ([]models.Professor, error) {
	const query = `SELECT id, full_name, email FROM users WHERE role = $1 AND active = TRUE ORDER BY id ASC`
	var professors []models.Professor
	if err := r.db.SelectContext(ctx, &professors, query, models.RoleProfessor); err != nil {
		return nil, fmt.Errorf("list professors: %w", err)
	}
	return professors, nil
}

// FindByIDs returns the professors among ids; unknown ids are ignored.
func (r *ProfessorRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Professor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id, full_name, email FROM users WHERE role = $1 AND id = ANY($2) ORDER BY id ASC`
	var professors []models.Professor
	if err := r.db.SelectContext(ctx, &professors, query, models.RoleProfessor, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find professors by ids: %w", err)
	}
	return professors, nil
}

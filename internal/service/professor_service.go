package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/thesis-defense-api/internal/models"
	appErrors "github.com/noah-isme/thesis-defense-api/pkg/errors"
)

// ProfessorService lists the professors the planner draws juries from.
type ProfessorService struct {
	repo   professorReader
	logger *zap.Logger
}

// NewProfessorService constructs a ProfessorService.
func NewProfessorService(repo professorReader, logger *zap.Logger) *ProfessorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfessorService{repo: repo, logger: logger}
}

// List returns the jury pool ordered by id.
func (s *ProfessorService) List(ctx context.Context) ([]models.Professor, error) {
	professors, err := s.repo.ListProfessors(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list professors")
	}
	if professors == nil {
		professors = []models.Professor{}
	}
	return professors, nil
}

package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/thesis-defense-api/internal/models"
)

type incompleteDefenseStore interface {
	ListIncomplete(ctx context.Context) ([]models.DefenseSchedule, error)
	Update(ctx context.Context, sched *models.DefenseSchedule) error
}

// ScheduleRepairer completes defenses whose jury is missing a role.
type ScheduleRepairer struct {
	store   incompleteDefenseStore
	checker *ConflictChecker
	logger  *zap.Logger
}

// NewScheduleRepairer constructs a ScheduleRepairer.
func NewScheduleRepairer(store incompleteDefenseStore, checker *ConflictChecker, logger *zap.Logger) *ScheduleRepairer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleRepairer{store: store, checker: checker, logger: logger}
}

// RepairIncomplete fills the empty roles of every incomplete defense, in the
// order supervisor, principal, examinator, from professors not busy at that
// start time and not already on the jury, lowest id first. It returns the
// number of records it changed. Records stay partially filled when the pool
// runs dry.
func (r *ScheduleRepairer) RepairIncomplete(ctx context.Context, professors []models.Professor) (int, error) {
	records, err := r.store.ListIncomplete(ctx)
	if err != nil {
		return 0, fmt.Errorf("list incomplete defenses: %w", err)
	}

	pool := sortedProfessorIDs(professors)
	fixed := 0
	for i := range records {
		rec := records[i]

		excluded := r.checker.BusyAt(ctx, rec.StartTime, rec.ID)
		for _, id := range rec.JuryIDs() {
			excluded[id] = struct{}{}
		}

		changed := false
		for _, role := range []*string{&rec.SupervisorID, &rec.PrincipalID, &rec.ExaminatorID} {
			if *role != "" {
				continue
			}
			pick := firstAvailable(pool, excluded)
			if pick == "" {
				break
			}
			*role = pick
			excluded[pick] = struct{}{}
			changed = true
		}

		if !changed {
			r.logger.Warn("no professor available to complete defense", zap.String("defense_id", rec.ID), zap.Time("start_time", rec.StartTime))
			continue
		}
		if err := r.store.Update(ctx, &rec); err != nil {
			return fixed, fmt.Errorf("update defense %s: %w", rec.ID, err)
		}
		fixed++
		if rec.Incomplete() {
			r.logger.Warn("defense only partially completed", zap.String("defense_id", rec.ID))
			continue
		}
		r.logger.Info("defense jury completed", zap.String("defense_id", rec.ID),
			zap.String("supervisor_id", rec.SupervisorID),
			zap.String("principal_id", rec.PrincipalID),
			zap.String("examinator_id", rec.ExaminatorID))
	}
	return fixed, nil
}

func sortedProfessorIDs(professors []models.Professor) []string {
	ids := make([]string, 0, len(professors))
	seen := make(map[string]struct{}, len(professors))
	for _, p := range professors {
		if p.ID == "" {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)
	return ids
}

func firstAvailable(pool []string, excluded map[string]struct{}) string {
	for _, id := range pool {
		if _, ok := excluded[id]; !ok {
			return id
		}
	}
	return ""
}

package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/thesis-defense-api/internal/models"
)

type defenseSlotReader interface {
	FindByStartTime(ctx context.Context, start time.Time) ([]models.DefenseSchedule, error)
	FindByRoomAndTime(ctx context.Context, room string, start time.Time) (*models.DefenseSchedule, error)
}

// ConflictReport describes what already occupies one start instant.
type ConflictReport struct {
	RoomConflict bool
	// Busy holds every professor sitting on any jury at the instant, not only
	// the candidates that were asked about.
	Busy      map[string]struct{}
	Conflicts []models.ScheduleConflict
}

// IsBusy reports whether professorID is already on a jury at the instant.
func (r ConflictReport) IsBusy(professorID string) bool {
	if professorID == "" {
		return false
	}
	_, ok := r.Busy[professorID]
	return ok
}

// HasConflict reports whether the room or any candidate is taken.
func (r ConflictReport) HasConflict() bool {
	return len(r.Conflicts) > 0
}

// ConflictChecker answers room and person double-booking questions against
// persisted defenses. Reads fail open: a lookup error is logged and reported
// as "no conflict" so a transient hiccup cannot abort a planning run. The
// unique (room, start_time) constraint still guards the write.
type ConflictChecker struct {
	repo   defenseSlotReader
	logger *zap.Logger
}

// NewConflictChecker constructs a ConflictChecker.
func NewConflictChecker(repo defenseSlotReader, logger *zap.Logger) *ConflictChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictChecker{repo: repo, logger: logger}
}

// Check inspects the defenses starting exactly at start, ignoring excludeID,
// and reports whether room is occupied and which candidates are busy.
func (c *ConflictChecker) Check(ctx context.Context, start time.Time, room string, candidates []string, excludeID string) ConflictReport {
	report := ConflictReport{Busy: map[string]struct{}{}}

	existing, err := c.repo.FindByStartTime(ctx, start)
	if err != nil {
		c.logger.Warn("conflict lookup failed, assuming free", zap.Time("start_time", start), zap.String("room", room), zap.Error(err))
		return report
	}

	wanted := make(map[string]struct{}, len(candidates))
	for _, id := range candidates {
		if id != "" {
			wanted[id] = struct{}{}
		}
	}

	for _, item := range existing {
		if excludeID != "" && item.ID == excludeID {
			continue
		}
		if room != "" && sameRoom(item.Room, room) {
			report.RoomConflict = true
			report.Conflicts = append(report.Conflicts, models.ScheduleConflict{
				ScheduleID: item.ID,
				Room:       item.Room,
				StartTime:  item.StartTime,
				Dimension:  models.ConflictDimensionRoom,
			})
		}
		for _, id := range item.JuryIDs() {
			report.Busy[id] = struct{}{}
			if _, ok := wanted[id]; ok {
				report.Conflicts = append(report.Conflicts, models.ScheduleConflict{
					ScheduleID:  item.ID,
					Room:        item.Room,
					StartTime:   item.StartTime,
					ProfessorID: id,
					Dimension:   models.ConflictDimensionProfessor,
				})
			}
		}
	}
	return report
}

// BusyAt returns the professors on any jury at start, ignoring excludeID.
func (c *ConflictChecker) BusyAt(ctx context.Context, start time.Time, excludeID string) map[string]struct{} {
	return c.Check(ctx, start, "", nil, excludeID).Busy
}

// RoomTaken reports whether a defense already occupies room at start.
func (c *ConflictChecker) RoomTaken(ctx context.Context, room string, start time.Time) bool {
	existing, err := c.repo.FindByRoomAndTime(ctx, room, start)
	if err != nil {
		c.logger.Warn("room lookup failed, assuming free", zap.Time("start_time", start), zap.String("room", room), zap.Error(err))
		return false
	}
	return existing != nil
}

func sameRoom(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/thesis-defense-api/internal/dto"
	"github.com/noah-isme/thesis-defense-api/internal/models"
	appErrors "github.com/noah-isme/thesis-defense-api/pkg/errors"
)

type professorReader interface {
	ListProfessors(ctx context.Context) ([]models.Professor, error)
}

type eligibleThesisStore interface {
	ListApprovedUnscheduled(ctx context.Context) ([]models.Thesis, error)
	SetStatus(ctx context.Context, id string, status models.ThesisStatus) error
}

type defenseCreator interface {
	Create(ctx context.Context, sched *models.DefenseSchedule) error
}

// PlannerConfig tunes the batch planner.
type PlannerConfig struct {
	Rooms         []string
	Shifts        []Shift
	Location      *time.Location
	SessionLength time.Duration
	BatchSize     int
	HorizonDays   int
	MinProfessors int
}

func (c PlannerConfig) withDefaults() PlannerConfig {
	if len(c.Shifts) == 0 {
		c.Shifts = DefaultShifts
	}
	if c.Location == nil {
		c.Location = FixedZone(7)
	}
	if c.SessionLength <= 0 {
		c.SessionLength = 35 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 6
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 30
	}
	if c.MinProfessors <= 0 {
		c.MinProfessors = 3
	}
	return c
}

// PlannerService places approved theses into defense sessions. Theses sharing
// a supervisor are planned as consecutive slots of one room and shift with a
// single principal and examinator for the whole batch.
type PlannerService struct {
	professors professorReader
	theses     eligibleThesisStore
	defenses   defenseCreator
	checker    *ConflictChecker
	repairer   *ScheduleRepairer
	cache      *CacheService
	metrics    *MetricsService
	cfg        PlannerConfig
	logger     *zap.Logger
	now        func() time.Time

	running sync.Mutex
}

// NewPlannerService constructs the planner.
func NewPlannerService(
	professors professorReader,
	theses eligibleThesisStore,
	defenses defenseCreator,
	checker *ConflictChecker,
	repairer *ScheduleRepairer,
	cache *CacheService,
	metrics *MetricsService,
	cfg PlannerConfig,
	logger *zap.Logger,
) *PlannerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlannerService{
		professors: professors,
		theses:     theses,
		defenses:   defenses,
		checker:    checker,
		repairer:   repairer,
		cache:      cache,
		metrics:    metrics,
		cfg:        cfg.withDefaults(),
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the planner clock.
func (s *PlannerService) WithClock(now func() time.Time) *PlannerService {
	if now != nil {
		s.now = now
	}
	return s
}

type supervisorGroup struct {
	supervisorID string
	theses       []models.Thesis
}

type batchPlacement struct {
	room   string
	shift  string
	slots  []time.Time
	jury   [2]string
	placed bool
}

// RunAutoPlan repairs incomplete defenses and then schedules every approved
// thesis without a defense. Only one run may be active per process, and
// cancelling ctx does not stop a run already holding the lock.
func (s *PlannerService) RunAutoPlan(ctx context.Context) (*dto.AutoPlanResult, error) {
	// a run is never abandoned halfway through a batch
	ctx = context.WithoutCancel(ctx)

	if !s.running.TryLock() {
		s.metrics.ObservePlanningRun(PlanOutcomeBusy, 0, 0, 0)
		return nil, appErrors.Clone(appErrors.ErrConflict, "planning already in progress")
	}
	defer s.running.Unlock()

	startedAt := s.now()
	result, err := s.run(ctx)
	elapsed := s.now().Sub(startedAt)

	outcome := PlanOutcomeSuccess
	switch {
	case appErrors.HasCode(err, appErrors.ErrPreconditionFailed.Code):
		outcome = PlanOutcomePrecondition
	case err != nil:
		outcome = PlanOutcomeError
	}

	scheduled, fixed := 0, 0
	if result != nil {
		scheduled, fixed = result.Scheduled, result.Fixed
		result.StartedAt = startedAt.UTC()
		result.Duration = elapsed.String()
	}
	s.metrics.ObservePlanningRun(outcome, scheduled, fixed, elapsed)
	if scheduled > 0 || fixed > 0 {
		s.cache.Invalidate(ctx, defenseCachePattern)
	}
	if err != nil {
		s.logger.Error("auto-plan failed", zap.Int("scheduled", scheduled), zap.Int("fixed", fixed), zap.Error(err))
		return nil, err
	}

	s.logger.Info("auto-plan finished",
		zap.Int("eligible", result.Eligible),
		zap.Int("scheduled", result.Scheduled),
		zap.Int("fixed", result.Fixed),
		zap.Int("unplaced", result.Unplaced),
		zap.Duration("duration", elapsed))
	return result, nil
}

func (s *PlannerService) run(ctx context.Context) (*dto.AutoPlanResult, error) {
	professors, err := s.professors.ListProfessors(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professors")
	}
	pool := sortedProfessorIDs(professors)
	if len(pool) < s.cfg.MinProfessors {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("not enough professors available (minimum %d required)", s.cfg.MinProfessors))
	}

	result := &dto.AutoPlanResult{Batches: []dto.PlannedBatch{}}

	fixed, err := s.repairer.RepairIncomplete(ctx, professors)
	result.Fixed = fixed
	if err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to repair incomplete defenses")
	}

	theses, err := s.theses.ListApprovedUnscheduled(ctx)
	if err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load eligible theses")
	}
	result.Eligible = len(theses)

	groups, orphans := groupBySupervisor(theses)
	if len(orphans) > 0 {
		result.Unplaced += len(orphans)
		result.Skipped = append(result.Skipped, dto.UnplacedGroup{ThesisIDs: orphans, Reason: "thesis has no supervisor"})
		s.logger.Warn("theses without supervisor skipped", zap.Strings("thesis_ids", orphans))
	}

	for _, group := range groups {
		for offset := 0; offset < len(group.theses); offset += s.cfg.BatchSize {
			end := offset + s.cfg.BatchSize
			if end > len(group.theses) {
				end = len(group.theses)
			}
			batch := group.theses[offset:end]

			placement := s.findPlacement(ctx, group.supervisorID, len(batch), pool)
			if !placement.placed {
				remaining := thesisIDs(group.theses[offset:])
				result.Unplaced += len(remaining)
				result.Skipped = append(result.Skipped, dto.UnplacedGroup{
					SupervisorID: group.supervisorID,
					ThesisIDs:    remaining,
					Reason:       fmt.Sprintf("no room, shift and jury available within %d days", s.cfg.HorizonDays),
				})
				s.metrics.RecordBatchPlacement(false)
				s.logger.Warn("no placement found for supervisor batch",
					zap.String("supervisor_id", group.supervisorID),
					zap.Int("batch_size", len(batch)),
					zap.Int("remaining", len(remaining)))
				break
			}

			if err := s.commitBatch(ctx, group.supervisorID, batch, placement); err != nil {
				return result, err
			}
			result.Scheduled += len(batch)
			result.Batches = append(result.Batches, dto.PlannedBatch{
				SupervisorID: group.supervisorID,
				PrincipalID:  placement.jury[0],
				ExaminatorID: placement.jury[1],
				Room:         placement.room,
				Shift:        placement.shift,
				FirstSlot:    placement.slots[0].UTC(),
				ThesisIDs:    thesisIDs(batch),
			})
			s.metrics.RecordBatchPlacement(true)
			s.logger.Info("supervisor batch placed",
				zap.String("supervisor_id", group.supervisorID),
				zap.String("room", placement.room),
				zap.String("shift", placement.shift),
				zap.Time("first_slot", placement.slots[0]),
				zap.Int("size", len(batch)))
		}
	}

	return result, nil
}

// findPlacement scans days from tomorrow up to the horizon, rooms in configured
// order and shifts in table order, returning the first candidate whose free
// slots fit the batch, whose supervisor is free at all of them, and for which
// two more professors are free at all of them.
func (s *PlannerService) findPlacement(ctx context.Context, supervisorID string, size int, pool []string) batchPlacement {
	now := s.now()
	y, m, d := now.In(s.cfg.Location).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, s.cfg.Location)

	for offset := 1; offset <= s.cfg.HorizonDays; offset++ {
		day := today.AddDate(0, 0, offset)
		shifts := GenerateDaySlots(day, s.cfg.Shifts, s.cfg.Location, now)

		for _, room := range s.cfg.Rooms {
			for _, shift := range shifts {
				free := make([]time.Time, 0, len(shift.Starts))
				for _, start := range shift.Starts {
					if !s.checker.RoomTaken(ctx, room, start) {
						free = append(free, start)
					}
				}
				if len(free) < size {
					continue
				}
				slots := free[:size]

				busy := map[string]struct{}{}
				for _, start := range slots {
					for id := range s.checker.BusyAt(ctx, start, "") {
						busy[id] = struct{}{}
					}
				}
				if _, taken := busy[supervisorID]; taken {
					continue
				}
				busy[supervisorID] = struct{}{}

				principal := firstAvailable(pool, busy)
				if principal == "" {
					continue
				}
				busy[principal] = struct{}{}
				examinator := firstAvailable(pool, busy)
				if examinator == "" {
					continue
				}

				return batchPlacement{
					room:   room,
					shift:  shift.Shift,
					slots:  slots,
					jury:   [2]string{principal, examinator},
					placed: true,
				}
			}
		}
	}
	return batchPlacement{}
}

func (s *PlannerService) commitBatch(ctx context.Context, supervisorID string, batch []models.Thesis, placement batchPlacement) error {
	for i, thesis := range batch {
		start := placement.slots[i].UTC()
		rec := &models.DefenseSchedule{
			ThesisID:     thesis.ID,
			PrincipalID:  placement.jury[0],
			ExaminatorID: placement.jury[1],
			SupervisorID: supervisorID,
			StudentID:    thesis.StudentID,
			StartTime:    start,
			EndTime:      start.Add(s.cfg.SessionLength),
			Room:         placement.room,
			Status:       models.DefenseStatusTentative,
		}
		if err := s.defenses.Create(ctx, rec); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create defense schedule")
		}
		if err := s.theses.SetStatus(ctx, thesis.ID, models.ThesisStatusScheduled); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark thesis scheduled")
		}
	}
	return nil
}

// groupBySupervisor buckets theses by supervisor, largest bucket first with
// ties broken by supervisor id. Theses keep their input order inside a bucket.
// Theses without a supervisor are returned separately.
func groupBySupervisor(theses []models.Thesis) ([]supervisorGroup, []string) {
	index := map[string]int{}
	var groups []supervisorGroup
	var orphans []string
	for _, thesis := range theses {
		if thesis.SupervisorID == "" {
			orphans = append(orphans, thesis.ID)
			continue
		}
		i, ok := index[thesis.SupervisorID]
		if !ok {
			i = len(groups)
			index[thesis.SupervisorID] = i
			groups = append(groups, supervisorGroup{supervisorID: thesis.SupervisorID})
		}
		groups[i].theses = append(groups[i].theses, thesis)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		if len(groups[a].theses) != len(groups[b].theses) {
			return len(groups[a].theses) > len(groups[b].theses)
		}
		return groups[a].supervisorID < groups[b].supervisorID
	})
	return groups, orphans
}

func thesisIDs(theses []models.Thesis) []string {
	ids := make([]string, len(theses))
	for i, t := range theses {
		ids[i] = t.ID
	}
	return ids
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-defense-api/internal/dto"
	"github.com/noah-isme/thesis-defense-api/internal/models"
	"github.com/noah-isme/thesis-defense-api/internal/repository"
	appErrors "github.com/noah-isme/thesis-defense-api/pkg/errors"
)

const (
	defenseCachePattern = "defenses:*"
	defenseListPrefix   = "defenses:list"
)

type defenseScheduleStore interface {
	FindByID(ctx context.Context, id string) (*models.DefenseSchedule, error)
	Create(ctx context.Context, sched *models.DefenseSchedule) error
	Update(ctx context.Context, sched *models.DefenseSchedule) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
	List(ctx context.Context, filter models.DefenseScheduleFilter) ([]models.DefenseScheduleDetail, int, error)
}

type thesisStatusStore interface {
	FindByID(ctx context.Context, id string) (*models.Thesis, error)
	SetStatus(ctx context.Context, id string, status models.ThesisStatus) error
	SetAllStatus(ctx context.Context, status models.ThesisStatus) (int64, error)
}

type professorLookup interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Professor, error)
}

// DefenseScheduleConfig carries the settings the mutation rules depend on.
type DefenseScheduleConfig struct {
	Rooms         []string
	Shifts        []Shift
	Location      *time.Location
	SessionLength time.Duration
	CacheTTL      time.Duration
}

// DefenseScheduleService exposes reads and admin mutations over defenses.
type DefenseScheduleService struct {
	store     defenseScheduleStore
	theses    thesisStatusStore
	checker   *ConflictChecker
	cache     *CacheService
	validator *validator.Validate
	cfg       DefenseScheduleConfig
	logger    *zap.Logger

	professors professorLookup
}

type cachedDefenseList struct {
	Items []models.DefenseScheduleDetail `json:"items"`
	Total int                            `json:"total"`
}

// NewDefenseScheduleService constructs the service.
func NewDefenseScheduleService(
	store defenseScheduleStore,
	theses thesisStatusStore,
	checker *ConflictChecker,
	cache *CacheService,
	validate *validator.Validate,
	cfg DefenseScheduleConfig,
	logger *zap.Logger,
) *DefenseScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.Location == nil {
		cfg.Location = FixedZone(7)
	}
	if cfg.SessionLength <= 0 {
		cfg.SessionLength = 35 * time.Minute
	}
	if len(cfg.Shifts) == 0 {
		cfg.Shifts = DefaultShifts
	}
	return &DefenseScheduleService{
		store:     store,
		theses:    theses,
		checker:   checker,
		cache:     cache,
		validator: validate,
		cfg:       cfg,
		logger:    logger,
	}
}

// WithProfessorLookup makes Create and Update reject jury ids that are not
// professors.
func (s *DefenseScheduleService) WithProfessorLookup(lookup professorLookup) *DefenseScheduleService {
	s.professors = lookup
	return s
}

// List returns defenses with participant names, filtered and paginated.
func (s *DefenseScheduleService) List(ctx context.Context, query dto.DefenseListQuery) ([]models.DefenseScheduleDetail, *models.Pagination, error) {
	filter, err := s.buildFilter(query)
	if err != nil {
		return nil, nil, err
	}

	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}
	key := listCacheKey(filter)

	var cached cachedDefenseList
	if s.cache.Get(ctx, key, &cached) {
		pagination.TotalCount = cached.Total
		return cached.Items, pagination, nil
	}

	items, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list defenses")
	}
	if items == nil {
		items = []models.DefenseScheduleDetail{}
	}
	s.cache.Set(ctx, key, cachedDefenseList{Items: items, Total: total}, s.cfg.CacheTTL)

	pagination.TotalCount = total
	return items, pagination, nil
}

// Get returns a single defense.
func (s *DefenseScheduleService) Get(ctx context.Context, id string) (*models.DefenseSchedule, error) {
	sched, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "defense schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load defense schedule")
	}
	return sched, nil
}

// Create schedules one approved thesis by hand. The thesis supervisor sits on
// the jury and the session lasts the configured length.
func (s *DefenseScheduleService) Create(ctx context.Context, req dto.CreateDefenseRequest) (*models.DefenseSchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid defense payload")
	}

	thesis, err := s.theses.FindByID(ctx, req.ThesisID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "thesis not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load thesis")
	}
	if thesis.Status != models.ThesisStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only approved theses can be scheduled")
	}

	start := req.StartTime.UTC()
	rec := &models.DefenseSchedule{
		ThesisID:     thesis.ID,
		PrincipalID:  strings.TrimSpace(req.PrincipalID),
		ExaminatorID: strings.TrimSpace(req.ExaminatorID),
		SupervisorID: thesis.SupervisorID,
		StudentID:    thesis.StudentID,
		StartTime:    start,
		EndTime:      start.Add(s.cfg.SessionLength),
		Room:         strings.TrimSpace(req.Room),
		Status:       models.DefenseStatusTentative,
	}
	if err := s.validateRecord(rec); err != nil {
		return nil, err
	}
	if err := s.ensureProfessors(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.ensureNoConflict(ctx, rec); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "thesis already has a defense or the room is taken")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create defense schedule")
	}
	if err := s.theses.SetStatus(ctx, thesis.ID, models.ThesisStatusScheduled); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark thesis scheduled")
	}

	s.cache.Invalidate(ctx, defenseCachePattern)
	s.warnOffGrid(rec)
	s.logger.Info("defense created", zap.String("defense_id", rec.ID), zap.String("thesis_id", rec.ThesisID), zap.String("room", rec.Room), zap.Time("start_time", rec.StartTime))
	return rec, nil
}

// Update applies patch to the defense, re-validating jury distinctness and
// re-checking conflicts at the resulting room and start time.
func (s *DefenseScheduleService) Update(ctx context.Context, id string, patch dto.DefenseSchedulePatch) (*models.DefenseSchedule, error) {
	if err := s.validator.Struct(patch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid defense patch")
	}
	if patch.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no fields to update")
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := *existing
	s.applyPatch(&merged, patch)

	if err := s.validateRecord(&merged); err != nil {
		return nil, err
	}
	if err := s.ensureProfessors(ctx, &merged); err != nil {
		return nil, err
	}
	if err := s.ensureNoConflict(ctx, &merged); err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, &merged); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "defense schedule not found")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrConflict, "room is already taken at that time")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update defense schedule")
	}

	s.cache.Invalidate(ctx, defenseCachePattern)
	s.warnOffGrid(&merged)
	s.logger.Info("defense updated", zap.String("defense_id", merged.ID))
	return &merged, nil
}

// Delete removes a defense and returns its thesis to approved.
func (s *DefenseScheduleService) Delete(ctx context.Context, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "defense schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete defense schedule")
	}
	if err := s.theses.SetStatus(ctx, existing.ThesisID, models.ThesisStatusApproved); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revert thesis status")
	}

	s.cache.Invalidate(ctx, defenseCachePattern)
	s.logger.Info("defense deleted", zap.String("defense_id", id), zap.String("thesis_id", existing.ThesisID))
	return nil
}

// Clear deletes every defense and sets every thesis back to approved.
func (s *DefenseScheduleService) Clear(ctx context.Context) (int64, error) {
	deleted, err := s.store.DeleteAll(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear defense schedules")
	}
	reverted, err := s.theses.SetAllStatus(ctx, models.ThesisStatusApproved)
	if err != nil {
		return deleted, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revert thesis statuses")
	}

	s.cache.Invalidate(ctx, defenseCachePattern)
	s.logger.Info("defense schedules cleared", zap.Int64("deleted", deleted), zap.Int64("theses_reverted", reverted))
	return deleted, nil
}

func (s *DefenseScheduleService) applyPatch(rec *models.DefenseSchedule, patch dto.DefenseSchedulePatch) {
	if patch.PrincipalID != nil {
		rec.PrincipalID = strings.TrimSpace(*patch.PrincipalID)
	}
	if patch.ExaminatorID != nil {
		rec.ExaminatorID = strings.TrimSpace(*patch.ExaminatorID)
	}
	if patch.SupervisorID != nil {
		rec.SupervisorID = strings.TrimSpace(*patch.SupervisorID)
	}
	if patch.Room != nil {
		rec.Room = strings.TrimSpace(*patch.Room)
	}
	if patch.Status != nil {
		rec.Status = *patch.Status
	}
	if patch.StartTime != nil {
		rec.StartTime = patch.StartTime.UTC()
		if patch.EndTime == nil {
			rec.EndTime = rec.StartTime.Add(s.cfg.SessionLength)
		}
	}
	if patch.EndTime != nil {
		rec.EndTime = patch.EndTime.UTC()
	}
}

func (s *DefenseScheduleService) validateRecord(rec *models.DefenseSchedule) error {
	roles := []struct{ name, id string }{
		{"principal", rec.PrincipalID},
		{"examinator", rec.ExaminatorID},
		{"supervisor", rec.SupervisorID},
	}
	seen := map[string]string{}
	for _, role := range roles {
		if role.id == "" {
			continue
		}
		if other, dup := seen[role.id]; dup {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s and %s must be different professors", other, role.name))
		}
		seen[role.id] = role.name
	}
	if rec.Room == "" {
		return appErrors.Clone(appErrors.ErrValidation, "room is required")
	}
	if len(s.cfg.Rooms) > 0 {
		room, ok := s.canonicalRoom(rec.Room)
		if !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown room %q", rec.Room))
		}
		rec.Room = room
	}
	if !rec.EndTime.After(rec.StartTime) {
		return appErrors.Clone(appErrors.ErrValidation, "endTime must be after startTime")
	}
	if !rec.Status.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", rec.Status))
	}
	return nil
}

func (s *DefenseScheduleService) ensureProfessors(ctx context.Context, rec *models.DefenseSchedule) error {
	if s.professors == nil {
		return nil
	}
	ids := rec.JuryIDs()
	if len(ids) == 0 {
		return nil
	}
	found, err := s.professors.FindByIDs(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professors")
	}
	known := make(map[string]struct{}, len(found))
	for _, p := range found {
		known[p.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is not a professor", id))
		}
	}
	return nil
}

func (s *DefenseScheduleService) ensureNoConflict(ctx context.Context, rec *models.DefenseSchedule) error {
	report := s.checker.Check(ctx, rec.StartTime, rec.Room, rec.JuryIDs(), rec.ID)
	if !report.HasConflict() {
		return nil
	}
	message := "professor already has a defense at that time"
	if report.RoomConflict {
		message = "room is already taken at that time"
	}
	conflict := &models.ScheduleConflictError{Type: "DEFENSE_CONFLICT", Message: message, Conflicts: report.Conflicts}
	appErr := appErrors.Wrap(conflict, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, message)
	appErr.Details = conflict
	return appErr
}

// warnOffGrid flags manual starts the planner would never produce. They are
// accepted; conflicts are still checked by exact start.
func (s *DefenseScheduleService) warnOffGrid(rec *models.DefenseSchedule) {
	if IsShiftSlot(rec.StartTime, s.cfg.Shifts, s.cfg.Location) {
		return
	}
	s.logger.Warn("defense starts outside the shift grid",
		zap.String("defense_id", rec.ID),
		zap.String("room", rec.Room),
		zap.Time("start_time", rec.StartTime.In(s.cfg.Location)))
}

// canonicalRoom maps any spelling of a configured room to its configured name.
func (s *DefenseScheduleService) canonicalRoom(room string) (string, bool) {
	for _, r := range s.cfg.Rooms {
		if sameRoom(r, room) {
			return r, true
		}
	}
	return "", false
}

func (s *DefenseScheduleService) buildFilter(query dto.DefenseListQuery) (models.DefenseScheduleFilter, error) {
	if err := s.validator.Struct(query); err != nil {
		return models.DefenseScheduleFilter{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters")
	}

	filter := models.DefenseScheduleFilter{
		Room:        strings.TrimSpace(query.Room),
		ProfessorID: strings.TrimSpace(query.ProfessorID),
		Status:      models.DefenseStatus(query.Status),
		Page:        query.Page,
		PageSize:    query.Limit,
		SortOrder:   strings.ToUpper(query.Order),
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.SortOrder == "" {
		filter.SortOrder = "ASC"
	}
	if query.From != "" {
		from, err := time.ParseInLocation("2006-01-02", query.From, s.cfg.Location)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "from must be a YYYY-MM-DD date")
		}
		filter.From = &from
	}
	if query.To != "" {
		to, err := time.ParseInLocation("2006-01-02", query.To, s.cfg.Location)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "to must be a YYYY-MM-DD date")
		}
		// inclusive of the whole day
		to = to.AddDate(0, 0, 1)
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && !filter.To.After(*filter.From) {
		return filter, appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
	}
	return filter, nil
}

func listCacheKey(f models.DefenseScheduleFilter) string {
	var from, to string
	if f.From != nil {
		from = f.From.UTC().Format(time.RFC3339)
	}
	if f.To != nil {
		to = f.To.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s:%s:%d:%d:%s", defenseListPrefix, f.Room, f.ProfessorID, from, to, f.Status, f.Page, f.PageSize, f.SortOrder)
}

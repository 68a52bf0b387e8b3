package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesis-defense-api/internal/models"
	"github.com/noah-isme/thesis-defense-api/internal/repository"
)

var testZone = FixedZone(7)

// Monday 4 March 2024, 10:00 local.
var testNow = time.Date(2024, time.March, 4, 10, 0, 0, 0, testZone)

func fixedClock() time.Time { return testNow }

func localSlot(day int, hour, minute int) time.Time {
	return time.Date(2024, time.March, day, hour, minute, 0, 0, testZone).UTC()
}

type defenseFake struct {
	mu       sync.Mutex
	records  map[string]models.DefenseSchedule
	seq      int
	readErr  error
	writeErr error
	updates  int
	// honorCtx makes writes fail once ctx is cancelled, like a SQL driver.
	honorCtx bool
}

func newDefenseFake(records ...models.DefenseSchedule) *defenseFake {
	f := &defenseFake{records: map[string]models.DefenseSchedule{}}
	for _, rec := range records {
		f.records[rec.ID] = rec
	}
	return f
}

func (f *defenseFake) FindByID(ctx context.Context, id string) (*models.DefenseSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &rec, nil
}

func (f *defenseFake) FindByStartTime(ctx context.Context, start time.Time) ([]models.DefenseSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	var out []models.DefenseSchedule
	for _, rec := range f.sortedLocked() {
		if rec.StartTime.Equal(start) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *defenseFake) FindByRoomAndTime(ctx context.Context, room string, start time.Time) (*models.DefenseSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	for _, rec := range f.records {
		if rec.Room == room && rec.StartTime.Equal(start) {
			found := rec
			return &found, nil
		}
	}
	return nil, nil
}

func (f *defenseFake) Create(ctx context.Context, sched *models.DefenseSchedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	if f.honorCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	for _, rec := range f.records {
		if rec.ThesisID == sched.ThesisID || (rec.Room == sched.Room && rec.StartTime.Equal(sched.StartTime)) {
			return fmt.Errorf("create defense: %w", repository.ErrDuplicate)
		}
	}
	if sched.ID == "" {
		f.seq++
		sched.ID = fmt.Sprintf("def-%03d", f.seq)
	}
	if sched.Status == "" {
		sched.Status = models.DefenseStatusTentative
	}
	f.records[sched.ID] = *sched
	return nil
}

func (f *defenseFake) Update(ctx context.Context, sched *models.DefenseSchedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	if _, ok := f.records[sched.ID]; !ok {
		return sql.ErrNoRows
	}
	f.records[sched.ID] = *sched
	f.updates++
	return nil
}

func (f *defenseFake) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.records, id)
	return nil
}

func (f *defenseFake) DeleteAll(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.records))
	f.records = map[string]models.DefenseSchedule{}
	return n, nil
}

func (f *defenseFake) ListIncomplete(ctx context.Context) ([]models.DefenseSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.DefenseSchedule
	for _, rec := range f.sortedLocked() {
		if rec.Incomplete() {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *defenseFake) List(ctx context.Context, filter models.DefenseScheduleFilter) ([]models.DefenseScheduleDetail, int, error) {
	all, err := f.ListAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	start := (filter.Page - 1) * filter.PageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + filter.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (f *defenseFake) ListAll(ctx context.Context, filter models.DefenseScheduleFilter) ([]models.DefenseScheduleDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	var out []models.DefenseScheduleDetail
	for _, rec := range f.sortedLocked() {
		if filter.Room != "" && rec.Room != filter.Room {
			continue
		}
		if filter.ProfessorID != "" && rec.PrincipalID != filter.ProfessorID && rec.ExaminatorID != filter.ProfessorID && rec.SupervisorID != filter.ProfessorID {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.From != nil && rec.StartTime.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !rec.StartTime.Before(*filter.To) {
			continue
		}
		out = append(out, models.DefenseScheduleDetail{DefenseSchedule: rec, StudentName: "Student " + rec.StudentID})
	}
	return out, nil
}

func (f *defenseFake) all() []models.DefenseSchedule {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedLocked()
}

func (f *defenseFake) sortedLocked() []models.DefenseSchedule {
	out := make([]models.DefenseSchedule, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		if out[i].Room != out[j].Room {
			return out[i].Room < out[j].Room
		}
		return out[i].ID < out[j].ID
	})
	return out
}

type thesisFake struct {
	mu       sync.Mutex
	order    []string
	theses   map[string]*models.Thesis
	defenses *defenseFake
}

func newThesisFake(defenses *defenseFake, theses ...models.Thesis) *thesisFake {
	f := &thesisFake{theses: map[string]*models.Thesis{}, defenses: defenses}
	for i := range theses {
		t := theses[i]
		f.order = append(f.order, t.ID)
		f.theses[t.ID] = &t
	}
	return f
}

func (f *thesisFake) FindByID(ctx context.Context, id string) (*models.Thesis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.theses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *t
	return &copied, nil
}

func (f *thesisFake) ListApprovedUnscheduled(ctx context.Context) ([]models.Thesis, error) {
	scheduled := map[string]bool{}
	for _, rec := range f.defenses.all() {
		scheduled[rec.ThesisID] = true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Thesis
	for _, id := range f.order {
		t := f.theses[id]
		if t.Status == models.ThesisStatusApproved && !scheduled[id] {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *thesisFake) SetStatus(ctx context.Context, id string, status models.ThesisStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.theses[id]
	if !ok {
		return sql.ErrNoRows
	}
	t.Status = status
	return nil
}

func (f *thesisFake) SetAllStatus(ctx context.Context, status models.ThesisStatus) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.theses {
		t.Status = status
	}
	return int64(len(f.theses)), nil
}

func (f *thesisFake) status(id string) models.ThesisStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.theses[id].Status
}

type professorFake struct {
	professors []models.Professor
	err        error
	gate       chan struct{}
	entered    chan struct{}
}

func (f *professorFake) ListProfessors(ctx context.Context) ([]models.Professor, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.professors, nil
}

func professors(ids ...string) []models.Professor {
	out := make([]models.Professor, len(ids))
	for i, id := range ids {
		out[i] = models.Professor{ID: id, FullName: "Prof " + strings.ToUpper(id)}
	}
	return out
}

// thesesFor builds n approved theses supervised by supervisor, ids prefixed
// with the supervisor id.
func thesesFor(supervisor string, n int) []models.Thesis {
	out := make([]models.Thesis, n)
	for i := range out {
		out[i] = models.Thesis{
			ID:           fmt.Sprintf("%s-t%d", supervisor, i+1),
			SupervisorID: supervisor,
			StudentID:    fmt.Sprintf("%s-s%d", supervisor, i+1),
			Status:       models.ThesisStatusApproved,
		}
	}
	return out
}

// assertNoDoubleBooking checks no room or professor is used twice at the
// same instant and every jury has three distinct members.
func assertNoDoubleBooking(t *testing.T, records []models.DefenseSchedule) {
	t.Helper()
	rooms := map[string]string{}
	people := map[string]string{}
	for _, rec := range records {
		roomKey := strings.ToLower(rec.Room) + "|" + rec.StartTime.UTC().Format(time.RFC3339)
		if other, ok := rooms[roomKey]; ok {
			require.Failf(t, "room double booked", "%s and %s share %s", other, rec.ID, roomKey)
		}
		rooms[roomKey] = rec.ID

		jury := rec.JuryIDs()
		seen := map[string]bool{}
		for _, id := range jury {
			require.Falsef(t, seen[id], "defense %s repeats professor %s", rec.ID, id)
			seen[id] = true
			key := id + "|" + rec.StartTime.UTC().Format(time.RFC3339)
			if other, ok := people[key]; ok {
				require.Failf(t, "professor double booked", "%s and %s share %s", other, rec.ID, key)
			}
			people[key] = rec.ID
		}
		require.True(t, rec.EndTime.After(rec.StartTime))
	}
}

var errBoom = errors.New("boom")

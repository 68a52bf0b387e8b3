package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/thesis-defense-api/internal/models"
)

// Jury columns are nullable for legacy rows; they are read back as "".
const defenseColumns = `d.id, d.thesis_id, COALESCE(CAST(d.principal_id AS text), '') AS principal_id, COALESCE(CAST(d.examinator_id AS text), '') AS examinator_id, COALESCE(CAST(d.supervisor_id AS text), '') AS supervisor_id, d.student_id, d.start_time, d.end_time, d.room, d.status, d.created_at, d.updated_at`

const defenseDetailColumns = defenseColumns + `, COALESCE(t.title, '') AS thesis_title, COALESCE(p.full_name, '') AS principal_name, COALESCE(e.full_name, '') AS examinator_name, COALESCE(s.full_name, '') AS supervisor_name, COALESCE(st.full_name, '') AS student_name`

const defenseDetailJoins = `FROM defense_schedules d LEFT JOIN theses t ON t.id = d.thesis_id LEFT JOIN users p ON p.id = d.principal_id LEFT JOIN users e ON e.id = d.examinator_id LEFT JOIN users s ON s.id = d.supervisor_id LEFT JOIN users st ON st.id = d.student_id`

// DefenseScheduleRepository provides persistence for defense sessions.
type DefenseScheduleRepository struct {
	db *sqlx.DB
}

// NewDefenseScheduleRepository creates a new defense schedule repository.
func NewDefenseScheduleRepository(db *sqlx.DB) *DefenseScheduleRepository {
	return &DefenseScheduleRepository{db: db}
}

// FindByID loads a defense by id.
func (r *DefenseScheduleRepository) FindByID(ctx context.Context, id string) (*models.DefenseSchedule, error) {
	query := `SELECT ` + defenseColumns + ` FROM defense_schedules d WHERE d.id = $1`
	var sched models.DefenseSchedule
	if err := r.db.GetContext(ctx, &sched, query, id); err != nil {
		return nil, err
	}
	return &sched, nil
}

// FindByStartTime returns every defense starting exactly at start, in any room.
func (r *DefenseScheduleRepository) FindByStartTime(ctx context.Context, start time.Time) ([]models.DefenseSchedule, error) {
	query := `SELECT ` + defenseColumns + ` FROM defense_schedules d WHERE d.start_time = $1 ORDER BY d.room ASC`
	var schedules []models.DefenseSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, start.UTC()); err != nil {
		return nil, fmt.Errorf("find defenses at time: %w", err)
	}
	return schedules, nil
}

// FindByRoomAndTime returns the defense occupying room at start, or nil. Room
// names compare case-insensitively.
func (r *DefenseScheduleRepository) FindByRoomAndTime(ctx context.Context, room string, start time.Time) (*models.DefenseSchedule, error) {
	query := `SELECT ` + defenseColumns + ` FROM defense_schedules d WHERE lower(d.room) = lower($1) AND d.start_time = $2 LIMIT 1`
	var sched models.DefenseSchedule
	if err := r.db.GetContext(ctx, &sched, query, room, start.UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find defense by room and time: %w", err)
	}
	return &sched, nil
}

// ListIncomplete returns defenses missing at least one jury role.
func (r *DefenseScheduleRepository) ListIncomplete(ctx context.Context) ([]models.DefenseSchedule, error) {
	query := `SELECT ` + defenseColumns + ` FROM defense_schedules d WHERE d.principal_id IS NULL OR d.examinator_id IS NULL OR d.supervisor_id IS NULL ORDER BY d.start_time ASC, d.id ASC`
	var schedules []models.DefenseSchedule
	if err := r.db.SelectContext(ctx, &schedules, query); err != nil {
		return nil, fmt.Errorf("list incomplete defenses: %w", err)
	}
	return schedules, nil
}

// List returns defenses joined with display names, filtered and paginated.
func (r *DefenseScheduleRepository) List(ctx context.Context, filter models.DefenseScheduleFilter) ([]models.DefenseScheduleDetail, int, error) {
	where, args := buildDefenseFilter(filter)

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s %s ORDER BY d.start_time %s, d.room ASC LIMIT %d OFFSET %d", defenseDetailColumns, defenseDetailJoins, where, order, size, offset)
	var items []models.DefenseScheduleDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list defenses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM defense_schedules d %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count defenses: %w", err)
	}

	return items, total, nil
}

// ListAll returns every defense matching filter without pagination, for exports.
func (r *DefenseScheduleRepository) ListAll(ctx context.Context, filter models.DefenseScheduleFilter) ([]models.DefenseScheduleDetail, error) {
	where, args := buildDefenseFilter(filter)
	query := fmt.Sprintf("SELECT %s %s %s ORDER BY d.start_time ASC, d.room ASC", defenseDetailColumns, defenseDetailJoins, where)
	var items []models.DefenseScheduleDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list all defenses: %w", err)
	}
	return items, nil
}

func buildDefenseFilter(filter models.DefenseScheduleFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.Room != "" {
		args = append(args, filter.Room)
		conditions = append(conditions, fmt.Sprintf("d.room = $%d", len(args)))
	}
	if filter.ProfessorID != "" {
		args = append(args, filter.ProfessorID)
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(d.principal_id = $%d OR d.examinator_id = $%d OR d.supervisor_id = $%d)", n, n, n))
	}
	if filter.From != nil {
		args = append(args, filter.From.UTC())
		conditions = append(conditions, fmt.Sprintf("d.start_time >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, filter.To.UTC())
		conditions = append(conditions, fmt.Sprintf("d.start_time < $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("d.status = $%d", len(args)))
	}

	where := "WHERE 1=1"
	if len(conditions) > 0 {
		where += " AND " + strings.Join(conditions, " AND ")
	}
	return where, args
}

// Create stores a new defense. Unique violations are reported as ErrDuplicate.
func (r *DefenseScheduleRepository) Create(ctx context.Context, sched *models.DefenseSchedule) error {
	if sched.ID == "" {
		sched.ID = uuid.NewString()
	}
	if sched.Status == "" {
		sched.Status = models.DefenseStatusTentative
	}
	now := time.Now().UTC()
	if sched.CreatedAt.IsZero() {
		sched.CreatedAt = now
	}
	sched.UpdatedAt = now

	const query = `INSERT INTO defense_schedules (id, thesis_id, principal_id, examinator_id, supervisor_id, student_id, start_time, end_time, room, status, created_at, updated_at) VALUES (:id, :thesis_id, CAST(NULLIF(:principal_id, '') AS uuid), CAST(NULLIF(:examinator_id, '') AS uuid), CAST(NULLIF(:supervisor_id, '') AS uuid), :student_id, :start_time, :end_time, :room, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sched); err != nil {
		return fmt.Errorf("create defense: %w", translateError(err))
	}
	return nil
}

// Update overwrites the mutable columns of a defense.
func (r *DefenseScheduleRepository) Update(ctx context.Context, sched *models.DefenseSchedule) error {
	sched.UpdatedAt = time.Now().UTC()
	const query = `UPDATE defense_schedules SET principal_id = CAST(NULLIF(:principal_id, '') AS uuid), examinator_id = CAST(NULLIF(:examinator_id, '') AS uuid), supervisor_id = CAST(NULLIF(:supervisor_id, '') AS uuid), start_time = :start_time, end_time = :end_time, room = :room, status = :status, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, sched)
	if err != nil {
		return fmt.Errorf("update defense: %w", translateError(err))
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a defense by id.
func (r *DefenseScheduleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM defense_schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete defense: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteAll removes every defense and returns how many were deleted.
func (r *DefenseScheduleRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM defense_schedules`)
	if err != nil {
		return 0, fmt.Errorf("delete all defenses: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete all defenses rows: %w", err)
	}
	return affected, nil
}

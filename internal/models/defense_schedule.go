package models

import "time"

// DefenseStatus is the lifecycle flag of a defense session.
type DefenseStatus string

const (
	DefenseStatusTentative DefenseStatus = "tentative"
	DefenseStatusConfirmed DefenseStatus = "confirmed"
	DefenseStatusCancelled DefenseStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s DefenseStatus) Valid() bool {
	switch s {
	case DefenseStatusTentative, DefenseStatusConfirmed, DefenseStatusCancelled:
		return true
	}
	return false
}

// DefenseSchedule is one thesis defense session. Jury ids are empty when a
// legacy row is missing the role.
type DefenseSchedule struct {
	ID           string        `db:"id" json:"id"`
	ThesisID     string        `db:"thesis_id" json:"thesis_id"`
	PrincipalID  string        `db:"principal_id" json:"principal_id"`
	ExaminatorID string        `db:"examinator_id" json:"examinator_id"`
	SupervisorID string        `db:"supervisor_id" json:"supervisor_id"`
	StudentID    string        `db:"student_id" json:"student_id"`
	StartTime    time.Time     `db:"start_time" json:"start_time"`
	EndTime      time.Time     `db:"end_time" json:"end_time"`
	Room         string        `db:"room" json:"room"`
	Status       DefenseStatus `db:"status" json:"status"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// JuryIDs returns the non-empty jury members.
func (d DefenseSchedule) JuryIDs() []string {
	ids := make([]string, 0, 3)
	for _, id := range []string{d.PrincipalID, d.ExaminatorID, d.SupervisorID} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Incomplete reports whether any jury role is unassigned.
func (d DefenseSchedule) Incomplete() bool {
	return d.PrincipalID == "" || d.ExaminatorID == "" || d.SupervisorID == ""
}

// DefenseScheduleDetail is a defense joined with the display names of its
// thesis and participants.
type DefenseScheduleDetail struct {
	DefenseSchedule
	ThesisTitle    string `db:"thesis_title" json:"thesis_title"`
	PrincipalName  string `db:"principal_name" json:"principal_name"`
	ExaminatorName string `db:"examinator_name" json:"examinator_name"`
	SupervisorName string `db:"supervisor_name" json:"supervisor_name"`
	StudentName    string `db:"student_name" json:"student_name"`
}

// DefenseScheduleFilter describes query params for listing defenses.
type DefenseScheduleFilter struct {
	Room        string
	ProfessorID string
	From        *time.Time
	To          *time.Time
	Status      DefenseStatus
	Page        int
	PageSize    int
	SortOrder   string
}

// ScheduleConflict describes an existing defense that blocks a placement.
type ScheduleConflict struct {
	ScheduleID  string    `json:"schedule_id"`
	Room        string    `json:"room"`
	StartTime   time.Time `json:"start_time"`
	ProfessorID string    `json:"professor_id,omitempty"`
	Dimension   string    `json:"dimension"`
}

// Conflict dimensions.
const (
	ConflictDimensionRoom      = "ROOM"
	ConflictDimensionProfessor = "PROFESSOR"
)

// ScheduleConflictError is returned when a defense collides with existing ones.
type ScheduleConflictError struct {
	Type      string             `json:"type"`
	Message   string             `json:"message"`
	Conflicts []ScheduleConflict `json:"conflicts,omitempty"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

package dto

import (
	"time"

	"github.com/noah-isme/thesis-defense-api/internal/models"
)

// DefenseSchedulePatch is a partial update of a defense. Nil fields keep the
// stored value.
type DefenseSchedulePatch struct {
	PrincipalID  *string               `json:"principal" validate:"omitempty,min=1"`
	ExaminatorID *string               `json:"examinator" validate:"omitempty,min=1"`
	SupervisorID *string               `json:"supervisor" validate:"omitempty,min=1"`
	StartTime    *time.Time            `json:"startTime"`
	EndTime      *time.Time            `json:"endTime"`
	Room         *string               `json:"room" validate:"omitempty,min=1"`
	Status       *models.DefenseStatus `json:"status" validate:"omitempty,oneof=tentative confirmed cancelled"`
}

// Empty reports whether the patch carries no change.
func (p DefenseSchedulePatch) Empty() bool {
	return p.PrincipalID == nil && p.ExaminatorID == nil && p.SupervisorID == nil &&
		p.StartTime == nil && p.EndTime == nil && p.Room == nil && p.Status == nil
}

// CreateDefenseRequest schedules a single eligible thesis by hand.
type CreateDefenseRequest struct {
	ThesisID     string    `json:"thesis" validate:"required"`
	PrincipalID  string    `json:"principal" validate:"required"`
	ExaminatorID string    `json:"examinator" validate:"required"`
	StartTime    time.Time `json:"startTime" validate:"required"`
	Room         string    `json:"room" validate:"required"`
}

// AutoPlanResult summarises one planning run.
type AutoPlanResult struct {
	Scheduled int             `json:"scheduled"`
	Fixed     int             `json:"fixed"`
	Eligible  int             `json:"eligible"`
	Unplaced  int             `json:"unplaced"`
	Batches   []PlannedBatch  `json:"batches"`
	Skipped   []UnplacedGroup `json:"skipped,omitempty"`
	StartedAt time.Time       `json:"startedAt"`
	Duration  string          `json:"duration"`
}

// PlannedBatch describes one series placed with a fixed jury.
type PlannedBatch struct {
	SupervisorID string    `json:"supervisor"`
	PrincipalID  string    `json:"principal"`
	ExaminatorID string    `json:"examinator"`
	Room         string    `json:"room"`
	Shift        string    `json:"shift"`
	FirstSlot    time.Time `json:"firstSlot"`
	ThesisIDs    []string  `json:"theses"`
}

// UnplacedGroup reports theses of a supervisor left unscheduled.
type UnplacedGroup struct {
	SupervisorID string   `json:"supervisor"`
	ThesisIDs    []string `json:"theses"`
	Reason       string   `json:"reason"`
}

// DefenseListQuery carries list filters from the query string.
type DefenseListQuery struct {
	Room        string `form:"room"`
	ProfessorID string `form:"professor"`
	From        string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To          string `form:"to" validate:"omitempty,datetime=2006-01-02"`
	Status      string `form:"status" validate:"omitempty,oneof=tentative confirmed cancelled"`
	Page        int    `form:"page" validate:"omitempty,min=1"`
	Limit       int    `form:"limit" validate:"omitempty,min=1,max=100"`
	Order       string `form:"order" validate:"omitempty,oneof=asc desc ASC DESC"`
}

// ExportFormat selects the rendered export type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportFile is a rendered export ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

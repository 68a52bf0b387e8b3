package models

import "time"

// ThesisStatus enumerates the thesis workflow states.
type ThesisStatus string

const (
	ThesisStatusSubmitted   ThesisStatus = "submitted"
	ThesisStatusUnderReview ThesisStatus = "under_review"
	ThesisStatusApproved    ThesisStatus = "approved"
	ThesisStatusScheduled   ThesisStatus = "scheduled"
	ThesisStatusCompleted   ThesisStatus = "completed"
)

// Thesis is the subset of a thesis the planner reads. Only Status is ever
// written back.
type Thesis struct {
	ID             string       `db:"id" json:"id"`
	Title          string       `db:"title" json:"title"`
	SupervisorID   string       `db:"supervisor_id" json:"supervisor_id"`
	SupervisorName string       `db:"supervisor_name" json:"supervisor_name,omitempty"`
	StudentID      string       `db:"student_id" json:"student_id"`
	StudentName    string       `db:"student_name" json:"student_name,omitempty"`
	Status         ThesisStatus `db:"status" json:"status"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}

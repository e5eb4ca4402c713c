package models

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID               uuid.UUID `db:"id" json:"id"`
	Title            string    `db:"title" json:"title"`
	ClientName       string    `db:"client_name" json:"clientName"`
	BillableHours    float64   `db:"billable_hours" json:"billableHours"`
	NonBillableHours float64   `db:"non_billable_hours" json:"nonBillableHours"`
	StartDate        time.Time `db:"start_date" json:"startDate"`
	EndDate          time.Time `db:"end_date" json:"endDate"`
	CreatedBy        uuid.UUID `db:"created_by" json:"createdBy"`
	CreatedOn        time.Time `db:"created_on" json:"createdOn"`

	// Populated by services, not by the project queries themselves
	Tasks   []Task   `db:"-" json:"tasks,omitempty"`
	Members []Member `db:"-" json:"members,omitempty"`
}

// ActiveOn reports whether the given calendar day falls inside the project range.
func (p *Project) ActiveOn(day time.Time) bool {
	d := DateOf(day)
	return !d.Before(DateOf(p.StartDate)) && !d.After(DateOf(p.EndDate))
}

// Member is a user's billable or non-billable assignment to a project.
type Member struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ProjectID  uuid.UUID `db:"project_id" json:"projectId"`
	UserID     uuid.UUID `db:"user_id" json:"userId"`
	IsBillable bool      `db:"is_billable" json:"isBillable"`
	IsRemoved  bool      `db:"is_removed" json:"isRemoved"`
}

// Timesheet is one (user, task, date) effort record.
type Timesheet struct {
	ID     uuid.UUID `db:"id" json:"id"`
	TaskID uuid.UUID `db:"task_id" json:"taskId"`
	// TaskTitle is a snapshot taken when hours are saved. It is not
	// updated when the task is renamed later.
	TaskTitle       string          `db:"task_title" json:"taskTitle"`
	UserID          uuid.UUID       `db:"user_id" json:"userId"`
	TimesheetDate   time.Time       `db:"timesheet_date" json:"timesheetDate"`
	Hours           float64         `db:"hours" json:"hours"`
	Status          TimesheetStatus `db:"status" json:"status"`
	ManagerComments string          `db:"manager_comments" json:"managerComments"`
	SubmittedOn     *time.Time      `db:"submitted_on" json:"submittedOn,omitempty"`
	LastModifiedOn  time.Time       `db:"last_modified_on" json:"lastModifiedOn"`

	// Joined fields (populated by list queries)
	ProjectID    uuid.UUID `db:"project_id" json:"projectId"`
	ProjectTitle string    `db:"project_title" json:"projectTitle,omitempty"`
}

// DateOf strips the time of day, keeping the calendar date of t in its own
// location and expressing it as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

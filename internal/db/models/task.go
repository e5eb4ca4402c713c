package models

import (
	"time"

	"github.com/google/uuid"
)

type Task struct {
	ID              uuid.UUID `db:"id" json:"id"`
	ProjectID       uuid.UUID `db:"project_id" json:"projectId"`
	Title           string    `db:"title" json:"title"`
	IsRemoved       bool      `db:"is_removed" json:"isRemoved"`
	IsAddedByMember bool      `db:"is_added_by_member" json:"isAddedByMember"`
	// MemberMappingID points at the member that added the task, if any.
	MemberMappingID *uuid.UUID `db:"member_mapping_id" json:"memberMappingId,omitempty"`
	StartDate       time.Time  `db:"start_date" json:"startDate"`
	EndDate         time.Time  `db:"end_date" json:"endDate"`
}

// CoversDate reports whether day lies inside the task's own date range.
func (t *Task) CoversDate(day time.Time) bool {
	d := DateOf(day)
	return !d.Before(DateOf(t.StartDate)) && !d.After(DateOf(t.EndDate))
}

// VisibleTo reports whether the task shows up in the calendar of the given
// membership. Tasks added by a member are private to that member.
func (t *Task) VisibleTo(memberID uuid.UUID) bool {
	if !t.IsAddedByMember || t.MemberMappingID == nil {
		return true
	}
	return *t.MemberMappingID == memberID
}

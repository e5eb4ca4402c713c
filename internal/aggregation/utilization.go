package aggregation

import (
	"errors"
	"fmt"

	"timesheet/internal/db/models"

	"github.com/google/uuid"
)

// ErrUnknownMember is returned when an approved entry was filled by a user
// that is not among the project's members. Utilization is not computed
// partially in that case.
var ErrUnknownMember = errors.New("timesheet author is not a project member")

type ProjectUtilization struct {
	ID                            uuid.UUID `json:"id"`
	Title                         string    `json:"title"`
	BillableUtilizedHours         float64   `json:"billableUtilizedHours"`
	NonBillableUtilizedHours      float64   `json:"nonBillableUtilizedHours"`
	BillableUnderutilizedHours    float64   `json:"billableUnderutilizedHours"`
	NonBillableUnderutilizedHours float64   `json:"nonBillableUnderutilizedHours"`
	TotalHours                    float64   `json:"totalHours"`
}

// ComputeUtilization sums approved hours per bucket of the author's billable
// flag. Underutilized hours are capacity minus utilized and may be negative.
func ComputeUtilization(project models.Project, approved []models.Timesheet, members []models.Member) (*ProjectUtilization, error) {
	byUser := make(map[uuid.UUID]models.Member, len(members))
	for _, m := range members {
		byUser[m.UserID] = m
	}

	var billable, nonBillable float64
	for _, entry := range approved {
		member, ok := byUser[entry.UserID]
		if !ok {
			return nil, fmt.Errorf("%w: user %s", ErrUnknownMember, entry.UserID)
		}
		if member.IsBillable {
			billable += entry.Hours
		} else {
			nonBillable += entry.Hours
		}
	}

	return &ProjectUtilization{
		ID:                            project.ID,
		Title:                         project.Title,
		BillableUtilizedHours:         billable,
		NonBillableUtilizedHours:      nonBillable,
		BillableUnderutilizedHours:    project.BillableHours - billable,
		NonBillableUnderutilizedHours: project.NonBillableHours - nonBillable,
		TotalHours:                    project.BillableHours + project.NonBillableHours,
	}, nil
}

// HoursByUser sums hours per author.
func HoursByUser(entries []models.Timesheet) map[uuid.UUID]float64 {
	totals := make(map[uuid.UUID]float64)
	for _, e := range entries {
		totals[e.UserID] += e.Hours
	}
	return totals
}

// HoursByTask sums hours per task.
func HoursByTask(entries []models.Timesheet) map[uuid.UUID]float64 {
	totals := make(map[uuid.UUID]float64)
	for _, e := range entries {
		totals[e.TaskID] += e.Hours
	}
	return totals
}

func TotalHours(entries []models.Timesheet) float64 {
	var total float64
	for _, e := range entries {
		total += e.Hours
	}
	return total
}

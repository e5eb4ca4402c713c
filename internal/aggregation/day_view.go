package aggregation

import (
	"time"

	"timesheet/internal/db/models"

	"github.com/google/uuid"
)

// UserTimesheet is the calendar view of a single day.
type UserTimesheet struct {
	TimesheetDate  time.Time        `json:"timesheetDate"`
	ProjectDetails []ProjectDetails `json:"projectDetails"`
}

type ProjectDetails struct {
	ID               uuid.UUID          `json:"id"`
	Title            string             `json:"title"`
	StartDate        time.Time          `json:"startDate"`
	EndDate          time.Time          `json:"endDate"`
	TimesheetDetails []TimesheetDetails `json:"timesheetDetails"`
}

type TimesheetDetails struct {
	TaskID          uuid.UUID              `json:"taskId"`
	TaskTitle       string                 `json:"taskTitle"`
	IsAddedByMember bool                   `json:"isAddedByMember"`
	StartDate       time.Time              `json:"startDate"`
	EndDate         time.Time              `json:"endDate"`
	Hours           float64                `json:"hours"`
	ManagerComments string                 `json:"managerComments"`
	Status          models.TimesheetStatus `json:"status"`
}

type taskDay struct {
	taskID uuid.UUID
	day    time.Time
}

// TimesheetsForDates builds one day entry for every day in [start, end] that
// has at least one active project. Each active project lists all of its
// tasks, filled from the matching entry of that day or zeroed.
//
// When several filled entries share a (task, day) pair the first one in
// filled wins.
func TimesheetsForDates(start, end time.Time, projects []models.Project, filled []models.Timesheet) []UserTimesheet {
	lookup := make(map[taskDay]*models.Timesheet, len(filled))
	for i := range filled {
		key := taskDay{taskID: filled[i].TaskID, day: models.DateOf(filled[i].TimesheetDate)}
		if _, ok := lookup[key]; !ok {
			lookup[key] = &filled[i]
		}
	}

	days := []UserTimesheet{}
	EachDay(start, end, func(day time.Time) {
		var details []ProjectDetails
		for i := range projects {
			project := &projects[i]
			if !project.ActiveOn(day) {
				continue
			}
			details = append(details, projectDetailsFor(project, day, lookup))
		}
		if len(details) == 0 {
			return
		}
		days = append(days, UserTimesheet{TimesheetDate: day, ProjectDetails: details})
	})
	return days
}

func projectDetailsFor(project *models.Project, day time.Time, lookup map[taskDay]*models.Timesheet) ProjectDetails {
	tasks := make([]TimesheetDetails, 0, len(project.Tasks))
	for _, task := range project.Tasks {
		detail := TimesheetDetails{
			TaskID:          task.ID,
			TaskTitle:       task.Title,
			IsAddedByMember: task.IsAddedByMember,
			StartDate:       task.StartDate,
			EndDate:         task.EndDate,
			Status:          models.StatusNone,
		}
		if entry, ok := lookup[taskDay{taskID: task.ID, day: day}]; ok {
			detail.Hours = entry.Hours
			detail.ManagerComments = entry.ManagerComments
			detail.Status = entry.Status
		}
		tasks = append(tasks, detail)
	}

	return ProjectDetails{
		ID:               project.ID,
		Title:            project.Title,
		StartDate:        project.StartDate,
		EndDate:          project.EndDate,
		TimesheetDetails: tasks,
	}
}

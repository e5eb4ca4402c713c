package aggregation

import (
	"testing"
	"time"

	"timesheet/internal/db/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimesheetsForDatesOmitsDaysWithoutProjects(t *testing.T) {
	task := models.Task{ID: uuid.New(), Title: "Design", StartDate: march(2), EndDate: march(2)}
	project := models.Project{
		ID:        uuid.New(),
		Title:     "Website",
		StartDate: march(2),
		EndDate:   march(2),
		Tasks:     []models.Task{task},
	}

	days := TimesheetsForDates(march(1), march(3), []models.Project{project}, nil)

	require.Len(t, days, 1)
	assert.Equal(t, march(2), days[0].TimesheetDate)
	require.Len(t, days[0].ProjectDetails, 1)
	assert.Equal(t, project.ID, days[0].ProjectDetails[0].ID)
}

func TestTimesheetsForDatesFillsMatchingEntries(t *testing.T) {
	design := models.Task{ID: uuid.New(), Title: "Design"}
	build := models.Task{ID: uuid.New(), Title: "Build", IsAddedByMember: true}
	website := models.Project{
		ID:        uuid.New(),
		Title:     "Website",
		StartDate: march(1),
		EndDate:   march(31),
		Tasks:     []models.Task{design, build},
	}
	audit := models.Project{
		ID:        uuid.New(),
		Title:     "Audit",
		StartDate: march(5),
		EndDate:   march(6),
		Tasks:     []models.Task{{ID: uuid.New(), Title: "Review"}},
	}

	filled := []models.Timesheet{
		{TaskID: design.ID, TimesheetDate: march(5).Add(9 * time.Hour), Hours: 6, Status: models.StatusRejected, ManagerComments: "too many"},
		{TaskID: build.ID, TimesheetDate: march(4), Hours: 2, Status: models.StatusSaved},
	}

	days := TimesheetsForDates(march(4), march(5), []models.Project{website, audit}, filled)
	require.Len(t, days, 2)

	day4 := days[0]
	assert.Equal(t, march(4), day4.TimesheetDate)
	require.Len(t, day4.ProjectDetails, 1)
	tasks := day4.ProjectDetails[0].TimesheetDetails
	require.Len(t, tasks, 2)
	assert.Equal(t, "Design", tasks[0].TaskTitle)
	assert.Zero(t, tasks[0].Hours)
	assert.Equal(t, models.StatusNone, tasks[0].Status)
	assert.Empty(t, tasks[0].ManagerComments)
	assert.Equal(t, 2.0, tasks[1].Hours)
	assert.True(t, tasks[1].IsAddedByMember)
	assert.Equal(t, models.StatusSaved, tasks[1].Status)

	day5 := days[1]
	require.Len(t, day5.ProjectDetails, 2)
	assert.Equal(t, "Website", day5.ProjectDetails[0].Title)
	assert.Equal(t, "Audit", day5.ProjectDetails[1].Title)
	first := day5.ProjectDetails[0].TimesheetDetails[0]
	assert.Equal(t, 6.0, first.Hours)
	assert.Equal(t, models.StatusRejected, first.Status)
	assert.Equal(t, "too many", first.ManagerComments)
	assert.Zero(t, day5.ProjectDetails[1].TimesheetDetails[0].Hours)
}

func TestTimesheetsForDatesFirstMatchWins(t *testing.T) {
	task := models.Task{ID: uuid.New(), Title: "Design"}
	project := models.Project{ID: uuid.New(), StartDate: march(1), EndDate: march(1), Tasks: []models.Task{task}}
	filled := []models.Timesheet{
		{TaskID: task.ID, TimesheetDate: march(1), Hours: 3},
		{TaskID: task.ID, TimesheetDate: march(1), Hours: 5},
	}

	days := TimesheetsForDates(march(1), march(1), []models.Project{project}, filled)

	require.Len(t, days, 1)
	assert.Equal(t, 3.0, days[0].ProjectDetails[0].TimesheetDetails[0].Hours)
}

func TestTimesheetsForDatesEmptyWindow(t *testing.T) {
	days := TimesheetsForDates(march(3), march(1), nil, nil)

	assert.NotNil(t, days)
	assert.Empty(t, days)
}

package service

import (
	"testing"
	"time"

	"timesheet/internal/cards"
	"timesheet/internal/db/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditableFrom(t *testing.T) {
	tests := []struct {
		name      string
		today     time.Time
		freezeDay int
		want      time.Time
	}{
		{"disabled", day(14), 0, time.Time{}},
		{"before freeze day", day(3), 5, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)},
		{"on freeze day", day(5), 5, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)},
		{"after freeze day", day(6), 5, day(1)},
		{"january", time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC), 5, time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, editableFrom(tt.today, tt.freezeDay))
		})
	}
}

func TestWeekStart(t *testing.T) {
	assert.Equal(t, day(11), weekStart(day(11)))
	assert.Equal(t, day(11), weekStart(day(14)))
	assert.Equal(t, day(11), weekStart(day(17)))
	assert.Equal(t, day(18), weekStart(day(18)))
}

func TestSaveTimesheets(t *testing.T) {
	f := newFixture(t)

	saved, err := f.svc.Timesheets.Save(f.ctx, f.alice.ID, []TimesheetRequest{
		{TaskID: f.design.ID, TimesheetDate: date(12), Hours: 6},
		{TaskID: f.build.ID, TimesheetDate: date(12), Hours: 2},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "Design", saved[0].TaskTitle)
	assert.Equal(t, models.StatusSaved, saved[0].Status)
	assert.Equal(t, now, saved[0].LastModifiedOn)

	// replacing hours keeps one row per task and day
	_, err = f.svc.Timesheets.Save(f.ctx, f.alice.ID, []TimesheetRequest{
		{TaskID: f.design.ID, TimesheetDate: date(12), Hours: 8},
		{TaskID: f.build.ID, TimesheetDate: date(12), Hours: 0},
	})
	require.NoError(t, err)

	rows, err := f.store.Timesheets().ListByUser(f.ctx, f.alice.ID, day(12), day(12))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 8.0, rows[0].Hours+rows[1].Hours)
}

func TestSaveTimesheetsKeepsTitleSnapshot(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Timesheets.Save(f.ctx, f.alice.ID, []TimesheetRequest{{TaskID: f.design.ID, TimesheetDate: date(12), Hours: 1}})
	require.NoError(t, err)

	task := f.design
	task.Title = "Architecture"
	require.NoError(t, f.store.Tasks().Update(f.ctx, &task))

	rows, err := f.store.Timesheets().ListByUser(f.ctx, f.alice.ID, day(12), day(12))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Design", rows[0].TaskTitle)
}

func TestSaveTimesheetsRejections(t *testing.T) {
	f := newFixture(t)
	research, err := f.svc.Tasks.AddMemberTask(f.ctx, f.bob.ID, f.project.ID, TaskRequest{Title: "Research"})
	require.NoError(t, err)
	f.fill(t, f.alice.ID, f.design, 11, 8, models.StatusSaved)
	f.fill(t, f.alice.ID, f.design, 12, 8, models.StatusSaved)
	f.fill(t, f.alice.ID, f.build, 13, 3, models.StatusSubmitted)

	tests := []struct {
		name string
		user uuid.UUID
		reqs []TimesheetRequest
		want error
	}{
		{"empty", f.alice.ID, nil, ErrInvalidArgument},
		{"future date", f.alice.ID, []TimesheetRequest{{TaskID: f.design.ID, TimesheetDate: date(15), Hours: 1}}, ErrInvalidArgument},
		{"negative hours", f.alice.ID, []TimesheetRequest{{TaskID: f.design.ID, TimesheetDate: date(4), Hours: -1}}, ErrInvalidArgument},
		{"over daily limit in one entry", f.alice.ID, []TimesheetRequest{{TaskID: f.design.ID, TimesheetDate: date(4), Hours: 9}}, ErrInvalidArgument},
		{"over daily limit with stored hours", f.alice.ID, []TimesheetRequest{{TaskID: f.build.ID, TimesheetDate: date(11), Hours: 1}}, ErrInvalidArgument},
		{"over weekly limit", f.alice.ID, []TimesheetRequest{{TaskID: f.design.ID, TimesheetDate: date(14), Hours: 2}}, ErrInvalidArgument},
		{"duplicate entry", f.alice.ID, []TimesheetRequest{
			{TaskID: f.design.ID, TimesheetDate: date(4), Hours: 1},
			{TaskID: f.design.ID, TimesheetDate: date(4), Hours: 2},
		}, ErrInvalidArgument},
		{"unknown task", f.alice.ID, []TimesheetRequest{{TaskID: uuid.New(), TimesheetDate: date(4), Hours: 1}}, ErrNotFound},
		{"not a member", uuid.New(), []TimesheetRequest{{TaskID: f.design.ID, TimesheetDate: date(4), Hours: 1}}, ErrForbidden},
		{"task of another member", f.alice.ID, []TimesheetRequest{{TaskID: research.ID, TimesheetDate: date(4), Hours: 1}}, ErrForbidden},
		{"submitted entry", f.alice.ID, []TimesheetRequest{{TaskID: f.build.ID, TimesheetDate: date(13), Hours: 1}}, ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Timesheets.Save(f.ctx, tt.user, tt.reqs)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// the week of the 11th holds 8 + 8 + 3 hours, one more fits
	_, err = f.svc.Timesheets.Save(f.ctx, f.alice.ID, []TimesheetRequest{{TaskID: f.design.ID, TimesheetDate: date(14), Hours: 1}})
	assert.NoError(t, err)
}

func TestSaveTimesheetsRemovedTaskAndInactiveProject(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.Tasks.Remove(f.ctx, f.project.ID, []uuid.UUID{f.build.ID}))

	_, err := f.svc.Timesheets.Save(f.ctx, f.alice.ID, []TimesheetRequest{{TaskID: f.build.ID, TimesheetDate: date(4), Hours: 1}})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.svc.Timesheets.Save(f.ctx, f.alice.ID, []TimesheetRequest{
		{TaskID: f.design.ID, TimesheetDate: NewDate(time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)), Hours: 1},
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSaveTimesheetsFreeze(t *testing.T) {
	f := newFixture(t)
	feb := NewDate(time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC))

	deps := f.deps
	deps.Timesheet.FreezeDayOfMonth = 5
	_, err := New(deps).Timesheets.Save(f.ctx, f.alice.ID, []TimesheetRequest{{TaskID: f.design.ID, TimesheetDate: feb, Hours: 1}})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorContains(t, err, "frozen")

	// February is still open, the project itself is not
	deps.Timesheet.FreezeDayOfMonth = 20
	_, err = New(deps).Timesheets.Save(f.ctx, f.alice.ID, []TimesheetRequest{{TaskID: f.design.ID, TimesheetDate: feb, Hours: 1}})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.NotContains(t, err.Error(), "frozen")
}

func TestSaveTimesheetsResubmitsRejected(t *testing.T) {
	f := newFixture(t)
	rejected := f.fill(t, f.alice.ID, f.design, 11, 4, models.StatusRejected)
	rejected.ManagerComments = "split by task please"
	require.NoError(t, f.store.Timesheets().Update(f.ctx, &rejected))

	saved, err := f.svc.Timesheets.Save(f.ctx, f.alice.ID, []TimesheetRequest{{TaskID: f.design.ID, TimesheetDate: date(11), Hours: 3}})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, rejected.ID, saved[0].ID)
	assert.Equal(t, models.StatusSaved, saved[0].Status)
	assert.Equal(t, "split by task please", saved[0].ManagerComments)
}

func TestSubmitTimesheets(t *testing.T) {
	f := newFixture(t)
	f.fill(t, f.alice.ID, f.design, 11, 4, models.StatusSaved)
	f.fill(t, f.alice.ID, f.build, 11, 0, models.StatusSaved)
	f.fill(t, f.alice.ID, f.design, 12, 3, models.StatusSaved)

	submitted, err := f.svc.Timesheets.Submit(f.ctx, f.alice.ID, []Date{date(11)})
	require.NoError(t, err)
	require.Len(t, submitted, 1)
	assert.Equal(t, models.StatusSubmitted, submitted[0].Status)
	require.NotNil(t, submitted[0].SubmittedOn)
	assert.Equal(t, now, *submitted[0].SubmittedOn)

	saved, err := f.store.Timesheets().ListByUser(f.ctx, f.alice.ID, day(11), day(12), models.StatusSaved)
	require.NoError(t, err)
	assert.Len(t, saved, 2)

	_, err = f.svc.Timesheets.Submit(f.ctx, f.alice.ID, []Date{date(11)})
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.svc.Timesheets.Submit(f.ctx, f.alice.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestUserTimesheets(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Tasks.AddMemberTask(f.ctx, f.bob.ID, f.project.ID, TaskRequest{Title: "Research"})
	require.NoError(t, err)
	f.fill(t, f.alice.ID, f.build, 11, 4, models.StatusApproved)
	require.NoError(t, f.svc.Tasks.Remove(f.ctx, f.project.ID, []uuid.UUID{f.build.ID}))

	days, err := f.svc.Timesheets.UserTimesheets(f.ctx, f.alice.ID, day(11), day(12))
	require.NoError(t, err)
	require.Len(t, days, 2)
	require.Len(t, days[0].ProjectDetails, 1)

	// Build was removed but keeps its hours, Research belongs to Bob
	details := days[0].ProjectDetails[0].TimesheetDetails
	require.Len(t, details, 2)
	assert.Equal(t, "Build", details[0].TaskTitle)
	assert.Equal(t, 4.0, details[0].Hours)
	assert.Equal(t, models.StatusApproved, details[0].Status)
	assert.Equal(t, "Design", details[1].TaskTitle)
	assert.Equal(t, models.StatusNone, details[1].Status)

	days, err = f.svc.Timesheets.UserTimesheets(f.ctx, f.bob.ID, day(11), day(11))
	require.NoError(t, err)
	require.Len(t, days, 1)
	titles := []string{}
	for _, d := range days[0].ProjectDetails[0].TimesheetDetails {
		titles = append(titles, d.TaskTitle)
	}
	assert.Equal(t, []string{"Design", "Research"}, titles)

	days, err = f.svc.Timesheets.UserTimesheets(f.ctx, uuid.New(), day(11), day(12))
	require.NoError(t, err)
	assert.Empty(t, days)

	_, err = f.svc.Timesheets.UserTimesheets(f.ctx, f.alice.ID, day(12), day(11))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSubmittedRequests(t *testing.T) {
	f := newFixture(t)
	a := f.fill(t, f.alice.ID, f.design, 11, 4, models.StatusSubmitted)
	b := f.fill(t, f.alice.ID, f.build, 12, 3, models.StatusSubmitted)
	c := f.fill(t, f.alice.ID, f.design, 14, 5, models.StatusSubmitted)
	f.fill(t, f.alice.ID, f.design, 13, 2, models.StatusSaved)

	requests, err := f.svc.Timesheets.SubmittedRequests(f.ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, requests, 2)

	assert.Equal(t, []time.Time{day(11), day(12)}, requests[0].Dates)
	assert.Equal(t, 7.0, requests[0].TotalHours)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, requests[0].TimesheetIDs)

	assert.Equal(t, day(14), requests[1].StartDate)
	assert.Equal(t, day(14), requests[1].EndDate)
	assert.Equal(t, []uuid.UUID{c.ID}, requests[1].TimesheetIDs)
}

func TestPendingRequests(t *testing.T) {
	f := newFixture(t)
	f.fill(t, f.alice.ID, f.design, 11, 4, models.StatusSubmitted)
	f.fill(t, f.alice.ID, f.design, 12, 2, models.StatusSubmitted)
	f.fill(t, f.bob.ID, f.design, 12, 2, models.StatusSaved)

	pending, err := f.svc.Timesheets.PendingRequests(f.ctx, f.manager.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Alice", pending[0].DisplayName)
	assert.Equal(t, 6.0, pending[0].TotalHours)
	assert.Equal(t, [][]time.Time{{day(11), day(12)}}, pending[0].RequestedDays)

	pending, err = f.svc.Timesheets.PendingRequests(f.ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestApproveTimesheetsNotifiesReportee(t *testing.T) {
	f := newFixture(t)
	f.register(t, f.alice.ID)
	a := f.fill(t, f.alice.ID, f.design, 11, 4, models.StatusSubmitted)
	b := f.fill(t, f.alice.ID, f.design, 12, 3.5, models.StatusSubmitted)

	reviewed, err := f.svc.Timesheets.Approve(f.ctx, f.alice.ID, ReviewRequest{TimesheetIDs: []uuid.UUID{a.ID, b.ID, a.ID}, ManagerComments: "thanks"})
	require.NoError(t, err)
	require.Len(t, reviewed, 2)

	rows, err := f.store.Timesheets().GetByIDs(f.ctx, []uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)
	for _, r := range rows {
		assert.Equal(t, models.StatusApproved, r.Status)
		assert.Equal(t, "thanks", r.ManagerComments)
	}

	require.Len(t, f.notifier.sent, 1)
	card := f.notifier.sent[0].card
	assert.Equal(t, cards.KindApproved, card.Kind)
	assert.Equal(t, "2024-03-11 - 2024-03-12", card.Facts[0].Value)
	assert.Equal(t, "7.5", card.Facts[1].Value)
	assert.Equal(t, "conv-"+f.alice.ID.String(), f.notifier.sent[0].conversation.ConversationID)

	// approved rows cannot be reviewed again
	_, err = f.svc.Timesheets.Reject(f.ctx, f.alice.ID, ReviewRequest{TimesheetIDs: []uuid.UUID{a.ID}})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRejectTimesheets(t *testing.T) {
	f := newFixture(t)
	f.register(t, f.alice.ID)
	a := f.fill(t, f.alice.ID, f.design, 11, 4, models.StatusSubmitted)

	_, err := f.svc.Timesheets.Reject(f.ctx, f.alice.ID, ReviewRequest{TimesheetIDs: []uuid.UUID{a.ID}, ManagerComments: "too much"})
	require.NoError(t, err)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, cards.KindRejected, f.notifier.sent[0].card.Kind)

	// rejected hours can be saved again
	_, err = f.svc.Timesheets.Save(f.ctx, f.alice.ID, []TimesheetRequest{{TaskID: f.design.ID, TimesheetDate: date(11), Hours: 2}})
	assert.NoError(t, err)
}

func TestReviewChecksOwnershipAndExistence(t *testing.T) {
	f := newFixture(t)
	a := f.fill(t, f.alice.ID, f.design, 11, 4, models.StatusSubmitted)
	b := f.fill(t, f.bob.ID, f.design, 11, 4, models.StatusSubmitted)

	_, err := f.svc.Timesheets.Approve(f.ctx, f.alice.ID, ReviewRequest{TimesheetIDs: []uuid.UUID{a.ID, b.ID}})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Timesheets.Approve(f.ctx, f.alice.ID, ReviewRequest{TimesheetIDs: []uuid.UUID{a.ID, uuid.New()}})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Timesheets.Approve(f.ctx, f.alice.ID, ReviewRequest{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	rows, err := f.store.Timesheets().GetByIDs(f.ctx, []uuid.UUID{a.ID})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, rows[0].Status)
}

func TestApproveSucceedsWhenNotificationFails(t *testing.T) {
	f := newFixture(t)
	f.register(t, f.alice.ID)
	f.notifier.err = errBoom
	a := f.fill(t, f.alice.ID, f.design, 11, 4, models.StatusSubmitted)

	_, err := f.svc.Timesheets.Approve(f.ctx, f.alice.ID, ReviewRequest{TimesheetIDs: []uuid.UUID{a.ID}})
	require.NoError(t, err)

	// no conversation at all is fine too
	b := f.fill(t, f.bob.ID, f.design, 11, 4, models.StatusSubmitted)
	_, err = f.svc.Timesheets.Approve(f.ctx, f.bob.ID, ReviewRequest{TimesheetIDs: []uuid.UUID{b.ID}})
	require.NoError(t, err)
}

func TestReporteeTimesheets(t *testing.T) {
	f := newFixture(t)
	f.fill(t, f.alice.ID, f.design, 11, 4, models.StatusSubmitted)
	f.fill(t, f.alice.ID, f.design, 12, 4, models.StatusSaved)

	rows, err := f.svc.Timesheets.ReporteeTimesheets(f.ctx, f.alice.ID, day(1), day(31), models.StatusSubmitted)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Apollo", rows[0].ProjectTitle)

	rows, err = f.svc.Timesheets.ReporteeTimesheets(f.ctx, f.alice.ID, day(1), day(31))
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = f.svc.Timesheets.ReporteeTimesheets(f.ctx, f.alice.ID, day(1), day(31), models.TimesheetStatus(9))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

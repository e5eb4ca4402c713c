package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"timesheet/internal/aggregation"
	"timesheet/internal/cards"
	"timesheet/internal/db"
	"timesheet/internal/db/models"
	"timesheet/internal/logging"

	"github.com/google/uuid"
)

const (
	maxWindowDays = 366
	// tolerance for float sums of hours against the limits
	epsilon = 1e-9
)

type TimesheetService struct {
	deps          Deps
	notifications *NotificationService
}

// weekStart returns the Monday of the week containing day.
func weekStart(day time.Time) time.Time {
	d := models.DateOf(day)
	return d.AddDate(0, 0, -((int(d.Weekday()) + 6) % 7))
}

// editableFrom returns the first day whose hours can still be changed on
// today. Until the freeze day of a month the previous month stays open;
// afterwards only the current month is. A freeze day of 0 disables the rule.
func editableFrom(today time.Time, freezeDay int) time.Time {
	if freezeDay <= 0 {
		return time.Time{}
	}
	firstOfMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	if today.Day() <= freezeDay {
		return firstOfMonth.AddDate(0, -1, 0)
	}
	return firstOfMonth
}

// UserTimesheets builds the calendar of the user between start and end.
func (s *TimesheetService) UserTimesheets(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]aggregation.UserTimesheet, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	if models.DateOf(end).Sub(models.DateOf(start)) > maxWindowDays*24*time.Hour {
		return nil, invalid("date window cannot exceed %d days", maxWindowDays)
	}

	projects, err := s.deps.Store.Projects().ListForMember(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	filled, err := s.deps.Store.Timesheets().ListByUser(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return []aggregation.UserTimesheet{}, nil
	}

	ids := make([]uuid.UUID, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	tasks, err := s.deps.Store.Tasks().ListByProjects(ctx, ids)
	if err != nil {
		return nil, err
	}

	hasHours := make(map[uuid.UUID]bool, len(filled))
	for _, e := range filled {
		hasHours[e.TaskID] = true
	}

	for i := range projects {
		project := &projects[i]
		member, err := s.deps.Store.Members().GetByUser(ctx, project.ID, userID)
		if err != nil {
			return nil, err
		}
		if member == nil {
			continue
		}
		for _, t := range tasks {
			if t.ProjectID != project.ID {
				continue
			}
			// Removed tasks stay visible where hours were already filled
			if (!t.IsRemoved && t.VisibleTo(member.ID)) || hasHours[t.ID] {
				project.Tasks = append(project.Tasks, t)
			}
		}
	}

	return aggregation.TimesheetsForDates(start, end, projects, filled), nil
}

type taskDay struct {
	taskID uuid.UUID
	day    time.Time
}

// Save stores hours for the user. Every entry is checked against the
// calendar rules, the membership of the user, the status workflow and the
// daily and weekly effort limits before anything is written.
func (s *TimesheetService) Save(ctx context.Context, userID uuid.UUID, reqs []TimesheetRequest) ([]models.Timesheet, error) {
	if len(reqs) == 0 {
		return nil, invalid("at least one timesheet entry is required")
	}

	limits := s.deps.Timesheet
	today := s.deps.today()
	frozenBefore := editableFrom(today, limits.FreezeDayOfMonth)

	wanted := make(map[taskDay]float64, len(reqs))
	var taskIDs []uuid.UUID
	var first, last time.Time
	for _, r := range reqs {
		day := models.DateOf(r.TimesheetDate.Time)
		switch {
		case r.TaskID == uuid.Nil:
			return nil, invalid("task id is required")
		case day.IsZero():
			return nil, invalid("timesheet date is required")
		case day.After(today):
			return nil, invalid("cannot fill hours for future date %s", day.Format(DateLayout))
		case day.Before(frozenBefore):
			return nil, invalid("timesheet for %s is frozen", day.Format(DateLayout))
		case r.Hours < 0 || r.Hours > limits.DailyEffortLimit+epsilon:
			return nil, invalid("hours must be between 0 and %v", limits.DailyEffortLimit)
		}

		key := taskDay{r.TaskID, day}
		if _, dup := wanted[key]; dup {
			return nil, invalid("task %s is listed twice for %s", r.TaskID, day.Format(DateLayout))
		}
		if !containsID(taskIDs, r.TaskID) {
			taskIDs = append(taskIDs, r.TaskID)
		}
		wanted[key] = r.Hours
		if first.IsZero() || day.Before(first) {
			first = day
		}
		if day.After(last) {
			last = day
		}
	}

	var saved []models.Timesheet
	err := s.deps.Store.WithTx(ctx, func(tx db.Store) error {
		tasks, err := s.checkEntries(ctx, tx, userID, reqs, taskIDs)
		if err != nil {
			return err
		}

		existing, err := tx.Timesheets().ListByUser(ctx, userID, weekStart(first), weekStart(last).AddDate(0, 0, 6))
		if err != nil {
			return err
		}
		current := make(map[taskDay]*models.Timesheet, len(existing))
		for i := range existing {
			key := taskDay{existing[i].TaskID, models.DateOf(existing[i].TimesheetDate)}
			if _, ok := current[key]; !ok {
				current[key] = &existing[i]
			}
		}

		if err := checkLimits(current, wanted, limits.DailyEffortLimit, limits.WeeklyEffortLimit); err != nil {
			return err
		}

		now := s.deps.Now().UTC()
		for _, r := range reqs {
			key := taskDay{r.TaskID, models.DateOf(r.TimesheetDate.Time)}
			entry := &models.Timesheet{
				TaskID:         r.TaskID,
				TaskTitle:      tasks[r.TaskID].Title,
				UserID:         userID,
				TimesheetDate:  key.day,
				Hours:          r.Hours,
				Status:         models.StatusSaved,
				LastModifiedOn: now,
			}
			if prev, ok := current[key]; ok {
				if !prev.Status.CanTransitionTo(models.StatusSaved) {
					return invalidState("hours of %s on %s are %s", entry.TaskTitle, key.day.Format(DateLayout), prev.Status)
				}
				entry.ID = prev.ID
				entry.ManagerComments = prev.ManagerComments
			}
			if err := tx.Timesheets().Upsert(ctx, entry); err != nil {
				return err
			}
			saved = append(saved, *entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// checkEntries verifies that every entry targets an active task the user may
// fill on that day. It returns the tasks by id.
func (s *TimesheetService) checkEntries(ctx context.Context, tx db.Store, userID uuid.UUID, reqs []TimesheetRequest, taskIDs []uuid.UUID) (map[uuid.UUID]*models.Task, error) {
	list, err := tx.Tasks().GetByIDs(ctx, taskIDs)
	if err != nil {
		return nil, err
	}
	tasks := make(map[uuid.UUID]*models.Task, len(list))
	for i := range list {
		tasks[list[i].ID] = &list[i]
	}

	projects := make(map[uuid.UUID]*models.Project)
	members := make(map[uuid.UUID]*models.Member)
	for _, r := range reqs {
		task, ok := tasks[r.TaskID]
		if !ok {
			return nil, notFound("task %s", r.TaskID)
		}
		day := r.TimesheetDate.Time
		if task.IsRemoved {
			return nil, invalid("task %q was removed", task.Title)
		}
		if !task.CoversDate(day) {
			return nil, invalid("task %q is not open on %s", task.Title, day.Format(DateLayout))
		}

		project, ok := projects[task.ProjectID]
		if !ok {
			if project, err = getProject(ctx, tx, task.ProjectID); err != nil {
				return nil, err
			}
			projects[task.ProjectID] = project
		}
		if !project.ActiveOn(day) {
			return nil, invalid("project %q is not active on %s", project.Title, day.Format(DateLayout))
		}

		member, ok := members[task.ProjectID]
		if !ok {
			if member, err = activeMember(ctx, tx, task.ProjectID, userID); err != nil {
				return nil, err
			}
			members[task.ProjectID] = member
		}
		if !task.VisibleTo(member.ID) {
			return nil, ErrForbidden
		}
	}
	return tasks, nil
}

// checkLimits overlays the wanted hours on the stored ones and checks the
// totals of every day and week the request touches.
func checkLimits(current map[taskDay]*models.Timesheet, wanted map[taskDay]float64, daily, weekly float64) error {
	days := make(map[time.Time]float64)
	for key, e := range current {
		if _, replaced := wanted[key]; !replaced {
			days[key.day] += e.Hours
		}
	}
	for key, hours := range wanted {
		days[key.day] += hours
	}

	weeks := make(map[time.Time]float64)
	for day, hours := range days {
		weeks[weekStart(day)] += hours
	}

	for key := range wanted {
		if days[key.day] > daily+epsilon {
			return invalid("%v hours on %s exceed the daily limit of %v", days[key.day], key.day.Format(DateLayout), daily)
		}
		if w := weeks[weekStart(key.day)]; w > weekly+epsilon {
			return invalid("%v hours in the week of %s exceed the weekly limit of %v", w, weekStart(key.day).Format(DateLayout), weekly)
		}
	}
	return nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// Submit sends the saved hours of the given days for approval. Entries with
// zero hours stay saved.
func (s *TimesheetService) Submit(ctx context.Context, userID uuid.UUID, dates []Date) ([]models.Timesheet, error) {
	if len(dates) == 0 {
		return nil, invalid("at least one date is required")
	}

	days := make(map[time.Time]bool, len(dates))
	var first, last time.Time
	for _, d := range dates {
		if d.IsZero() {
			return nil, invalid("timesheet date is required")
		}
		day := models.DateOf(d.Time)
		days[day] = true
		if first.IsZero() || day.Before(first) {
			first = day
		}
		if day.After(last) {
			last = day
		}
	}

	var submitted []models.Timesheet
	err := s.deps.Store.WithTx(ctx, func(tx db.Store) error {
		rows, err := tx.Timesheets().ListByUser(ctx, userID, first, last, models.StatusSaved)
		if err != nil {
			return err
		}
		now := s.deps.Now().UTC()
		for i := range rows {
			e := &rows[i]
			if !days[models.DateOf(e.TimesheetDate)] || e.Hours <= 0 {
				continue
			}
			if !e.Status.CanTransitionTo(models.StatusSubmitted) {
				return invalidState("timesheet %s is %s", e.ID, e.Status)
			}
			e.Status = models.StatusSubmitted
			e.SubmittedOn = &now
			e.LastModifiedOn = now
			if err := tx.Timesheets().Update(ctx, e); err != nil {
				return err
			}
			submitted = append(submitted, *e)
		}
		if len(submitted) == 0 {
			return invalidState("no saved hours to submit")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Logger.Infof("Event ID: TIMESHEET_SUBMITTED, Description: User %s submitted %d entries", userID, len(submitted))
	return submitted, nil
}

// ReporteeTimesheets lists the rows of a reportee in the window, optionally
// restricted to some statuses.
func (s *TimesheetService) ReporteeTimesheets(ctx context.Context, reporteeID uuid.UUID, start, end time.Time, statuses ...models.TimesheetStatus) ([]models.Timesheet, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, invalid("unknown status %d", st)
		}
	}
	return s.deps.Store.Timesheets().ListByUser(ctx, reporteeID, start, end, statuses...)
}

// SubmittedRequests groups the submitted rows of a reportee into runs of
// contiguous days.
func (s *TimesheetService) SubmittedRequests(ctx context.Context, reporteeID uuid.UUID) ([]SubmittedRequest, error) {
	rows, err := s.deps.Store.Timesheets().ListByUsers(ctx, []uuid.UUID{reporteeID}, models.StatusSubmitted)
	if err != nil {
		return nil, err
	}

	runs := aggregation.GroupTimesheetDates(rows)
	requests := make([]SubmittedRequest, 0, len(runs))
	for _, run := range runs {
		req := SubmittedRequest{
			Dates:        run,
			StartDate:    run[0],
			EndDate:      run[len(run)-1],
			TimesheetIDs: []uuid.UUID{},
		}
		for _, e := range rows {
			if inRun(models.DateOf(e.TimesheetDate), run) {
				req.TotalHours += e.Hours
				req.TimesheetIDs = append(req.TimesheetIDs, e.ID)
			}
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// inRun relies on runs being contiguous.
func inRun(day time.Time, run []time.Time) bool {
	return !day.Before(run[0]) && !day.After(run[len(run)-1])
}

// PendingRequests lists the direct reports of manager that have submitted
// hours waiting for review, ordered by display name.
func (s *TimesheetService) PendingRequests(ctx context.Context, managerID uuid.UUID) ([]PendingRequest, error) {
	reports, err := s.deps.Directory.GetDirectReports(ctx, managerID, "")
	if err != nil {
		return nil, err
	}
	pending := []PendingRequest{}
	if len(reports) == 0 {
		return pending, nil
	}

	ids := make([]uuid.UUID, 0, len(reports))
	for _, r := range reports {
		ids = append(ids, r.ID)
	}
	rows, err := s.deps.Store.Timesheets().ListByUsers(ctx, ids, models.StatusSubmitted)
	if err != nil {
		return nil, err
	}

	byUser := make(map[uuid.UUID][]models.Timesheet)
	for _, e := range rows {
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}
	for _, r := range reports {
		entries, ok := byUser[r.ID]
		if !ok {
			continue
		}
		pending = append(pending, PendingRequest{
			UserID:            r.ID,
			DisplayName:       r.DisplayName,
			UserPrincipalName: r.UserPrincipalName,
			TotalHours:        aggregation.TotalHours(entries),
			RequestedDays:     aggregation.GroupTimesheetDates(entries),
		})
	}
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].DisplayName < pending[j].DisplayName })
	return pending, nil
}

func (s *TimesheetService) Approve(ctx context.Context, reporteeID uuid.UUID, req ReviewRequest) ([]models.Timesheet, error) {
	return s.review(ctx, reporteeID, req, models.StatusApproved)
}

func (s *TimesheetService) Reject(ctx context.Context, reporteeID uuid.UUID, req ReviewRequest) ([]models.Timesheet, error) {
	return s.review(ctx, reporteeID, req, models.StatusRejected)
}

func (s *TimesheetService) review(ctx context.Context, reporteeID uuid.UUID, req ReviewRequest, target models.TimesheetStatus) ([]models.Timesheet, error) {
	var ids []uuid.UUID
	for _, id := range req.TimesheetIDs {
		if !containsID(ids, id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, invalid("at least one timesheet id is required")
	}

	var reviewed []models.Timesheet
	err := s.deps.Store.WithTx(ctx, func(tx db.Store) error {
		rows, err := tx.Timesheets().GetByIDs(ctx, ids)
		if err != nil {
			return err
		}
		if len(rows) != len(ids) {
			return notFound("%d of %d timesheets", len(ids)-len(rows), len(ids))
		}

		now := s.deps.Now().UTC()
		for i := range rows {
			e := &rows[i]
			if e.UserID != reporteeID {
				return ErrForbidden
			}
			if !e.Status.CanTransitionTo(target) {
				return invalidState("timesheet %s is %s", e.ID, e.Status)
			}
			e.Status = target
			e.ManagerComments = req.ManagerComments
			e.LastModifiedOn = now
			if err := tx.Timesheets().Update(ctx, e); err != nil {
				return err
			}
		}
		reviewed = rows
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Logger.Infof("Event ID: TIMESHEET_REVIEWED, Description: %d entries of %s set to %s", len(reviewed), reporteeID, target)
	s.notifyReviewed(ctx, reporteeID, target, reviewed, req.ManagerComments)
	return reviewed, nil
}

// notifyReviewed tells the reportee about the decision. Failures are logged
// since the review itself is already committed.
func (s *TimesheetService) notifyReviewed(ctx context.Context, reporteeID uuid.UUID, status models.TimesheetStatus, entries []models.Timesheet, comments string) {
	if s.deps.Cards == nil {
		return
	}

	dates := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		dates = append(dates, e.TimesheetDate)
	}
	hours := aggregation.TotalHours(entries)

	var card *cards.Card
	var err error
	if status == models.StatusApproved {
		card, err = s.deps.Cards.Approved(s.deps.Locale, dates, hours, comments)
	} else {
		card, err = s.deps.Cards.Rejected(s.deps.Locale, dates, hours, comments)
	}
	if err != nil {
		logging.Logger.Errorf("Event ID: CARD_RENDER_FAILED, Description: %v", err)
		return
	}

	err = s.notifications.NotifyUser(ctx, reporteeID, card)
	switch {
	case errors.Is(err, ErrNotFound):
		logging.Logger.Infof("Event ID: NOTIFICATION_SKIPPED, Description: User %s has no conversation", reporteeID)
	case err != nil:
		logging.Logger.Errorf("Event ID: NOTIFICATION_FAILED, Description: Error notifying %s: %v", reporteeID, err)
	}
}

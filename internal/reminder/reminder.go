// Package reminder sends the scheduled approval and fill reminders.
package reminder

import (
	"context"
	"fmt"
	"sort"
	"time"

	"timesheet/internal/aggregation"
	"timesheet/internal/cards"
	"timesheet/internal/db"
	"timesheet/internal/db/models"
	"timesheet/internal/graph"
	"timesheet/internal/logging"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

type Directory interface {
	GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]graph.User, error)
	GetManagers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]graph.User, error)
}

type Notifier interface {
	Notify(ctx context.Context, conversation models.Conversation, card *cards.Card) error
}

// Result counts the outcome of one sweep.
type Result struct {
	Sent    int
	Skipped int
	Failed  int
}

func (r Result) String() string {
	return fmt.Sprintf("sent %d, skipped %d, failed %d", r.Sent, r.Skipped, r.Failed)
}

type Job struct {
	store     db.Store
	directory Directory
	notifier  Notifier
	cards     *cards.Renderer
	locale    language.Tag
	location  *time.Location
	Now       func() time.Time
}

func NewJob(store db.Store, directory Directory, notifier Notifier, renderer *cards.Renderer, locale language.Tag, location *time.Location) *Job {
	if location == nil {
		location = time.UTC
	}
	return &Job{
		store:     store,
		directory: directory,
		notifier:  notifier,
		cards:     renderer,
		locale:    locale,
		location:  location,
		Now:       time.Now,
	}
}

// PreviousWorkingDay returns the last weekday before day.
func PreviousWorkingDay(day time.Time) time.Time {
	d := models.DateOf(day).AddDate(0, 0, -1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// Run executes both sweeps. A failing sweep does not prevent the other.
func (j *Job) Run(ctx context.Context) {
	if res, err := j.ApprovalReminders(ctx); err != nil {
		logging.Logger.Errorf("Event ID: REMINDER_APPROVAL_FAILED, Description: %v", err)
	} else {
		logging.Logger.Infof("Event ID: REMINDER_APPROVAL_DONE, Description: Approval reminders %s", res)
	}

	if res, err := j.FillReminders(ctx); err != nil {
		logging.Logger.Errorf("Event ID: REMINDER_FILL_FAILED, Description: %v", err)
	} else {
		logging.Logger.Infof("Event ID: REMINDER_FILL_DONE, Description: Fill reminders %s", res)
	}
}

// ApprovalReminders sends every manager with submitted hours from a direct
// report one card with the number of pending requests and who sent them.
func (j *Job) ApprovalReminders(ctx context.Context) (Result, error) {
	var res Result

	rows, err := j.store.Timesheets().ListByStatus(ctx, models.StatusSubmitted)
	if err != nil {
		return res, fmt.Errorf("error listing submitted timesheets: %w", err)
	}
	if len(rows) == 0 {
		return res, nil
	}

	byAuthor := make(map[uuid.UUID][]models.Timesheet)
	var authors []uuid.UUID
	for _, row := range rows {
		if _, ok := byAuthor[row.UserID]; !ok {
			authors = append(authors, row.UserID)
		}
		byAuthor[row.UserID] = append(byAuthor[row.UserID], row)
	}

	managers, err := j.directory.GetManagers(ctx, authors)
	if err != nil {
		return res, fmt.Errorf("error getting managers: %w", err)
	}
	users, err := j.directory.GetUsers(ctx, authors)
	if err != nil {
		return res, fmt.Errorf("error getting requesters: %w", err)
	}

	type pending struct {
		requests   int
		requesters []string
	}
	perManager := make(map[uuid.UUID]*pending)
	var managerIDs []uuid.UUID
	for _, author := range authors {
		manager, ok := managers[author]
		if !ok {
			logging.Logger.Warnf("Event ID: REMINDER_NO_MANAGER, Description: User %s has no manager", author)
			res.Skipped++
			continue
		}
		p, ok := perManager[manager.ID]
		if !ok {
			p = &pending{}
			perManager[manager.ID] = p
			managerIDs = append(managerIDs, manager.ID)
		}
		p.requests += len(aggregation.GroupTimesheetDates(byAuthor[author]))
		name := author.String()
		if u, ok := users[author]; ok && u.DisplayName != "" {
			name = u.DisplayName
		}
		p.requesters = append(p.requesters, name)
	}

	conversations, err := j.conversations(ctx, managerIDs)
	if err != nil {
		return res, err
	}
	for _, managerID := range managerIDs {
		p := perManager[managerID]
		sort.Strings(p.requesters)
		j.send(ctx, &res, conversations, managerID, func() (*cards.Card, error) {
			return j.cards.ApprovalReminder(j.locale, p.requests, p.requesters)
		})
	}
	return res, nil
}

// FillReminders reminds active members who filled nothing on the previous
// working day.
func (j *Job) FillReminders(ctx context.Context) (Result, error) {
	var res Result
	day := PreviousWorkingDay(j.Now().In(j.location))

	members, err := j.store.Members().ListActiveOn(ctx, day)
	if err != nil {
		return res, fmt.Errorf("error listing active members: %w", err)
	}
	filled, err := j.store.Timesheets().ListByDate(ctx, day)
	if err != nil {
		return res, fmt.Errorf("error listing timesheets of %s: %w", day.Format("2006-01-02"), err)
	}

	done := make(map[uuid.UUID]bool, len(filled))
	for _, e := range filled {
		done[e.UserID] = true
	}
	var missing []uuid.UUID
	for _, m := range members {
		if !done[m.UserID] {
			done[m.UserID] = true
			missing = append(missing, m.UserID)
		}
	}
	if len(missing) == 0 {
		return res, nil
	}

	conversations, err := j.conversations(ctx, missing)
	if err != nil {
		return res, err
	}
	for _, userID := range missing {
		j.send(ctx, &res, conversations, userID, func() (*cards.Card, error) {
			return j.cards.FillReminder(j.locale, day)
		})
	}
	return res, nil
}

func (j *Job) conversations(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]models.Conversation, error) {
	list, err := j.store.Conversations().ListByUsers(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("error listing conversations: %w", err)
	}
	out := make(map[uuid.UUID]models.Conversation, len(list))
	for _, c := range list {
		out[c.UserID] = c
	}
	return out, nil
}

func (j *Job) send(ctx context.Context, res *Result, conversations map[uuid.UUID]models.Conversation, userID uuid.UUID, render func() (*cards.Card, error)) {
	conversation, ok := conversations[userID]
	if !ok {
		res.Skipped++
		return
	}
	card, err := render()
	if err == nil {
		err = j.notifier.Notify(ctx, conversation, card)
	}
	if err != nil {
		logging.Logger.Errorf("Event ID: REMINDER_SEND_FAILED, Description: Error reminding user %s: %v", userID, err)
		res.Failed++
		return
	}
	res.Sent++
}

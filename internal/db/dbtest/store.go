// Package dbtest provides an in-memory db.Store for tests. Filters and
// ordering follow the Postgres repositories.
package dbtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"timesheet/internal/db"
	"timesheet/internal/db/models"

	"github.com/google/uuid"
)

type tables struct {
	projects      map[uuid.UUID]models.Project
	members       map[uuid.UUID]models.Member
	tasks         map[uuid.UUID]models.Task
	timesheets    map[uuid.UUID]models.Timesheet
	conversations map[uuid.UUID]models.Conversation
}

func newTables() *tables {
	return &tables{
		projects:      map[uuid.UUID]models.Project{},
		members:       map[uuid.UUID]models.Member{},
		tasks:         map[uuid.UUID]models.Task{},
		timesheets:    map[uuid.UUID]models.Timesheet{},
		conversations: map[uuid.UUID]models.Conversation{},
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.projects {
		c.projects[k] = v
	}
	for k, v := range t.members {
		c.members[k] = v
	}
	for k, v := range t.tasks {
		c.tasks[k] = v
	}
	for k, v := range t.timesheets {
		c.timesheets[k] = v
	}
	for k, v := range t.conversations {
		c.conversations[k] = v
	}
	return c
}

// Store is safe for concurrent use. Transactions work on a copy that
// replaces the committed state only when the callback succeeds.
type Store struct {
	mu     *sync.Mutex
	data   *tables
	failOn map[string]error
	inTx   bool
}

var _ db.Store = (*Store)(nil)

func New() *Store {
	return &Store{mu: &sync.Mutex{}, data: newTables(), failOn: map[string]error{}}
}

// FailOn makes the named operation (for example "Members.Create") return err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[op] = err
}

func (s *Store) Projects() db.ProjectRepository           { return &projects{s} }
func (s *Store) Members() db.MemberRepository             { return &members{s} }
func (s *Store) Tasks() db.TaskRepository                 { return &tasks{s} }
func (s *Store) Timesheets() db.TimesheetRepository       { return &timesheets{s} }
func (s *Store) Conversations() db.ConversationRepository { return &conversations{s} }

func (s *Store) WithTx(ctx context.Context, fn func(db.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	tx := &Store{mu: &sync.Mutex{}, data: snapshot, failOn: s.failOn, inTx: true}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = snapshot
	s.mu.Unlock()
	return nil
}

// with runs fn under the lock unless an error was injected for op.
func (s *Store) with(op string, fn func(t *tables) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failOn[op]; ok {
		return err
	}
	return fn(s.data)
}

func overlaps(start, end, from, to time.Time) bool {
	return !models.DateOf(start).After(models.DateOf(to)) && !models.DateOf(end).Before(models.DateOf(from))
}

func hasStatus(status models.TimesheetStatus, statuses []models.TimesheetStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func inIDs(id uuid.UUID, ids []uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

type projects struct{ s *Store }

func (r *projects) Create(ctx context.Context, p *models.Project) error {
	return r.s.with("Projects.Create", func(t *tables) error {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if p.CreatedOn.IsZero() {
			p.CreatedOn = time.Now().UTC()
		}
		stored := *p
		stored.Tasks, stored.Members = nil, nil
		t.projects[p.ID] = stored
		return nil
	})
}

func (r *projects) Update(ctx context.Context, p *models.Project) error {
	return r.s.with("Projects.Update", func(t *tables) error {
		existing, ok := t.projects[p.ID]
		if !ok {
			return fmt.Errorf("project %s not found for update", p.ID)
		}
		existing.Title = p.Title
		existing.ClientName = p.ClientName
		existing.BillableHours = p.BillableHours
		existing.NonBillableHours = p.NonBillableHours
		existing.StartDate = p.StartDate
		existing.EndDate = p.EndDate
		t.projects[p.ID] = existing
		return nil
	})
}

func (r *projects) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var out *models.Project
	err := r.s.with("Projects.Get", func(t *tables) error {
		if p, ok := t.projects[id]; ok {
			out = &p
		}
		return nil
	})
	return out, err
}

func sortProjects(list []models.Project) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].StartDate.Equal(list[j].StartDate) {
			return list[i].StartDate.Before(list[j].StartDate)
		}
		return list[i].Title < list[j].Title
	})
}

func (r *projects) ListByCreator(ctx context.Context, createdBy uuid.UUID, offset, limit int) ([]models.Project, error) {
	var out []models.Project
	err := r.s.with("Projects.ListByCreator", func(t *tables) error {
		var all []models.Project
		for _, p := range t.projects {
			if p.CreatedBy == createdBy {
				all = append(all, p)
			}
		}
		sort.Slice(all, func(i, j int) bool { return all[i].CreatedOn.After(all[j].CreatedOn) })
		if offset >= len(all) {
			return nil
		}
		all = all[offset:]
		if limit < len(all) {
			all = all[:limit]
		}
		out = all
		return nil
	})
	return out, err
}

func (r *projects) ListByCreatorInRange(ctx context.Context, createdBy uuid.UUID, start, end time.Time) ([]models.Project, error) {
	var out []models.Project
	err := r.s.with("Projects.ListByCreatorInRange", func(t *tables) error {
		for _, p := range t.projects {
			if p.CreatedBy == createdBy && overlaps(p.StartDate, p.EndDate, start, end) {
				out = append(out, p)
			}
		}
		sortProjects(out)
		return nil
	})
	return out, err
}

func (r *projects) ListForMember(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]models.Project, error) {
	var out []models.Project
	err := r.s.with("Projects.ListForMember", func(t *tables) error {
		for _, m := range t.members {
			if m.UserID != userID || m.IsRemoved {
				continue
			}
			if p, ok := t.projects[m.ProjectID]; ok && overlaps(p.StartDate, p.EndDate, start, end) {
				out = append(out, p)
			}
		}
		sortProjects(out)
		return nil
	})
	return out, err
}

type members struct{ s *Store }

func (r *members) Create(ctx context.Context, m *models.Member) error {
	return r.s.with("Members.Create", func(t *tables) error {
		for _, existing := range t.members {
			if existing.ProjectID == m.ProjectID && existing.UserID == m.UserID {
				return fmt.Errorf("member %s already exists in project %s", m.UserID, m.ProjectID)
			}
		}
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		t.members[m.ID] = *m
		return nil
	})
}

func (r *members) Update(ctx context.Context, m *models.Member) error {
	return r.s.with("Members.Update", func(t *tables) error {
		existing, ok := t.members[m.ID]
		if !ok {
			return fmt.Errorf("member %s not found for update", m.ID)
		}
		existing.IsBillable = m.IsBillable
		existing.IsRemoved = m.IsRemoved
		t.members[m.ID] = existing
		return nil
	})
}

func (r *members) Get(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var out *models.Member
	err := r.s.with("Members.Get", func(t *tables) error {
		if m, ok := t.members[id]; ok {
			out = &m
		}
		return nil
	})
	return out, err
}

func (r *members) GetByUser(ctx context.Context, projectID, userID uuid.UUID) (*models.Member, error) {
	var out *models.Member
	err := r.s.with("Members.GetByUser", func(t *tables) error {
		for _, m := range t.members {
			if m.ProjectID == projectID && m.UserID == userID {
				m := m
				out = &m
			}
		}
		return nil
	})
	return out, err
}

func sortMembers(list []models.Member) {
	sort.Slice(list, func(i, j int) bool { return list[i].UserID.String() < list[j].UserID.String() })
}

func (r *members) ListByProject(ctx context.Context, projectID uuid.UUID, includeRemoved bool) ([]models.Member, error) {
	var out []models.Member
	err := r.s.with("Members.ListByProject", func(t *tables) error {
		for _, m := range t.members {
			if m.ProjectID == projectID && (includeRemoved || !m.IsRemoved) {
				out = append(out, m)
			}
		}
		sortMembers(out)
		return nil
	})
	return out, err
}

func (r *members) ListActiveOn(ctx context.Context, day time.Time) ([]models.Member, error) {
	var out []models.Member
	err := r.s.with("Members.ListActiveOn", func(t *tables) error {
		for _, m := range t.members {
			if m.IsRemoved {
				continue
			}
			if p, ok := t.projects[m.ProjectID]; ok && p.ActiveOn(day) {
				out = append(out, m)
			}
		}
		sortMembers(out)
		return nil
	})
	return out, err
}

type tasks struct{ s *Store }

func (r *tasks) Create(ctx context.Context, task *models.Task) error {
	return r.s.with("Tasks.Create", func(t *tables) error {
		if task.ID == uuid.Nil {
			task.ID = uuid.New()
		}
		t.tasks[task.ID] = *task
		return nil
	})
}

func (r *tasks) Update(ctx context.Context, task *models.Task) error {
	return r.s.with("Tasks.Update", func(t *tables) error {
		existing, ok := t.tasks[task.ID]
		if !ok {
			return fmt.Errorf("task %s not found for update", task.ID)
		}
		existing.Title = task.Title
		existing.IsRemoved = task.IsRemoved
		existing.StartDate = task.StartDate
		existing.EndDate = task.EndDate
		t.tasks[task.ID] = existing
		return nil
	})
}

func (r *tasks) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var out *models.Task
	err := r.s.with("Tasks.Get", func(t *tables) error {
		if task, ok := t.tasks[id]; ok {
			out = &task
		}
		return nil
	})
	return out, err
}

func sortTasks(list []models.Task) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Title != list[j].Title {
			return list[i].Title < list[j].Title
		}
		return list[i].ID.String() < list[j].ID.String()
	})
}

func (r *tasks) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Task, error) {
	return r.ListByProjects(ctx, []uuid.UUID{projectID})
}

func (r *tasks) ListByProjects(ctx context.Context, projectIDs []uuid.UUID) ([]models.Task, error) {
	var out []models.Task
	err := r.s.with("Tasks.ListByProjects", func(t *tables) error {
		for _, task := range t.tasks {
			if inIDs(task.ProjectID, projectIDs) {
				out = append(out, task)
			}
		}
		sortTasks(out)
		return nil
	})
	return out, err
}

func (r *tasks) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Task, error) {
	var out []models.Task
	err := r.s.with("Tasks.GetByIDs", func(t *tables) error {
		for _, id := range ids {
			if task, ok := t.tasks[id]; ok {
				out = append(out, task)
			}
		}
		return nil
	})
	return out, err
}

type timesheets struct{ s *Store }

// joined fills the project fields the SQL join would provide.
func joined(t *tables, e models.Timesheet) models.Timesheet {
	if task, ok := t.tasks[e.TaskID]; ok {
		e.ProjectID = task.ProjectID
		if p, ok := t.projects[task.ProjectID]; ok {
			e.ProjectTitle = p.Title
		}
	}
	return e
}

func (r *timesheets) list(op string, keep func(models.Timesheet) bool) ([]models.Timesheet, error) {
	var out []models.Timesheet
	err := r.s.with(op, func(t *tables) error {
		for _, e := range t.timesheets {
			e = joined(t, e)
			if keep(e) {
				out = append(out, e)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].TimesheetDate.Equal(out[j].TimesheetDate) {
				return out[i].TimesheetDate.Before(out[j].TimesheetDate)
			}
			return out[i].LastModifiedOn.After(out[j].LastModifiedOn)
		})
		return nil
	})
	return out, err
}

func (r *timesheets) Upsert(ctx context.Context, entry *models.Timesheet) error {
	return r.s.with("Timesheets.Upsert", func(t *tables) error {
		if entry.LastModifiedOn.IsZero() {
			entry.LastModifiedOn = time.Now().UTC()
		}
		entry.TimesheetDate = models.DateOf(entry.TimesheetDate)
		for id, existing := range t.timesheets {
			if existing.UserID == entry.UserID && existing.TaskID == entry.TaskID && existing.TimesheetDate.Equal(entry.TimesheetDate) {
				entry.ID = id
			}
		}
		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
		stored := *entry
		stored.ProjectID, stored.ProjectTitle = uuid.Nil, ""
		t.timesheets[entry.ID] = stored
		return nil
	})
}

func (r *timesheets) Update(ctx context.Context, entry *models.Timesheet) error {
	return r.s.with("Timesheets.Update", func(t *tables) error {
		existing, ok := t.timesheets[entry.ID]
		if !ok {
			return fmt.Errorf("timesheet %s not found for update", entry.ID)
		}
		existing.Hours = entry.Hours
		existing.Status = entry.Status
		existing.ManagerComments = entry.ManagerComments
		existing.SubmittedOn = entry.SubmittedOn
		existing.LastModifiedOn = entry.LastModifiedOn
		t.timesheets[entry.ID] = existing
		return nil
	})
}

func (r *timesheets) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Timesheet, error) {
	return r.list("Timesheets.GetByIDs", func(e models.Timesheet) bool { return inIDs(e.ID, ids) })
}

func inRange(day, start, end time.Time) bool {
	d := models.DateOf(day)
	return !d.Before(models.DateOf(start)) && !d.After(models.DateOf(end))
}

func (r *timesheets) ListByUser(ctx context.Context, userID uuid.UUID, start, end time.Time, statuses ...models.TimesheetStatus) ([]models.Timesheet, error) {
	return r.list("Timesheets.ListByUser", func(e models.Timesheet) bool {
		return e.UserID == userID && inRange(e.TimesheetDate, start, end) && hasStatus(e.Status, statuses)
	})
}

func (r *timesheets) ListByUsers(ctx context.Context, userIDs []uuid.UUID, statuses ...models.TimesheetStatus) ([]models.Timesheet, error) {
	return r.list("Timesheets.ListByUsers", func(e models.Timesheet) bool {
		return inIDs(e.UserID, userIDs) && hasStatus(e.Status, statuses)
	})
}

func (r *timesheets) ListByProject(ctx context.Context, projectID uuid.UUID, start, end time.Time, statuses ...models.TimesheetStatus) ([]models.Timesheet, error) {
	return r.list("Timesheets.ListByProject", func(e models.Timesheet) bool {
		return e.ProjectID == projectID && inRange(e.TimesheetDate, start, end) && hasStatus(e.Status, statuses)
	})
}

func (r *timesheets) ListByStatus(ctx context.Context, status models.TimesheetStatus) ([]models.Timesheet, error) {
	return r.list("Timesheets.ListByStatus", func(e models.Timesheet) bool { return e.Status == status })
}

func (r *timesheets) ListByDate(ctx context.Context, day time.Time) ([]models.Timesheet, error) {
	return r.list("Timesheets.ListByDate", func(e models.Timesheet) bool {
		return models.DateOf(e.TimesheetDate).Equal(models.DateOf(day))
	})
}

type conversations struct{ s *Store }

func (r *conversations) Upsert(ctx context.Context, c *models.Conversation) error {
	return r.s.with("Conversations.Upsert", func(t *tables) error {
		for _, existing := range t.conversations {
			if existing.ConversationID == c.ConversationID && existing.UserID != c.UserID {
				return fmt.Errorf("%w: conversation %s is linked to another user", db.ErrDuplicate, c.ConversationID)
			}
		}
		if c.BotInstalledOn.IsZero() {
			c.BotInstalledOn = time.Now().UTC()
		}
		t.conversations[c.UserID] = *c
		return nil
	})
}

func (r *conversations) Get(ctx context.Context, userID uuid.UUID) (*models.Conversation, error) {
	var out *models.Conversation
	err := r.s.with("Conversations.Get", func(t *tables) error {
		if c, ok := t.conversations[userID]; ok {
			out = &c
		}
		return nil
	})
	return out, err
}

func (r *conversations) GetByConversationID(ctx context.Context, conversationID string) (*models.Conversation, error) {
	var out *models.Conversation
	err := r.s.with("Conversations.GetByConversationID", func(t *tables) error {
		for _, c := range t.conversations {
			if c.ConversationID == conversationID {
				c := c
				out = &c
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *conversations) ListByUsers(ctx context.Context, userIDs []uuid.UUID) ([]models.Conversation, error) {
	var out []models.Conversation
	err := r.s.with("Conversations.ListByUsers", func(t *tables) error {
		for _, id := range userIDs {
			if c, ok := t.conversations[id]; ok {
				out = append(out, c)
			}
		}
		return nil
	})
	return out, err
}

func (r *conversations) Delete(ctx context.Context, userID uuid.UUID) error {
	return r.s.with("Conversations.Delete", func(t *tables) error {
		delete(t.conversations, userID)
		return nil
	})
}

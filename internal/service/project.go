package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"timesheet/internal/aggregation"
	"timesheet/internal/db"
	"timesheet/internal/db/models"
	"timesheet/internal/logging"

	"github.com/google/uuid"
)

const maxPageSize = 100

type ProjectService struct {
	deps Deps
}

func validateProject(req ProjectRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return invalid("project title is required")
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return invalid("project start and end dates are required")
	}
	if req.EndDate.Before(req.StartDate.Time) {
		return invalid("project end date is before its start date")
	}
	if req.BillableHours < 0 || req.NonBillableHours < 0 {
		return invalid("project hours cannot be negative")
	}
	return nil
}

// newTask builds a task inside the project range. Missing dates default to
// the project's own range.
func newTask(project *models.Project, req TaskRequest) (*models.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, invalid("task title is required")
	}
	task := &models.Task{
		ProjectID: project.ID,
		Title:     title,
		StartDate: models.DateOf(project.StartDate),
		EndDate:   models.DateOf(project.EndDate),
	}
	if req.StartDate != nil && !req.StartDate.IsZero() {
		task.StartDate = req.StartDate.Time
	}
	if req.EndDate != nil && !req.EndDate.IsZero() {
		task.EndDate = req.EndDate.Time
	}
	if task.EndDate.Before(task.StartDate) {
		return nil, invalid("task %q ends before it starts", title)
	}
	if !project.ActiveOn(task.StartDate) || !project.ActiveOn(task.EndDate) {
		return nil, invalid("task %q must lie within the project dates", title)
	}
	return task, nil
}

// Create stores a project together with its initial tasks and members.
func (s *ProjectService) Create(ctx context.Context, creator uuid.UUID, req ProjectRequest) (*models.Project, error) {
	if err := validateProject(req); err != nil {
		return nil, err
	}

	project := &models.Project{
		Title:            strings.TrimSpace(req.Title),
		ClientName:       strings.TrimSpace(req.ClientName),
		BillableHours:    req.BillableHours,
		NonBillableHours: req.NonBillableHours,
		StartDate:        req.StartDate.Time,
		EndDate:          req.EndDate.Time,
		CreatedBy:        creator,
		CreatedOn:        s.deps.Now().UTC(),
	}

	seen := make(map[uuid.UUID]bool, len(req.Members))
	for _, m := range req.Members {
		if m.UserID == uuid.Nil {
			return nil, invalid("member user id is required")
		}
		if seen[m.UserID] {
			return nil, invalid("user %s is listed twice", m.UserID)
		}
		seen[m.UserID] = true
	}

	err := s.deps.Store.WithTx(ctx, func(tx db.Store) error {
		if err := tx.Projects().Create(ctx, project); err != nil {
			return err
		}
		for _, req := range req.Tasks {
			task, err := newTask(project, req)
			if err != nil {
				return err
			}
			if err := tx.Tasks().Create(ctx, task); err != nil {
				return err
			}
			project.Tasks = append(project.Tasks, *task)
		}
		for _, m := range req.Members {
			member := &models.Member{ProjectID: project.ID, UserID: m.UserID, IsBillable: m.IsBillable}
			if err := tx.Members().Create(ctx, member); err != nil {
				return err
			}
			project.Members = append(project.Members, *member)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Logger.Infof("Event ID: PROJECT_CREATED, Description: Project %s created by %s", project.ID, creator)
	return project, nil
}

// Update changes the project fields and moves the dates of its tasks to
// the new project range. Tasks added by members keep their own range.
func (s *ProjectService) Update(ctx context.Context, projectID uuid.UUID, req ProjectRequest) (*models.Project, error) {
	if err := validateProject(req); err != nil {
		return nil, err
	}

	var project *models.Project
	err := s.deps.Store.WithTx(ctx, func(tx db.Store) error {
		var err error
		if project, err = getProject(ctx, tx, projectID); err != nil {
			return err
		}
		project.Title = strings.TrimSpace(req.Title)
		project.ClientName = strings.TrimSpace(req.ClientName)
		project.BillableHours = req.BillableHours
		project.NonBillableHours = req.NonBillableHours
		project.StartDate = req.StartDate.Time
		project.EndDate = req.EndDate.Time
		if err := tx.Projects().Update(ctx, project); err != nil {
			return err
		}

		tasks, err := tx.Tasks().ListByProject(ctx, projectID)
		if err != nil {
			return err
		}
		for i := range tasks {
			task := &tasks[i]
			if task.IsRemoved || task.IsAddedByMember {
				continue
			}
			task.StartDate = project.StartDate
			task.EndDate = project.EndDate
			if err := tx.Tasks().Update(ctx, task); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// Get returns the project with its active tasks and members.
func (s *ProjectService) Get(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	project, err := getProject(ctx, s.deps.Store, projectID)
	if err != nil {
		return nil, err
	}

	tasks, err := s.deps.Store.Tasks().ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if !t.IsRemoved {
			project.Tasks = append(project.Tasks, t)
		}
	}

	if project.Members, err = s.deps.Store.Members().ListByProject(ctx, projectID, false); err != nil {
		return nil, err
	}
	return project, nil
}

// List pages through the projects created by creator. Pages start at 1.
func (s *ProjectService) List(ctx context.Context, creator uuid.UUID, page, size int) ([]models.Project, error) {
	if page < 1 {
		return nil, invalid("page number must be at least 1")
	}
	if size < 1 || size > maxPageSize {
		return nil, invalid("page size must be between 1 and %d", maxPageSize)
	}
	return s.deps.Store.Projects().ListByCreator(ctx, creator, (page-1)*size, size)
}

// Utilization computes the utilization of approved hours inside the window
// clipped to the project dates. It returns aggregation.ErrUnknownMember when
// approved hours were filled by someone who is no longer a member.
func (s *ProjectService) Utilization(ctx context.Context, projectID uuid.UUID, start, end time.Time) (*aggregation.ProjectUtilization, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	project, err := getProject(ctx, s.deps.Store, projectID)
	if err != nil {
		return nil, err
	}
	return s.utilization(ctx, project, start, end)
}

func (s *ProjectService) utilization(ctx context.Context, project *models.Project, start, end time.Time) (*aggregation.ProjectUtilization, error) {
	from, to := models.DateOf(start), models.DateOf(end)
	if from.Before(models.DateOf(project.StartDate)) {
		from = models.DateOf(project.StartDate)
	}
	if to.After(models.DateOf(project.EndDate)) {
		to = models.DateOf(project.EndDate)
	}

	var approved []models.Timesheet
	if !to.Before(from) {
		var err error
		approved, err = s.deps.Store.Timesheets().ListByProject(ctx, project.ID, from, to, models.StatusApproved)
		if err != nil {
			return nil, err
		}
	}

	members, err := s.deps.Store.Members().ListByProject(ctx, project.ID, false)
	if err != nil {
		return nil, err
	}
	return aggregation.ComputeUtilization(*project, approved, members)
}

// Dashboard returns the utilization of every project of creator overlapping
// the window. Projects whose utilization cannot be computed are left out.
func (s *ProjectService) Dashboard(ctx context.Context, creator uuid.UUID, start, end time.Time) ([]aggregation.ProjectUtilization, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	projects, err := s.deps.Store.Projects().ListByCreatorInRange(ctx, creator, start, end)
	if err != nil {
		return nil, err
	}

	result := make([]aggregation.ProjectUtilization, 0, len(projects))
	for i := range projects {
		u, err := s.utilization(ctx, &projects[i], start, end)
		if errors.Is(err, aggregation.ErrUnknownMember) {
			logging.Logger.Warnf("Event ID: DASHBOARD_PROJECT_SKIPPED, Description: Project %s: %v", projects[i].ID, err)
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, *u)
	}
	return result, nil
}

package service

import (
	"context"
	"time"

	"timesheet/internal/aggregation"
	"timesheet/internal/db"
	"timesheet/internal/db/models"
	"timesheet/internal/logging"

	"github.com/google/uuid"
)

type TaskService struct {
	deps Deps
}

func (s *TaskService) Create(ctx context.Context, projectID uuid.UUID, reqs []TaskRequest) ([]models.Task, error) {
	if len(reqs) == 0 {
		return nil, invalid("at least one task is required")
	}

	var created []models.Task
	err := s.deps.Store.WithTx(ctx, func(tx db.Store) error {
		project, err := getProject(ctx, tx, projectID)
		if err != nil {
			return err
		}
		for _, req := range reqs {
			task, err := newTask(project, req)
			if err != nil {
				return err
			}
			if err := tx.Tasks().Create(ctx, task); err != nil {
				return err
			}
			created = append(created, *task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// projectTask loads a task that belongs to projectID.
func projectTask(ctx context.Context, store db.Store, projectID, taskID uuid.UUID) (*models.Task, error) {
	task, err := store.Tasks().Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil || task.ProjectID != projectID {
		return nil, notFound("task %s in project %s", taskID, projectID)
	}
	return task, nil
}

// Remove soft deletes tasks. Filled hours stay attached to them.
func (s *TaskService) Remove(ctx context.Context, projectID uuid.UUID, taskIDs []uuid.UUID) error {
	if len(taskIDs) == 0 {
		return invalid("at least one task id is required")
	}
	return s.deps.Store.WithTx(ctx, func(tx db.Store) error {
		for _, id := range taskIDs {
			task, err := projectTask(ctx, tx, projectID, id)
			if err != nil {
				return err
			}
			if task.IsRemoved {
				continue
			}
			task.IsRemoved = true
			if err := tx.Tasks().Update(ctx, task); err != nil {
				return err
			}
		}
		return nil
	})
}

// Overview lists active tasks with their approved hours inside the window.
func (s *TaskService) Overview(ctx context.Context, projectID uuid.UUID, start, end time.Time) ([]TaskOverview, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	if _, err := getProject(ctx, s.deps.Store, projectID); err != nil {
		return nil, err
	}

	tasks, err := s.deps.Store.Tasks().ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	approved, err := s.deps.Store.Timesheets().ListByProject(ctx, projectID, start, end, models.StatusApproved)
	if err != nil {
		return nil, err
	}

	hours := aggregation.HoursByTask(approved)
	overview := make([]TaskOverview, 0, len(tasks))
	for _, t := range tasks {
		if t.IsRemoved {
			continue
		}
		overview = append(overview, TaskOverview{
			ID:              t.ID,
			Title:           t.Title,
			IsAddedByMember: t.IsAddedByMember,
			StartDate:       t.StartDate,
			EndDate:         t.EndDate,
			TotalHours:      hours[t.ID],
		})
	}
	return overview, nil
}

// activeMember returns the user's active membership or ErrForbidden.
func activeMember(ctx context.Context, store db.Store, projectID, userID uuid.UUID) (*models.Member, error) {
	member, err := store.Members().GetByUser(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil || member.IsRemoved {
		return nil, ErrForbidden
	}
	return member, nil
}

// AddMemberTask lets an active member add a task only they can fill.
func (s *TaskService) AddMemberTask(ctx context.Context, userID, projectID uuid.UUID, req TaskRequest) (*models.Task, error) {
	var task *models.Task
	err := s.deps.Store.WithTx(ctx, func(tx db.Store) error {
		project, err := getProject(ctx, tx, projectID)
		if err != nil {
			return err
		}
		member, err := activeMember(ctx, tx, projectID, userID)
		if err != nil {
			return err
		}
		if task, err = newTask(project, req); err != nil {
			return err
		}
		task.IsAddedByMember = true
		task.MemberMappingID = &member.ID
		return tx.Tasks().Create(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	logging.Logger.Infof("Event ID: MEMBER_TASK_ADDED, Description: User %s added task %s to project %s", userID, task.ID, projectID)
	return task, nil
}

// RemoveMemberTask removes a task the member added, as long as none of its
// hours were submitted or approved.
func (s *TaskService) RemoveMemberTask(ctx context.Context, userID, projectID, taskID uuid.UUID) error {
	return s.deps.Store.WithTx(ctx, func(tx db.Store) error {
		member, err := activeMember(ctx, tx, projectID, userID)
		if err != nil {
			return err
		}
		task, err := projectTask(ctx, tx, projectID, taskID)
		if err != nil {
			return err
		}
		if !task.IsAddedByMember || task.MemberMappingID == nil || *task.MemberMappingID != member.ID {
			return ErrForbidden
		}
		if task.IsRemoved {
			return nil
		}

		locked, err := tx.Timesheets().ListByProject(ctx, projectID, task.StartDate, task.EndDate, models.StatusSubmitted, models.StatusApproved)
		if err != nil {
			return err
		}
		for _, e := range locked {
			if e.TaskID == task.ID && e.Hours > 0 {
				return invalidState("task %q has submitted or approved hours", task.Title)
			}
		}

		task.IsRemoved = true
		return tx.Tasks().Update(ctx, task)
	})
}

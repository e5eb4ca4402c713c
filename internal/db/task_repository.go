package db

import (
	"context"
	"errors"
	"fmt"

	"timesheet/internal/db/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const taskColumns = `
	t.id, t.project_id, t.title, t.is_removed, t.is_added_by_member,
	t.member_mapping_id, t.start_date, t.end_date`

type taskRepository struct {
	q querier
}

func scanTask(row pgx.Row) (*models.Task, error) {
	t := &models.Task{}
	err := row.Scan(
		&t.ID,
		&t.ProjectID,
		&t.Title,
		&t.IsRemoved,
		&t.IsAddedByMember,
		&t.MemberMappingID,
		&t.StartDate,
		&t.EndDate,
	)
	return t, err
}

func collectTasks(rows pgx.Rows, err error) ([]models.Task, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func nullableUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

// Create creates a new task in the database
func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}

	query := `
		INSERT INTO tasks (id, project_id, title, is_removed, is_added_by_member,
			member_mapping_id, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8::date)`

	_, err := r.q.Exec(ctx, query,
		task.ID.String(),
		task.ProjectID.String(),
		task.Title,
		task.IsRemoved,
		task.IsAddedByMember,
		nullableUUID(task.MemberMappingID),
		sqlDate(task.StartDate),
		sqlDate(task.EndDate),
	)
	if err != nil {
		return fmt.Errorf("error creating task: %w", err)
	}
	return nil
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task) error {
	query := `
		UPDATE tasks
		SET title = $1, is_removed = $2, start_date = $3::date, end_date = $4::date
		WHERE id = $5`

	tag, err := r.q.Exec(ctx, query,
		task.Title,
		task.IsRemoved,
		sqlDate(task.StartDate),
		sqlDate(task.EndDate),
		task.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("error updating task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task %s not found for update", task.ID)
	}
	return nil
}

// Get retrieves a task by its ID
func (r *taskRepository) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = $1`

	t, err := scanTask(r.q.QueryRow(ctx, query, id.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting task: %w", err)
	}
	return t, nil
}

// ListByProject returns every task of a project including removed ones
func (r *taskRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.project_id = $1 ORDER BY t.title, t.id`

	tasks, err := collectTasks(r.q.Query(ctx, query, projectID.String()))
	if err != nil {
		return nil, fmt.Errorf("error listing tasks: %w", err)
	}
	return tasks, nil
}

func (r *taskRepository) ListByProjects(ctx context.Context, projectIDs []uuid.UUID) ([]models.Task, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.project_id = ANY($1::uuid[]) ORDER BY t.title, t.id`

	tasks, err := collectTasks(r.q.Query(ctx, query, uuidArray(projectIDs)))
	if err != nil {
		return nil, fmt.Errorf("error listing tasks for projects: %w", err)
	}
	return tasks, nil
}

func (r *taskRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = ANY($1::uuid[])`

	tasks, err := collectTasks(r.q.Query(ctx, query, uuidArray(ids)))
	if err != nil {
		return nil, fmt.Errorf("error getting tasks: %w", err)
	}
	return tasks, nil
}

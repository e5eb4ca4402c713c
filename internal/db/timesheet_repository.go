package db

import (
	"context"
	"fmt"
	"time"

	"timesheet/internal/db/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const timesheetSelect = `
	SELECT
		ts.id, ts.task_id, ts.task_title, ts.user_id, ts.timesheet_date, ts.hours::float8,
		ts.status, ts.manager_comments, ts.submitted_on, ts.last_modified_on,
		p.id, p.title
	FROM timesheets ts
	JOIN tasks t ON t.id = ts.task_id
	JOIN projects p ON p.id = t.project_id`

const timesheetOrder = `
	ORDER BY ts.timesheet_date, ts.last_modified_on DESC`

type timesheetRepository struct {
	q querier
}

func collectTimesheets(rows pgx.Rows, err error) ([]models.Timesheet, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.Timesheet
	for rows.Next() {
		var e models.Timesheet
		var status int16
		err := rows.Scan(
			&e.ID,
			&e.TaskID,
			&e.TaskTitle,
			&e.UserID,
			&e.TimesheetDate,
			&e.Hours,
			&status,
			&e.ManagerComments,
			&e.SubmittedOn,
			&e.LastModifiedOn,
			&e.ProjectID,
			&e.ProjectTitle,
		)
		if err != nil {
			return nil, err
		}
		e.Status = models.TimesheetStatus(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Upsert stores the hours of a user for a task and date
func (r *timesheetRepository) Upsert(ctx context.Context, entry *models.Timesheet) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.LastModifiedOn.IsZero() {
		entry.LastModifiedOn = time.Now().UTC()
	}

	query := `
		INSERT INTO timesheets (id, task_id, task_title, user_id, timesheet_date, hours,
			status, manager_comments, submitted_on, last_modified_on)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, task_id, timesheet_date) DO UPDATE SET
			task_title = excluded.task_title,
			hours = excluded.hours,
			status = excluded.status,
			manager_comments = excluded.manager_comments,
			submitted_on = excluded.submitted_on,
			last_modified_on = excluded.last_modified_on
		RETURNING id`

	err := r.q.QueryRow(ctx, query,
		entry.ID.String(),
		entry.TaskID.String(),
		entry.TaskTitle,
		entry.UserID.String(),
		sqlDate(entry.TimesheetDate),
		entry.Hours,
		int16(entry.Status),
		entry.ManagerComments,
		entry.SubmittedOn,
		entry.LastModifiedOn,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("error upserting timesheet: %w", err)
	}
	return nil
}

// Update stores the workflow fields of an existing entry
func (r *timesheetRepository) Update(ctx context.Context, entry *models.Timesheet) error {
	query := `
		UPDATE timesheets
		SET hours = $1, status = $2, manager_comments = $3, submitted_on = $4, last_modified_on = $5
		WHERE id = $6`

	tag, err := r.q.Exec(ctx, query,
		entry.Hours,
		int16(entry.Status),
		entry.ManagerComments,
		entry.SubmittedOn,
		entry.LastModifiedOn,
		entry.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("error updating timesheet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("timesheet %s not found for update", entry.ID)
	}
	return nil
}

func (r *timesheetRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Timesheet, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := timesheetSelect + ` WHERE ts.id = ANY($1::uuid[])` + timesheetOrder

	entries, err := collectTimesheets(r.q.Query(ctx, query, uuidArray(ids)))
	if err != nil {
		return nil, fmt.Errorf("error getting timesheets: %w", err)
	}
	return entries, nil
}

// ListByUser retrieves a user's entries within a date range, optionally
// restricted to some statuses
func (r *timesheetRepository) ListByUser(ctx context.Context, userID uuid.UUID, start, end time.Time, statuses ...models.TimesheetStatus) ([]models.Timesheet, error) {
	query := timesheetSelect + `
		WHERE ts.user_id = $1
		AND ts.timesheet_date >= $2::date
		AND ts.timesheet_date <= $3::date
		AND (cardinality($4::int[]) = 0 OR ts.status = ANY($4::int[]))` + timesheetOrder

	entries, err := collectTimesheets(r.q.Query(ctx, query,
		userID.String(), sqlDate(start), sqlDate(end), statusArray(statuses)))
	if err != nil {
		return nil, fmt.Errorf("error listing user timesheets: %w", err)
	}
	return entries, nil
}

func (r *timesheetRepository) ListByUsers(ctx context.Context, userIDs []uuid.UUID, statuses ...models.TimesheetStatus) ([]models.Timesheet, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query := timesheetSelect + `
		WHERE ts.user_id = ANY($1::uuid[])
		AND (cardinality($2::int[]) = 0 OR ts.status = ANY($2::int[]))` + timesheetOrder

	entries, err := collectTimesheets(r.q.Query(ctx, query, uuidArray(userIDs), statusArray(statuses)))
	if err != nil {
		return nil, fmt.Errorf("error listing timesheets for users: %w", err)
	}
	return entries, nil
}

func (r *timesheetRepository) ListByProject(ctx context.Context, projectID uuid.UUID, start, end time.Time, statuses ...models.TimesheetStatus) ([]models.Timesheet, error) {
	query := timesheetSelect + `
		WHERE p.id = $1
		AND ts.timesheet_date >= $2::date
		AND ts.timesheet_date <= $3::date
		AND (cardinality($4::int[]) = 0 OR ts.status = ANY($4::int[]))` + timesheetOrder

	entries, err := collectTimesheets(r.q.Query(ctx, query,
		projectID.String(), sqlDate(start), sqlDate(end), statusArray(statuses)))
	if err != nil {
		return nil, fmt.Errorf("error listing project timesheets: %w", err)
	}
	return entries, nil
}

func (r *timesheetRepository) ListByStatus(ctx context.Context, status models.TimesheetStatus) ([]models.Timesheet, error) {
	query := timesheetSelect + ` WHERE ts.status = $1` + timesheetOrder

	entries, err := collectTimesheets(r.q.Query(ctx, query, int16(status)))
	if err != nil {
		return nil, fmt.Errorf("error listing timesheets by status: %w", err)
	}
	return entries, nil
}

func (r *timesheetRepository) ListByDate(ctx context.Context, day time.Time) ([]models.Timesheet, error) {
	query := timesheetSelect + ` WHERE ts.timesheet_date = $1::date` + timesheetOrder

	entries, err := collectTimesheets(r.q.Query(ctx, query, sqlDate(day)))
	if err != nil {
		return nil, fmt.Errorf("error listing timesheets by date: %w", err)
	}
	return entries, nil
}

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"timesheet/internal/db/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const projectColumns = `
	p.id, p.title, p.client_name, p.billable_hours::float8, p.non_billable_hours::float8,
	p.start_date, p.end_date, p.created_by, p.created_on`

type projectRepository struct {
	q querier
}

func scanProject(row pgx.Row) (*models.Project, error) {
	p := &models.Project{}
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.ClientName,
		&p.BillableHours,
		&p.NonBillableHours,
		&p.StartDate,
		&p.EndDate,
		&p.CreatedBy,
		&p.CreatedOn,
	)
	return p, err
}

func collectProjects(rows pgx.Rows, err error) ([]models.Project, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// Create inserts a new project, assigning an id when missing
func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	if project.CreatedOn.IsZero() {
		project.CreatedOn = time.Now().UTC()
	}

	query := `
		INSERT INTO projects (id, title, client_name, billable_hours, non_billable_hours,
			start_date, end_date, created_by, created_on)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7::date, $8, $9)`

	_, err := r.q.Exec(ctx, query,
		project.ID.String(),
		project.Title,
		project.ClientName,
		project.BillableHours,
		project.NonBillableHours,
		sqlDate(project.StartDate),
		sqlDate(project.EndDate),
		project.CreatedBy.String(),
		project.CreatedOn,
	)
	if err != nil {
		return fmt.Errorf("error creating project: %w", err)
	}
	return nil
}

// Update overwrites the editable project fields
func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	query := `
		UPDATE projects
		SET title = $1, client_name = $2, billable_hours = $3, non_billable_hours = $4,
			start_date = $5::date, end_date = $6::date
		WHERE id = $7`

	tag, err := r.q.Exec(ctx, query,
		project.Title,
		project.ClientName,
		project.BillableHours,
		project.NonBillableHours,
		sqlDate(project.StartDate),
		sqlDate(project.EndDate),
		project.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("error updating project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %s not found for update", project.ID)
	}
	return nil
}

// Get retrieves a project by its ID
func (r *projectRepository) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects p WHERE p.id = $1`

	p, err := scanProject(r.q.QueryRow(ctx, query, id.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting project: %w", err)
	}
	return p, nil
}

func (r *projectRepository) ListByCreator(ctx context.Context, createdBy uuid.UUID, offset, limit int) ([]models.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects p
		WHERE p.created_by = $1
		ORDER BY p.created_on DESC
		OFFSET $2 LIMIT $3`

	projects, err := collectProjects(r.q.Query(ctx, query, createdBy.String(), offset, limit))
	if err != nil {
		return nil, fmt.Errorf("error listing projects: %w", err)
	}
	return projects, nil
}

func (r *projectRepository) ListByCreatorInRange(ctx context.Context, createdBy uuid.UUID, start, end time.Time) ([]models.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects p
		WHERE p.created_by = $1
		AND p.start_date <= $3::date
		AND p.end_date >= $2::date
		ORDER BY p.start_date, p.title`

	projects, err := collectProjects(r.q.Query(ctx, query, createdBy.String(), sqlDate(start), sqlDate(end)))
	if err != nil {
		return nil, fmt.Errorf("error listing projects in range: %w", err)
	}
	return projects, nil
}

func (r *projectRepository) ListForMember(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]models.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects p
		JOIN members m ON m.project_id = p.id
		WHERE m.user_id = $1
		AND m.is_removed = FALSE
		AND p.start_date <= $3::date
		AND p.end_date >= $2::date
		ORDER BY p.start_date, p.title`

	projects, err := collectProjects(r.q.Query(ctx, query, userID.String(), sqlDate(start), sqlDate(end)))
	if err != nil {
		return nil, fmt.Errorf("error listing member projects: %w", err)
	}
	return projects, nil
}

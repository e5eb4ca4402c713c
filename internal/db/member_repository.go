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

const memberColumns = `m.id, m.project_id, m.user_id, m.is_billable, m.is_removed`

type memberRepository struct {
	q querier
}

func scanMember(row pgx.Row) (*models.Member, error) {
	m := &models.Member{}
	err := row.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.IsBillable, &m.IsRemoved)
	return m, err
}

func collectMembers(rows pgx.Rows, err error) ([]models.Member, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// Create adds a member to a project
func (r *memberRepository) Create(ctx context.Context, member *models.Member) error {
	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}

	query := `
		INSERT INTO members (id, project_id, user_id, is_billable, is_removed)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.q.Exec(ctx, query,
		member.ID.String(),
		member.ProjectID.String(),
		member.UserID.String(),
		member.IsBillable,
		member.IsRemoved,
	)
	if err != nil {
		return fmt.Errorf("error creating member: %w", err)
	}
	return nil
}

// Update stores the billable and removed flags of a member
func (r *memberRepository) Update(ctx context.Context, member *models.Member) error {
	query := `
		UPDATE members
		SET is_billable = $1, is_removed = $2
		WHERE id = $3`

	tag, err := r.q.Exec(ctx, query, member.IsBillable, member.IsRemoved, member.ID.String())
	if err != nil {
		return fmt.Errorf("error updating member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("member %s not found for update", member.ID)
	}
	return nil
}

func (r *memberRepository) Get(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members m WHERE m.id = $1`

	m, err := scanMember(r.q.QueryRow(ctx, query, id.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting member: %w", err)
	}
	return m, nil
}

// GetByUser finds the membership of a user in a project, removed or not
func (r *memberRepository) GetByUser(ctx context.Context, projectID, userID uuid.UUID) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members m WHERE m.project_id = $1 AND m.user_id = $2`

	m, err := scanMember(r.q.QueryRow(ctx, query, projectID.String(), userID.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting member by user: %w", err)
	}
	return m, nil
}

func (r *memberRepository) ListByProject(ctx context.Context, projectID uuid.UUID, includeRemoved bool) ([]models.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members m
		WHERE m.project_id = $1
		AND ($2::boolean OR m.is_removed = FALSE)
		ORDER BY m.user_id`

	members, err := collectMembers(r.q.Query(ctx, query, projectID.String(), includeRemoved))
	if err != nil {
		return nil, fmt.Errorf("error listing members: %w", err)
	}
	return members, nil
}

func (r *memberRepository) ListActiveOn(ctx context.Context, day time.Time) ([]models.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members m
		JOIN projects p ON p.id = m.project_id
		WHERE m.is_removed = FALSE
		AND p.start_date <= $1::date
		AND p.end_date >= $1::date
		ORDER BY m.user_id`

	members, err := collectMembers(r.q.Query(ctx, query, sqlDate(day)))
	if err != nil {
		return nil, fmt.Errorf("error listing active members: %w", err)
	}
	return members, nil
}

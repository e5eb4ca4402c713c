package db

import (
	"context"
	"errors"
	"time"

	"timesheet/internal/db/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Lookups by id return nil, nil when the row does not exist.

// ErrDuplicate is returned when a write violates a unique constraint.
var ErrDuplicate = errors.New("duplicate key")

type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	Update(ctx context.Context, project *models.Project) error
	Get(ctx context.Context, id uuid.UUID) (*models.Project, error)
	// ListByCreator pages through the projects a manager created, newest first.
	ListByCreator(ctx context.Context, createdBy uuid.UUID, offset, limit int) ([]models.Project, error)
	// ListByCreatorInRange returns the creator's projects overlapping [start, end].
	ListByCreatorInRange(ctx context.Context, createdBy uuid.UUID, start, end time.Time) ([]models.Project, error)
	// ListForMember returns projects overlapping [start, end] where the user
	// is an active member.
	ListForMember(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]models.Project, error)
}

type MemberRepository interface {
	Create(ctx context.Context, member *models.Member) error
	Update(ctx context.Context, member *models.Member) error
	Get(ctx context.Context, id uuid.UUID) (*models.Member, error)
	GetByUser(ctx context.Context, projectID, userID uuid.UUID) (*models.Member, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, includeRemoved bool) ([]models.Member, error)
	// ListActiveOn returns active members of every project active on day.
	ListActiveOn(ctx context.Context, day time.Time) ([]models.Member, error)
}

type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, task *models.Task) error
	Get(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Task, error)
	ListByProjects(ctx context.Context, projectIDs []uuid.UUID) ([]models.Task, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Task, error)
}

// TimesheetRepository list methods fill ProjectID and ProjectTitle and order
// rows by date, then most recently modified first.
type TimesheetRepository interface {
	// Upsert inserts the entry or replaces the one with the same user, task
	// and date, writing the resulting id back into entry.
	Upsert(ctx context.Context, entry *models.Timesheet) error
	Update(ctx context.Context, entry *models.Timesheet) error
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Timesheet, error)
	ListByUser(ctx context.Context, userID uuid.UUID, start, end time.Time, statuses ...models.TimesheetStatus) ([]models.Timesheet, error)
	ListByUsers(ctx context.Context, userIDs []uuid.UUID, statuses ...models.TimesheetStatus) ([]models.Timesheet, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, start, end time.Time, statuses ...models.TimesheetStatus) ([]models.Timesheet, error)
	ListByStatus(ctx context.Context, status models.TimesheetStatus) ([]models.Timesheet, error)
	ListByDate(ctx context.Context, day time.Time) ([]models.Timesheet, error)
}

type ConversationRepository interface {
	Upsert(ctx context.Context, conversation *models.Conversation) error
	Get(ctx context.Context, userID uuid.UUID) (*models.Conversation, error)
	GetByConversationID(ctx context.Context, conversationID string) (*models.Conversation, error)
	ListByUsers(ctx context.Context, userIDs []uuid.UUID) ([]models.Conversation, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}

const dateLayout = "2006-01-02"

// sqlDate renders the calendar date of t for comparison with DATE columns.
func sqlDate(t time.Time) string {
	return models.DateOf(t).Format(dateLayout)
}

func uuidArray(ids []uuid.UUID) pq.StringArray {
	arr := make(pq.StringArray, 0, len(ids))
	for _, id := range ids {
		arr = append(arr, id.String())
	}
	return arr
}

func statusArray(statuses []models.TimesheetStatus) pq.Int64Array {
	arr := make(pq.Int64Array, 0, len(statuses))
	for _, s := range statuses {
		arr = append(arr, int64(s))
	}
	return arr
}

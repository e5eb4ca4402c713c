// Package service composes repository and directory results into the view
// models of the REST API and enforces the timesheet workflow rules.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"timesheet/internal/cards"
	"timesheet/internal/config"
	"timesheet/internal/db"
	"timesheet/internal/db/models"
	"timesheet/internal/graph"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/text/language"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidState    = errors.New("invalid state")
	ErrForbidden       = errors.New("forbidden")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func invalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// Directory is the part of the Graph client the services use.
type Directory interface {
	GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]graph.User, error)
	GetDirectReports(ctx context.Context, managerID uuid.UUID, search string) ([]graph.User, error)
	GetManager(ctx context.Context, userID uuid.UUID) (*graph.User, error)
	GetManagers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]graph.User, error)
}

// Notifier delivers a card to a stored conversation.
type Notifier interface {
	Notify(ctx context.Context, conversation models.Conversation, card *cards.Card) error
}

// DMOpener opens the Discord DM channel used as a user's conversation.
type DMOpener interface {
	OpenDM(discordUserID string) (string, error)
}

type Deps struct {
	Store     db.Store
	Directory Directory
	Notifier  Notifier
	Cards     *cards.Renderer
	// Discord is nil when the Discord bot is not configured
	Discord     DMOpener
	LinkCodeTTL time.Duration
	Timesheet   config.Timesheet
	Locale      language.Tag
	Now         func() time.Time
}

type Services struct {
	Projects      *ProjectService
	Members       *MemberService
	Tasks         *TaskService
	Timesheets    *TimesheetService
	Users         *UserService
	Notifications *NotificationService
	Settings      *SettingsService
}

func New(deps Deps) *Services {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.LinkCodeTTL <= 0 {
		deps.LinkCodeTTL = 10 * time.Minute
	}
	notifications := &NotificationService{
		deps:  deps,
		links: cache.New(deps.LinkCodeTTL, 2*deps.LinkCodeTTL),
	}
	return &Services{
		Projects:      &ProjectService{deps: deps},
		Members:       &MemberService{deps: deps},
		Tasks:         &TaskService{deps: deps},
		Timesheets:    &TimesheetService{deps: deps, notifications: notifications},
		Users:         &UserService{deps: deps},
		Notifications: notifications,
		Settings:      &SettingsService{deps: deps},
	}
}

// today is the current calendar day in the configured timezone.
func (d Deps) today() time.Time {
	return models.DateOf(d.Now().In(d.Timesheet.Location()))
}

func validateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return invalid("start and end dates are required")
	}
	if models.DateOf(end).Before(models.DateOf(start)) {
		return invalid("end date %s is before start date %s", end.Format(DateLayout), start.Format(DateLayout))
	}
	return nil
}

// getProject loads a project or fails with ErrNotFound.
func getProject(ctx context.Context, store db.Store, id uuid.UUID) (*models.Project, error) {
	project, err := store.Projects().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, notFound("project %s", id)
	}
	return project, nil
}

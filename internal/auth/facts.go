package auth

import (
	"context"
	"fmt"

	"timesheet/internal/db"
	"timesheet/internal/graph"

	"github.com/google/uuid"
)

// Directory is the part of the Graph client the policies need.
type Directory interface {
	GetDirectReports(ctx context.Context, managerID uuid.UUID, search string) ([]graph.User, error)
	GetManager(ctx context.Context, userID uuid.UUID) (*graph.User, error)
}

type storeFacts struct {
	store     db.Store
	directory Directory
}

// NewFacts answers policy questions from the database and the directory.
func NewFacts(store db.Store, directory Directory) Facts {
	return &storeFacts{store: store, directory: directory}
}

func (f *storeFacts) IsManager(ctx context.Context, userID uuid.UUID) (bool, error) {
	reports, err := f.directory.GetDirectReports(ctx, userID, "")
	if err != nil {
		return false, fmt.Errorf("error checking direct reports: %w", err)
	}
	return len(reports) > 0, nil
}

func (f *storeFacts) IsProjectCreator(ctx context.Context, userID, projectID uuid.UUID) (bool, error) {
	project, err := f.store.Projects().Get(ctx, projectID)
	if err != nil {
		return false, err
	}
	return project != nil && project.CreatedBy == userID, nil
}

func (f *storeFacts) IsProjectMember(ctx context.Context, userID, projectID uuid.UUID) (bool, error) {
	member, err := f.store.Members().GetByUser(ctx, projectID, userID)
	if err != nil {
		return false, err
	}
	return member != nil && !member.IsRemoved, nil
}

func (f *storeFacts) IsReporteeManager(ctx context.Context, managerID, reporteeID uuid.UUID) (bool, error) {
	manager, err := f.directory.GetManager(ctx, reporteeID)
	if err != nil {
		return false, fmt.Errorf("error getting manager: %w", err)
	}
	return manager != nil && manager.ID == managerID, nil
}

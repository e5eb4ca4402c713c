package service

import (
	"context"
	"strings"

	"timesheet/internal/graph"

	"github.com/google/uuid"
)

type UserService struct {
	deps Deps
}

// Profile describes the signed-in user. Managers are users with at least
// one direct report.
func (s *UserService) Profile(ctx context.Context, userID uuid.UUID, name, upn string) (*Profile, error) {
	reports, err := s.deps.Directory.GetDirectReports(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	conversation, err := s.deps.Store.Conversations().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{
		ID:                userID,
		DisplayName:       name,
		UserPrincipalName: upn,
		IsManager:         len(reports) > 0,
		HasConversation:   conversation != nil,
	}, nil
}

// Reportees returns the direct reports of manager matching search.
func (s *UserService) Reportees(ctx context.Context, managerID uuid.UUID, search string) ([]graph.User, error) {
	reports, err := s.deps.Directory.GetDirectReports(ctx, managerID, strings.TrimSpace(search))
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []graph.User{}
	}
	return reports, nil
}

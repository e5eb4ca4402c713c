package service

import (
	"context"
	"time"

	"timesheet/internal/aggregation"
	"timesheet/internal/db"
	"timesheet/internal/db/models"

	"github.com/google/uuid"
)

type MemberService struct {
	deps Deps
}

// Add assigns users to the project. Removed memberships are reactivated
// and existing ones take the requested billable flag.
func (s *MemberService) Add(ctx context.Context, projectID uuid.UUID, reqs []MemberRequest) ([]models.Member, error) {
	if len(reqs) == 0 {
		return nil, invalid("at least one member is required")
	}
	for _, r := range reqs {
		if r.UserID == uuid.Nil {
			return nil, invalid("member user id is required")
		}
	}

	var added []models.Member
	err := s.deps.Store.WithTx(ctx, func(tx db.Store) error {
		if _, err := getProject(ctx, tx, projectID); err != nil {
			return err
		}
		for _, r := range reqs {
			member, err := tx.Members().GetByUser(ctx, projectID, r.UserID)
			if err != nil {
				return err
			}
			if member == nil {
				member = &models.Member{ProjectID: projectID, UserID: r.UserID, IsBillable: r.IsBillable}
				if err := tx.Members().Create(ctx, member); err != nil {
					return err
				}
			} else {
				member.IsBillable = r.IsBillable
				member.IsRemoved = false
				if err := tx.Members().Update(ctx, member); err != nil {
					return err
				}
			}
			added = append(added, *member)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// projectMember loads a membership that belongs to projectID.
func projectMember(ctx context.Context, store db.Store, projectID, memberID uuid.UUID) (*models.Member, error) {
	member, err := store.Members().Get(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if member == nil || member.ProjectID != projectID {
		return nil, notFound("member %s in project %s", memberID, projectID)
	}
	return member, nil
}

func (s *MemberService) Update(ctx context.Context, projectID, memberID uuid.UUID, isBillable bool) (*models.Member, error) {
	member, err := projectMember(ctx, s.deps.Store, projectID, memberID)
	if err != nil {
		return nil, err
	}
	member.IsBillable = isBillable
	if err := s.deps.Store.Members().Update(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

// Remove soft deletes the memberships and the tasks those members added.
func (s *MemberService) Remove(ctx context.Context, projectID uuid.UUID, memberIDs []uuid.UUID) error {
	if len(memberIDs) == 0 {
		return invalid("at least one member id is required")
	}

	return s.deps.Store.WithTx(ctx, func(tx db.Store) error {
		removed := make(map[uuid.UUID]bool, len(memberIDs))
		for _, id := range memberIDs {
			member, err := projectMember(ctx, tx, projectID, id)
			if err != nil {
				return err
			}
			member.IsRemoved = true
			if err := tx.Members().Update(ctx, member); err != nil {
				return err
			}
			removed[member.ID] = true
		}

		tasks, err := tx.Tasks().ListByProject(ctx, projectID)
		if err != nil {
			return err
		}
		for i := range tasks {
			task := &tasks[i]
			if task.IsRemoved || task.MemberMappingID == nil || !removed[*task.MemberMappingID] {
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

// Overview lists active members with their directory names and the hours
// approved for them inside the window.
func (s *MemberService) Overview(ctx context.Context, projectID uuid.UUID, start, end time.Time) ([]MemberOverview, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	if _, err := getProject(ctx, s.deps.Store, projectID); err != nil {
		return nil, err
	}

	members, err := s.deps.Store.Members().ListByProject(ctx, projectID, false)
	if err != nil {
		return nil, err
	}
	approved, err := s.deps.Store.Timesheets().ListByProject(ctx, projectID, start, end, models.StatusApproved)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	users, err := s.deps.Directory.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	hours := aggregation.HoursByUser(approved)
	overview := make([]MemberOverview, 0, len(members))
	for _, m := range members {
		user := users[m.UserID]
		overview = append(overview, MemberOverview{
			ID:                m.ID,
			UserID:            m.UserID,
			DisplayName:       user.DisplayName,
			UserPrincipalName: user.UserPrincipalName,
			IsBillable:        m.IsBillable,
			TotalHours:        hours[m.UserID],
		})
	}
	return overview, nil
}

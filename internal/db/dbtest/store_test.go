package dbtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"timesheet/internal/db"
	"timesheet/internal/db/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := New()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx db.Store) error {
		p := &models.Project{Title: "rolled back", StartDate: day(1), EndDate: day(31)}
		require.NoError(t, tx.Projects().Create(ctx, p))
		return boom
	})
	require.ErrorIs(t, err, boom)

	projects, err := store.Projects().ListByCreator(ctx, uuid.Nil, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestWithTxCommits(t *testing.T) {
	ctx := context.Background()
	store := New()
	var id uuid.UUID

	err := store.WithTx(ctx, func(tx db.Store) error {
		p := &models.Project{Title: "kept", StartDate: day(1), EndDate: day(31)}
		if err := tx.Projects().Create(ctx, p); err != nil {
			return err
		}
		id = p.ID
		return nil
	})
	require.NoError(t, err)

	p, err := store.Projects().Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "kept", p.Title)
}

func TestFailOnInjectsErrors(t *testing.T) {
	ctx := context.Background()
	store := New()
	boom := errors.New("db down")
	store.FailOn("Members.Create", boom)

	err := store.Members().Create(ctx, &models.Member{ProjectID: uuid.New(), UserID: uuid.New()})
	assert.ErrorIs(t, err, boom)
}

func TestTimesheetUpsertReplacesSameUserTaskDay(t *testing.T) {
	ctx := context.Background()
	store := New()

	project := &models.Project{Title: "Apollo", StartDate: day(1), EndDate: day(31)}
	require.NoError(t, store.Projects().Create(ctx, project))
	task := &models.Task{ProjectID: project.ID, Title: "Design", StartDate: day(1), EndDate: day(31)}
	require.NoError(t, store.Tasks().Create(ctx, task))

	user := uuid.New()
	first := &models.Timesheet{TaskID: task.ID, UserID: user, TimesheetDate: day(4), Hours: 2, Status: models.StatusSaved}
	require.NoError(t, store.Timesheets().Upsert(ctx, first))

	second := &models.Timesheet{TaskID: task.ID, UserID: user, TimesheetDate: day(4), Hours: 5, Status: models.StatusSaved}
	require.NoError(t, store.Timesheets().Upsert(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	entries, err := store.Timesheets().ListByUser(ctx, user, day(1), day(31))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 5.0, entries[0].Hours)
	assert.Equal(t, project.ID, entries[0].ProjectID)
	assert.Equal(t, "Apollo", entries[0].ProjectTitle)
}

func TestListForMemberSkipsRemovedMembers(t *testing.T) {
	ctx := context.Background()
	store := New()
	user := uuid.New()

	active := &models.Project{Title: "Active", StartDate: day(1), EndDate: day(10)}
	gone := &models.Project{Title: "Gone", StartDate: day(1), EndDate: day(10)}
	require.NoError(t, store.Projects().Create(ctx, active))
	require.NoError(t, store.Projects().Create(ctx, gone))
	require.NoError(t, store.Members().Create(ctx, &models.Member{ProjectID: active.ID, UserID: user}))
	require.NoError(t, store.Members().Create(ctx, &models.Member{ProjectID: gone.ID, UserID: user, IsRemoved: true}))

	projects, err := store.Projects().ListForMember(ctx, user, day(5), day(6))
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Active", projects[0].Title)
}

func TestConversationIDBelongsToOneUser(t *testing.T) {
	ctx := context.Background()
	store := New()
	bob, alice := uuid.New(), uuid.New()

	require.NoError(t, store.Conversations().Upsert(ctx, &models.Conversation{UserID: bob, ConversationID: "dm-42"}))
	require.NoError(t, store.Conversations().Upsert(ctx, &models.Conversation{UserID: bob, ConversationID: "dm-42", ServiceURL: models.DiscordServiceURL}))

	err := store.Conversations().Upsert(ctx, &models.Conversation{UserID: alice, ConversationID: "dm-42"})
	assert.ErrorIs(t, err, db.ErrDuplicate)

	for i := 0; i < 20; i++ {
		stored, err := store.Conversations().GetByConversationID(ctx, "dm-42")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, bob, stored.UserID)
	}
	stored, err := store.Conversations().Get(ctx, alice)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

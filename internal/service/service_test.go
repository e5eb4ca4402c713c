package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"timesheet/internal/cards"
	"timesheet/internal/config"
	"timesheet/internal/db/dbtest"
	"timesheet/internal/db/models"
	"timesheet/internal/graph"
	"timesheet/internal/graph/graphtest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

// Thursday
var now = time.Date(2024, time.March, 14, 12, 0, 0, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func date(d int) Date {
	return NewDate(day(d))
}

type sentCard struct {
	conversation models.Conversation
	card         *cards.Card
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentCard
	err  error
}

func (n *fakeNotifier) Notify(ctx context.Context, c models.Conversation, card *cards.Card) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentCard{c, card})
	return nil
}

type fakeDM struct {
	channelID string
	err       error
}

func (f *fakeDM) OpenDM(discordUserID string) (string, error) {
	return f.channelID, f.err
}

type fixture struct {
	ctx      context.Context
	store    *dbtest.Store
	dir      *graphtest.Directory
	notifier *fakeNotifier
	deps     Deps
	svc      *Services

	manager, alice, bob graph.User
	project             *models.Project
	design, build       models.Task
}

// newFixture creates the "Apollo" project for March 2024 with the tasks
// Design and Build, Alice as billable and Bob as non-billable member.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:      context.Background(),
		store:    dbtest.New(),
		dir:      graphtest.New(),
		notifier: &fakeNotifier{},
	}
	f.manager = f.dir.AddUser("Mona Manager")
	f.alice = f.dir.AddUser("Alice")
	f.bob = f.dir.AddUser("Bob")
	f.dir.SetManager(f.manager.ID, f.alice.ID, f.bob.ID)

	f.deps = Deps{
		Store:     f.store,
		Directory: f.dir,
		Notifier:  f.notifier,
		Cards:     cards.NewRenderer("Timesheet", time.Minute),
		Discord:   &fakeDM{channelID: "dm-42"},
		Timesheet: config.Timesheet{DailyEffortLimit: 8, WeeklyEffortLimit: 20, Timezone: "UTC"},
		Locale:    language.AmericanEnglish,
		Now:       func() time.Time { return now },
	}
	f.svc = New(f.deps)

	project, err := f.svc.Projects.Create(f.ctx, f.manager.ID, ProjectRequest{
		Title:            "Apollo",
		ClientName:       "NASA",
		BillableHours:    100,
		NonBillableHours: 20,
		StartDate:        date(1),
		EndDate:          date(31),
		Tasks:            []TaskRequest{{Title: "Design"}, {Title: "Build"}},
		Members:          []MemberRequest{{UserID: f.alice.ID, IsBillable: true}, {UserID: f.bob.ID}},
	})
	require.NoError(t, err)
	require.Len(t, project.Tasks, 2)
	f.project = project
	f.design, f.build = project.Tasks[0], project.Tasks[1]
	return f
}

// fill stores an entry directly, bypassing the workflow checks.
func (f *fixture) fill(t *testing.T, user uuid.UUID, task models.Task, d int, hours float64, status models.TimesheetStatus) models.Timesheet {
	t.Helper()
	entry := &models.Timesheet{
		TaskID:         task.ID,
		TaskTitle:      task.Title,
		UserID:         user,
		TimesheetDate:  day(d),
		Hours:          hours,
		Status:         status,
		LastModifiedOn: now,
	}
	require.NoError(t, f.store.Timesheets().Upsert(f.ctx, entry))
	return *entry
}

func (f *fixture) register(t *testing.T, user uuid.UUID) {
	t.Helper()
	require.NoError(t, f.store.Conversations().Upsert(f.ctx, &models.Conversation{
		UserID:         user,
		ConversationID: "conv-" + user.String(),
		ServiceURL:     "https://smba.trafficmanager.net/emea/",
	}))
}

var errBoom = errors.New("boom")

package service

import (
	"strings"
	"testing"
	"time"

	"timesheet/internal/cards"
	"timesheet/internal/db/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestRegisterConversationSendsWelcome(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Notifications.Register(f.ctx, models.Conversation{
		UserID:         f.alice.ID,
		ConversationID: "a:1",
		ServiceURL:     "https://smba.trafficmanager.net/emea/",
	}, "Alice", language.German)
	require.NoError(t, err)

	stored, err := f.store.Conversations().Get(f.ctx, f.alice.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "a:1", stored.ConversationID)
	assert.Equal(t, now, stored.BotInstalledOn)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, cards.KindWelcome, f.notifier.sent[0].card.Kind)
	assert.Contains(t, f.notifier.sent[0].card.Title, "Alice")
}

func TestRegisterConversationIgnoresWelcomeFailure(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errBoom

	err := f.svc.Notifications.Register(f.ctx, models.Conversation{UserID: f.alice.ID, ConversationID: "a:1"}, "Alice", language.English)
	require.NoError(t, err)

	stored, err := f.store.Conversations().Get(f.ctx, f.alice.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored)

	err = f.svc.Notifications.Register(f.ctx, models.Conversation{UserID: f.alice.ID}, "Alice", language.English)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestLinkCodeLinksDiscordOnce(t *testing.T) {
	f := newFixture(t)

	code, err := f.svc.Notifications.IssueLinkCode(f.ctx, f.bob.ID, "Bob", language.English)
	require.NoError(t, err)
	assert.Len(t, code.Code, 8)
	assert.Equal(t, now.Add(10*time.Minute), code.ExpiresOn)

	conversation, err := f.svc.Notifications.RedeemLinkCode(f.ctx, " "+strings.ToLower(code.Code)+" ", "bob-discord")
	require.NoError(t, err)
	assert.Equal(t, "dm-42", conversation.ConversationID)
	assert.True(t, conversation.IsDiscord())

	stored, err := f.store.Conversations().GetByConversationID(f.ctx, "dm-42")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, f.bob.ID, stored.UserID)
	require.Len(t, f.notifier.sent, 1)

	_, err = f.svc.Notifications.RedeemLinkCode(f.ctx, code.Code, "bob-discord")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Notifications.RedeemLinkCode(f.ctx, "NOTACODE", "bob-discord")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Notifications.RedeemLinkCode(f.ctx, " ", "bob-discord")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestLinkCodeCannotClaimAnotherUsersChannel(t *testing.T) {
	f := newFixture(t)

	bobCode, err := f.svc.Notifications.IssueLinkCode(f.ctx, f.bob.ID, "Bob", language.English)
	require.NoError(t, err)
	_, err = f.svc.Notifications.RedeemLinkCode(f.ctx, bobCode.Code, "bob-discord")
	require.NoError(t, err)

	// The fake opens dm-42 for every Discord user, so this is Bob's channel
	aliceCode, err := f.svc.Notifications.IssueLinkCode(f.ctx, f.alice.ID, "Alice", language.English)
	require.NoError(t, err)
	_, err = f.svc.Notifications.RedeemLinkCode(f.ctx, aliceCode.Code, "bob-discord")
	assert.ErrorIs(t, err, ErrInvalidState)

	for i := 0; i < 20; i++ {
		stored, err := f.store.Conversations().GetByConversationID(f.ctx, "dm-42")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, f.bob.ID, stored.UserID)
	}
	stored, err := f.store.Conversations().Get(f.ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestRegisterRefusesConversationOfAnotherUser(t *testing.T) {
	f := newFixture(t)
	conversation := models.Conversation{UserID: f.alice.ID, ConversationID: "a:1"}
	require.NoError(t, f.svc.Notifications.Register(f.ctx, conversation, "Alice", language.English))
	require.NoError(t, f.svc.Notifications.Register(f.ctx, conversation, "Alice", language.English))

	err := f.svc.Notifications.Register(f.ctx, models.Conversation{UserID: f.bob.ID, ConversationID: "a:1"}, "Bob", language.English)
	assert.ErrorIs(t, err, ErrInvalidState)

	// With the lookup returning nothing, as in a concurrent link, the
	// unique conversation id still refuses the write
	f.store.FailOn("Conversations.GetByConversationID", nil)
	err = f.svc.Notifications.Register(f.ctx, models.Conversation{UserID: f.bob.ID, ConversationID: "a:1"}, "Bob", language.English)
	assert.ErrorIs(t, err, ErrInvalidState)

	stored, err := f.store.Conversations().Get(f.ctx, f.alice.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "a:1", stored.ConversationID)
	stored, err = f.store.Conversations().Get(f.ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestLinkCodeNeedsDiscord(t *testing.T) {
	f := newFixture(t)

	deps := f.deps
	deps.Discord = nil
	_, err := New(deps).Notifications.IssueLinkCode(f.ctx, f.bob.ID, "Bob", language.English)
	assert.ErrorIs(t, err, ErrInvalidState)

	deps.Discord = &fakeDM{err: errBoom}
	svc := New(deps)
	code, err := svc.Notifications.IssueLinkCode(f.ctx, f.bob.ID, "Bob", language.English)
	require.NoError(t, err)
	_, err = svc.Notifications.RedeemLinkCode(f.ctx, code.Code, "bob-discord")
	assert.ErrorIs(t, err, errBoom)
}

func TestNotifyUserAndRemove(t *testing.T) {
	f := newFixture(t)
	card := &cards.Card{Kind: cards.KindFillReminder}

	err := f.svc.Notifications.NotifyUser(f.ctx, f.alice.ID, card)
	assert.ErrorIs(t, err, ErrNotFound)

	f.register(t, f.alice.ID)
	require.NoError(t, f.svc.Notifications.NotifyUser(f.ctx, f.alice.ID, card))
	require.Len(t, f.notifier.sent, 1)

	require.NoError(t, f.svc.Notifications.RemoveByConversationID(f.ctx, "conv-"+f.alice.ID.String()))
	require.NoError(t, f.svc.Notifications.RemoveByConversationID(f.ctx, "unknown"))
	stored, err := f.store.Conversations().Get(f.ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	f.register(t, f.alice.ID)

	profile, err := f.svc.Users.Profile(f.ctx, f.manager.ID, "Mona Manager", "mona.manager@example.com")
	require.NoError(t, err)
	assert.True(t, profile.IsManager)
	assert.False(t, profile.HasConversation)

	profile, err = f.svc.Users.Profile(f.ctx, f.alice.ID, "Alice", "alice@example.com")
	require.NoError(t, err)
	assert.False(t, profile.IsManager)
	assert.True(t, profile.HasConversation)
}

func TestReportees(t *testing.T) {
	f := newFixture(t)

	reports, err := f.svc.Users.Reportees(f.ctx, f.manager.ID, " bo ")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, f.bob.ID, reports[0].ID)

	reports, err = f.svc.Users.Reportees(f.ctx, uuid.New(), "")
	require.NoError(t, err)
	assert.NotNil(t, reports)
	assert.Empty(t, reports)
}

func TestSettings(t *testing.T) {
	f := newFixture(t)
	settings := f.svc.Settings.Get()
	assert.Equal(t, 8.0, settings.DailyEffortLimit)
	assert.Equal(t, "en-US", settings.Locale)
}

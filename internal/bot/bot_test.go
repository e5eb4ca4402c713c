package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"timesheet/internal/cards"
	"timesheet/internal/db/models"
	"timesheet/internal/service"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestReportPeriod(t *testing.T) {
	// Thursday
	now := time.Date(2024, time.March, 14, 16, 30, 0, 0, time.UTC)

	tests := []struct {
		period     string
		start, end time.Time
	}{
		{periodWeek, date(2024, time.March, 11), date(2024, time.March, 14)},
		{periodLastWeek, date(2024, time.March, 4), date(2024, time.March, 10)},
		{periodMonth, date(2024, time.March, 1), date(2024, time.March, 14)},
		{periodLastMonth, date(2024, time.February, 1), date(2024, time.February, 29)},
	}
	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			start, end, err := reportPeriod(tt.period, now)
			require.NoError(t, err)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}

	_, _, err := reportPeriod("year", now)
	assert.Error(t, err)
}

func TestReportPeriodWeekStartsMondayOnSunday(t *testing.T) {
	start, end, err := reportPeriod(periodWeek, date(2024, time.March, 17))
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.March, 11), start)
	assert.Equal(t, date(2024, time.March, 17), end)
}

func TestReportRows(t *testing.T) {
	entries := []models.Timesheet{
		{ProjectTitle: "Beta", TaskTitle: "Build", Hours: 2, Status: models.StatusSaved},
		{ProjectTitle: "Alpha", TaskTitle: "Design", Hours: 3, Status: models.StatusApproved},
		{ProjectTitle: "Alpha", TaskTitle: "Design", Hours: 4.5, Status: models.StatusApproved},
		{ProjectTitle: "Alpha", TaskTitle: "Design", Hours: 1, Status: models.StatusSubmitted},
		{ProjectTitle: "Alpha", TaskTitle: "Empty", Hours: 0, Status: models.StatusSaved},
	}

	assert.Equal(t, [][]string{
		{"Alpha", "Design", "Submitted", "1h"},
		{"Alpha", "Design", "Approved", "7.5h"},
		{"Beta", "Build", "Saved", "2h"},
	}, reportRows(entries))
}

func TestFormatTable(t *testing.T) {
	table := formatTable([]string{"A", "BB"}, [][]string{{"xyz", "1"}})
	assert.Equal(t, "```\nA    BB  \n---------\nxyz  1   \n```", table)
}

func TestLinkFailureMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: link code", service.ErrNotFound), "That code is invalid or has expired. Get a new one from the timesheet app."},
		{fmt.Errorf("%w: conversation dm-1 is linked to another user", service.ErrInvalidState), "This Discord account is already linked to another user."},
		{fmt.Errorf("%w: link code is required", service.ErrInvalidArgument), "Please enter the code shown in the timesheet app."},
		{errors.New("discord down"), "Error linking your account"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, linkFailureMessage(tt.err), tt.err.Error())
	}
}

func TestLinkCommandTakesCode(t *testing.T) {
	var link *discordgo.ApplicationCommand
	for _, c := range commands {
		if c.Name == "link" {
			link = c
		}
	}
	require.NotNil(t, link)
	require.Len(t, link.Options, 1)
	assert.Equal(t, "code", link.Options[0].Name)
	assert.True(t, link.Options[0].Required)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "a very ...", truncateString("a very long title", 10))
}

type fakeSender struct {
	channelID string
	embed     *discordgo.MessageEmbed
	err       error
}

func (f *fakeSender) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.channelID, f.embed = channelID, embed
	return &discordgo.Message{}, f.err
}

func TestDiscordNotifierSendsEmbed(t *testing.T) {
	sender := &fakeSender{}
	n := &DiscordNotifier{session: sender}
	card := &cards.Card{
		Kind:    cards.KindApproved,
		Title:   "Timesheet approved",
		Summary: "Your manager approved your timesheet.",
		Facts:   []cards.Fact{{Title: "Hours", Value: "8"}},
	}

	err := n.Notify(context.Background(), models.Conversation{ConversationID: "dm-1", ServiceURL: models.DiscordServiceURL}, card)
	require.NoError(t, err)

	assert.Equal(t, "dm-1", sender.channelID)
	assert.Equal(t, "Timesheet approved", sender.embed.Title)
	assert.Equal(t, colorApproved, sender.embed.Color)
	require.Len(t, sender.embed.Fields, 1)
	assert.Equal(t, "Hours", sender.embed.Fields[0].Name)

	sender.err = errors.New("missing access")
	assert.Error(t, n.Notify(context.Background(), models.Conversation{ConversationID: "dm-1"}, card))
}

type recordingNotifier struct {
	got []models.Conversation
}

func (r *recordingNotifier) Notify(ctx context.Context, c models.Conversation, card *cards.Card) error {
	r.got = append(r.got, c)
	return nil
}

func TestRouterDispatchesOnServiceURL(t *testing.T) {
	discord, teams := &recordingNotifier{}, &recordingNotifier{}
	router := &Router{Discord: discord, BotFramework: teams}
	card := &cards.Card{}

	require.NoError(t, router.Notify(context.Background(), models.Conversation{ConversationID: "dm", ServiceURL: models.DiscordServiceURL}, card))
	require.NoError(t, router.Notify(context.Background(), models.Conversation{ConversationID: "a:1", ServiceURL: "https://smba.trafficmanager.net/emea/"}, card))

	require.Len(t, discord.got, 1)
	assert.Equal(t, "dm", discord.got[0].ConversationID)
	require.Len(t, teams.got, 1)
	assert.Equal(t, "a:1", teams.got[0].ConversationID)

	err := (&Router{BotFramework: teams}).Notify(context.Background(), models.Conversation{ServiceURL: models.DiscordServiceURL}, card)
	assert.ErrorIs(t, err, ErrNoChannel)
}

func TestConnectorPostsAdaptiveCard(t *testing.T) {
	var gotPath string
	var got Activity
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewConnectorWithHTTPClient(srv.Client(), "app-id")
	card := &cards.Card{Summary: "summary", Content: json.RawMessage(`{"type":"AdaptiveCard"}`)}

	err := c.Notify(context.Background(), models.Conversation{ConversationID: "a:1/b", ServiceURL: srv.URL + "/"}, card)
	require.NoError(t, err)

	assert.Equal(t, "/v3/conversations/a:1%2Fb/activities", gotPath)
	assert.Equal(t, "message", got.Type)
	assert.Equal(t, "28:app-id", got.From.ID)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, adaptiveCardContentType, got.Attachments[0].ContentType)
	assert.JSONEq(t, `{"type":"AdaptiveCard"}`, string(got.Attachments[0].Content))
}

func TestConnectorReturnsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "conversation not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewConnectorWithHTTPClient(srv.Client(), "app-id")
	err := c.Notify(context.Background(), models.Conversation{ConversationID: "x", ServiceURL: srv.URL}, &cards.Card{Content: json.RawMessage(`{}`)})
	assert.ErrorContains(t, err, "404")

	err = c.Notify(context.Background(), models.Conversation{ConversationID: "x"}, &cards.Card{})
	assert.ErrorIs(t, err, ErrNoChannel)
}

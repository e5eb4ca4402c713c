package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"timesheet/internal/aggregation"
	"timesheet/internal/db/models"
	"timesheet/internal/logging"

	"github.com/bwmarrin/discordgo"
)

const (
	periodWeek      = "week"
	periodLastWeek  = "last_week"
	periodMonth     = "month"
	periodLastMonth = "last_month"
)

// reportPeriod turns a period choice into an inclusive date range relative
// to now. Weeks start on Monday.
func reportPeriod(period string, now time.Time) (time.Time, time.Time, error) {
	today := models.DateOf(now)
	monday := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
	firstOfMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	switch period {
	case periodWeek:
		return monday, today, nil
	case periodLastWeek:
		return monday.AddDate(0, 0, -7), monday.AddDate(0, 0, -1), nil
	case periodMonth:
		return firstOfMonth, today, nil
	case periodLastMonth:
		return firstOfMonth.AddDate(0, -1, 0), firstOfMonth.AddDate(0, 0, -1), nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("invalid time period %q", period)
}

// reportRows sums hours per project, task and status.
func reportRows(entries []models.Timesheet) [][]string {
	type key struct {
		project, task string
		status        models.TimesheetStatus
	}
	hours := make(map[key]float64)
	for _, e := range entries {
		if e.Hours == 0 {
			continue
		}
		hours[key{e.ProjectTitle, e.TaskTitle, e.Status}] += e.Hours
	}

	keys := make([]key, 0, len(hours))
	for k := range hours {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].project != keys[j].project {
			return keys[i].project < keys[j].project
		}
		if keys[i].task != keys[j].task {
			return keys[i].task < keys[j].task
		}
		return keys[i].status < keys[j].status
	})

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{
			truncateString(k.project, 24),
			truncateString(k.task, 24),
			k.status.String(),
			formatHours(hours[k]),
		})
	}
	return rows
}

func (b *Bot) handleTimesheet(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	period := i.ApplicationCommandData().Options[0].StringValue()
	start, end, err := reportPeriod(period, time.Now().In(b.timesheet.Location()))
	if err != nil {
		respondWithError(s, i, err.Error())
		return
	}

	// Conversations are keyed by the DM channel of the user
	channelID := i.ChannelID
	if i.GuildID != "" {
		if channelID, err = b.OpenDM(discordUserID(i)); err != nil {
			respondWithError(s, i, "Could not open a direct message channel")
			return
		}
	}

	conversation, err := b.store.Conversations().GetByConversationID(ctx, channelID)
	if err != nil {
		logging.Logger.Errorf("Event ID: BOT_CONVERSATION_LOOKUP_FAILED, Description: %v", err)
		respondWithError(s, i, "Error looking up your account")
		return
	}
	if conversation == nil {
		respondWithError(s, i, "Your Discord account is not linked yet. Run `/link` with the code from the timesheet app.")
		return
	}

	entries, err := b.store.Timesheets().ListByUser(ctx, conversation.UserID, start, end)
	if err != nil {
		logging.Logger.Errorf("Event ID: BOT_TIMESHEET_LOOKUP_FAILED, Description: %v", err)
		respondWithError(s, i, "Error retrieving your timesheet")
		return
	}

	title := fmt.Sprintf("# Timesheet %s to %s\n", start.Format("2006-01-02"), end.Format("2006-01-02"))
	rows := reportRows(entries)
	if len(rows) == 0 {
		respondWithSuccess(s, i, title+"No hours filled in this period.")
		return
	}

	var response strings.Builder
	response.WriteString(title)
	response.WriteString(formatTable([]string{"PROJECT", "TASK", "STATUS", "HOURS"}, rows))
	response.WriteString(fmt.Sprintf("\nTotal: %s", formatHours(aggregation.TotalHours(entries))))
	respondWithSuccess(s, i, response.String())
}

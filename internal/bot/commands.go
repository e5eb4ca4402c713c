package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"timesheet/internal/logging"
	"timesheet/internal/service"

	"github.com/bwmarrin/discordgo"
)

var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "timesheet",
		Description: "Show your hours per project and task",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "period",
				Description: "Time period",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "This Week", Value: periodWeek},
					{Name: "Last Week", Value: periodLastWeek},
					{Name: "This Month", Value: periodMonth},
					{Name: "Last Month", Value: periodLastMonth},
				},
			},
		},
	},
	{
		Name:        "link",
		Description: "Link your Discord account with the code from the timesheet app",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "code",
				Description: "Link code",
				Required:    true,
			},
		},
	},
	{
		Name:        "help",
		Description: "Explain what the timesheet bot does",
	},
}

const helpText = "I send you reminders to fill your timesheet and tell you when your manager approves or rejects it.\n" +
	"Get a link code in the timesheet app and run `/link` with it, then use `/timesheet` to see your hours."

func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if b.shuttingDown() {
		return
	}
	b.wg.Add(1)
	defer b.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			logging.Logger.Errorf("Event ID: BOT_COMMAND_PANIC, Description: Panic in command handler for user %s: %v\n%s",
				discordUserID(i), r, string(buf[:n]))
			respondWithError(s, i, "An internal error occurred")
		}
	}()

	commandName := i.ApplicationCommandData().Name
	logging.Logger.Infof("Event ID: BOT_COMMAND, Description: %s executed /%s", discordUserID(i), commandName)

	// Acknowledge first, the report may take a while
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		logging.Logger.Errorf("Event ID: BOT_ACK_FAILED, Description: Error acknowledging interaction: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch commandName {
	case "timesheet":
		b.handleTimesheet(ctx, s, i)
	case "link":
		b.handleLink(ctx, s, i)
	case "help":
		respondWithSuccess(s, i, helpText)
	default:
		respondWithError(s, i, fmt.Sprintf("Unknown command `/%s`", commandName))
	}
}

func (b *Bot) handleLink(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if b.linker == nil {
		respondWithError(s, i, "Linking is not available right now")
		return
	}
	code := i.ApplicationCommandData().Options[0].StringValue()

	conversation, err := b.linker.RedeemLinkCode(ctx, code, discordUserID(i))
	if err != nil {
		logging.Logger.Warnf("Event ID: BOT_LINK_FAILED, Description: Discord user %s could not link: %v", discordUserID(i), err)
		respondWithError(s, i, linkFailureMessage(err))
		return
	}
	logging.Logger.Infof("Event ID: BOT_LINKED, Description: Discord user %s linked to user %s", discordUserID(i), conversation.UserID)
	respondWithSuccess(s, i, "Your Discord account is linked. Reminders and review results will arrive in a direct message.")
}

func linkFailureMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return "That code is invalid or has expired. Get a new one from the timesheet app."
	case errors.Is(err, service.ErrInvalidState):
		return "This Discord account is already linked to another user."
	case errors.Is(err, service.ErrInvalidArgument):
		return "Please enter the code shown in the timesheet app."
	}
	return "Error linking your account"
}

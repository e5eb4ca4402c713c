package bot

import (
	"context"
	"fmt"

	"timesheet/internal/cards"
	"timesheet/internal/db/models"

	"github.com/bwmarrin/discordgo"
)

const (
	colorInfo      = 0x5865F2
	colorApproved  = 0x57F287
	colorAttention = 0xED4245
)

// embedSender is the part of a discordgo session used to deliver cards.
type embedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts cards as embeds into the DM channel of a user.
type DiscordNotifier struct {
	session embedSender
}

func NewDiscordNotifier(session *discordgo.Session) *DiscordNotifier {
	return &DiscordNotifier{session: session}
}

func (n *DiscordNotifier) Notify(ctx context.Context, conversation models.Conversation, card *cards.Card) error {
	if _, err := n.session.ChannelMessageSendEmbed(conversation.ConversationID, embedFor(card)); err != nil {
		return fmt.Errorf("error sending embed to channel %s: %w", conversation.ConversationID, err)
	}
	return nil
}

func embedFor(card *cards.Card) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       card.Title,
		Description: card.Summary,
		Color:       colorInfo,
	}
	switch card.Kind {
	case cards.KindApproved:
		embed.Color = colorApproved
	case cards.KindRejected, cards.KindFillReminder:
		embed.Color = colorAttention
	}
	for _, f := range card.Facts {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Title,
			Value:  f.Value,
			Inline: len(f.Value) < 40,
		})
	}
	return embed
}

package bot

import (
	"context"
	"errors"
	"fmt"

	"timesheet/internal/cards"
	"timesheet/internal/db/models"
)

var ErrNoChannel = errors.New("no channel configured for conversation")

// Notifier delivers a card to the conversation of a user.
type Notifier interface {
	Notify(ctx context.Context, conversation models.Conversation, card *cards.Card) error
}

// Router picks the channel from the conversation's service url: Discord DM
// channels are marked with models.DiscordServiceURL, anything else is a Bot
// Framework service url.
type Router struct {
	Discord      Notifier
	BotFramework Notifier
}

func (r *Router) Notify(ctx context.Context, conversation models.Conversation, card *cards.Card) error {
	target := r.BotFramework
	if conversation.IsDiscord() {
		target = r.Discord
	}
	if target == nil {
		return fmt.Errorf("%w: %s", ErrNoChannel, conversation.ServiceURL)
	}
	return target.Notify(ctx, conversation, card)
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// DiscordServiceURL marks conversations that live in a Discord DM channel.
const DiscordServiceURL = "discord"

// Conversation is the per-user reference used for proactive notifications.
type Conversation struct {
	UserID         uuid.UUID `db:"user_id" json:"userId"`
	ConversationID string    `db:"conversation_id" json:"conversationId"`
	ServiceURL     string    `db:"service_url" json:"serviceUrl"`
	BotInstalledOn time.Time `db:"bot_installed_on" json:"botInstalledOn"`
}

func (c *Conversation) IsDiscord() bool {
	return c.ServiceURL == DiscordServiceURL
}

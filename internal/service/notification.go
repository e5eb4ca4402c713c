package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"timesheet/internal/cards"
	"timesheet/internal/db"
	"timesheet/internal/db/models"
	"timesheet/internal/logging"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/text/language"
)

type NotificationService struct {
	deps Deps

	mu    sync.Mutex
	links *cache.Cache
}

// LinkCode is handed to a signed-in user who then redeems it with the
// Discord /link command, proving they own the Discord account.
type LinkCode struct {
	Code      string    `json:"code"`
	ExpiresOn time.Time `json:"expiresOn"`
}

type pendingLink struct {
	userID   uuid.UUID
	userName string
	lang     language.Tag
}

// No 0/O or 1/I. 256 is a multiple of the alphabet size so every byte maps
// evenly.
const (
	linkCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	linkCodeLength   = 8
)

func newLinkCode() (string, error) {
	b := make([]byte, linkCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error generating link code: %w", err)
	}
	for i := range b {
		b[i] = linkCodeAlphabet[int(b[i])%len(linkCodeAlphabet)]
	}
	return string(b), nil
}

// Register stores the conversation of a user and greets them on it. A
// conversation that is already linked to another user is refused with
// ErrInvalidState. A failing greeting does not undo the registration.
func (s *NotificationService) Register(ctx context.Context, conversation models.Conversation, userName string, lang language.Tag) error {
	if conversation.UserID == uuid.Nil || conversation.ConversationID == "" {
		return invalid("user id and conversation id are required")
	}
	if conversation.BotInstalledOn.IsZero() {
		conversation.BotInstalledOn = s.deps.Now().UTC()
	}

	existing, err := s.deps.Store.Conversations().GetByConversationID(ctx, conversation.ConversationID)
	if err != nil {
		return err
	}
	if existing != nil && existing.UserID != conversation.UserID {
		logging.Logger.Warnf("Event ID: CONVERSATION_CLAIM_REJECTED, Description: User %s tried to take conversation %s of user %s",
			conversation.UserID, conversation.ConversationID, existing.UserID)
		return invalidState("conversation %s is linked to another user", conversation.ConversationID)
	}
	if err := s.deps.Store.Conversations().Upsert(ctx, &conversation); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return invalidState("conversation %s is linked to another user", conversation.ConversationID)
		}
		return err
	}
	logging.Logger.Infof("Event ID: CONVERSATION_REGISTERED, Description: User %s registered conversation %s", conversation.UserID, conversation.ConversationID)

	if s.deps.Cards == nil || s.deps.Notifier == nil {
		return nil
	}
	card, err := s.deps.Cards.Welcome(lang, userName)
	if err != nil {
		logging.Logger.Errorf("Event ID: CARD_RENDER_FAILED, Description: %v", err)
		return nil
	}
	if err := s.deps.Notifier.Notify(ctx, conversation, card); err != nil {
		logging.Logger.Errorf("Event ID: WELCOME_FAILED, Description: Error greeting %s: %v", conversation.UserID, err)
	}
	return nil
}

// IssueLinkCode creates a one-time code the user redeems from Discord to
// link their account.
func (s *NotificationService) IssueLinkCode(ctx context.Context, userID uuid.UUID, userName string, lang language.Tag) (*LinkCode, error) {
	if userID == uuid.Nil {
		return nil, invalid("user id is required")
	}
	if s.deps.Discord == nil {
		return nil, invalidState("discord is not configured")
	}

	link := pendingLink{userID: userID, userName: userName, lang: lang}
	for attempt := 0; attempt < 3; attempt++ {
		code, err := newLinkCode()
		if err != nil {
			return nil, err
		}
		if err := s.links.Add(code, link, s.deps.LinkCodeTTL); err != nil {
			continue
		}
		logging.Logger.Infof("Event ID: LINK_CODE_ISSUED, Description: Issued a Discord link code for user %s", userID)
		return &LinkCode{Code: code, ExpiresOn: s.deps.Now().UTC().Add(s.deps.LinkCodeTTL)}, nil
	}
	return nil, errors.New("could not allocate a unique link code")
}

// RedeemLinkCode opens a DM channel with the Discord user that presented the
// code and registers it as the conversation of the user the code was issued
// to. Codes work once. Unknown or expired codes return ErrNotFound.
func (s *NotificationService) RedeemLinkCode(ctx context.Context, code, discordUserID string) (*models.Conversation, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	discordUserID = strings.TrimSpace(discordUserID)
	if code == "" || discordUserID == "" {
		return nil, invalid("link code and discord user id are required")
	}
	if s.deps.Discord == nil {
		return nil, invalidState("discord is not configured")
	}

	s.mu.Lock()
	v, ok := s.links.Get(code)
	if ok {
		s.links.Delete(code)
	}
	s.mu.Unlock()
	if !ok {
		return nil, notFound("link code")
	}
	link := v.(pendingLink)

	channelID, err := s.deps.Discord.OpenDM(discordUserID)
	if err != nil {
		return nil, err
	}
	conversation := models.Conversation{
		UserID:         link.userID,
		ConversationID: channelID,
		ServiceURL:     models.DiscordServiceURL,
		BotInstalledOn: s.deps.Now().UTC(),
	}
	if err := s.Register(ctx, conversation, link.userName, link.lang); err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (s *NotificationService) Remove(ctx context.Context, userID uuid.UUID) error {
	return s.deps.Store.Conversations().Delete(ctx, userID)
}

// RemoveByConversationID drops the conversation when the bot was uninstalled
// from it. Unknown conversations are ignored.
func (s *NotificationService) RemoveByConversationID(ctx context.Context, conversationID string) error {
	conversation, err := s.deps.Store.Conversations().GetByConversationID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conversation == nil {
		return nil
	}
	logging.Logger.Infof("Event ID: CONVERSATION_REMOVED, Description: User %s removed the bot", conversation.UserID)
	return s.Remove(ctx, conversation.UserID)
}

// NotifyUser sends card to the stored conversation of the user. It returns
// ErrNotFound when the user never registered one.
func (s *NotificationService) NotifyUser(ctx context.Context, userID uuid.UUID, card *cards.Card) error {
	conversation, err := s.deps.Store.Conversations().Get(ctx, userID)
	if err != nil {
		return err
	}
	if conversation == nil {
		return notFound("conversation of user %s", userID)
	}
	if s.deps.Notifier == nil {
		return invalidState("no notifier configured")
	}
	return s.deps.Notifier.Notify(ctx, *conversation, card)
}

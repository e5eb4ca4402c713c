package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"timesheet/internal/db/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const conversationColumns = `c.user_id, c.conversation_id, c.service_url, c.bot_installed_on`

type conversationRepository struct {
	q querier
}

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := row.Scan(&c.UserID, &c.ConversationID, &c.ServiceURL, &c.BotInstalledOn)
	return c, err
}

// Upsert records where proactive messages for a user are delivered. A
// conversation id belongs to at most one user, taking one that is linked to
// someone else returns ErrDuplicate.
func (r *conversationRepository) Upsert(ctx context.Context, conversation *models.Conversation) error {
	if conversation.BotInstalledOn.IsZero() {
		conversation.BotInstalledOn = time.Now().UTC()
	}

	query := `
		INSERT INTO conversations (user_id, conversation_id, service_url, bot_installed_on)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			service_url = excluded.service_url,
			bot_installed_on = excluded.bot_installed_on`

	_, err := r.q.Exec(ctx, query,
		conversation.UserID.String(),
		conversation.ConversationID,
		conversation.ServiceURL,
		conversation.BotInstalledOn,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: conversation %s is linked to another user", ErrDuplicate, conversation.ConversationID)
	}
	if err != nil {
		return fmt.Errorf("error upserting conversation: %w", err)
	}
	return nil
}

func (r *conversationRepository) Get(ctx context.Context, userID uuid.UUID) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations c WHERE c.user_id = $1`

	c, err := scanConversation(r.q.QueryRow(ctx, query, userID.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting conversation: %w", err)
	}
	return c, nil
}

func (r *conversationRepository) GetByConversationID(ctx context.Context, conversationID string) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations c WHERE c.conversation_id = $1 LIMIT 1`

	c, err := scanConversation(r.q.QueryRow(ctx, query, conversationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting conversation by id: %w", err)
	}
	return c, nil
}

func (r *conversationRepository) ListByUsers(ctx context.Context, userIDs []uuid.UUID) ([]models.Conversation, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + conversationColumns + ` FROM conversations c WHERE c.user_id = ANY($1::uuid[])`

	rows, err := r.q.Query(ctx, query, uuidArray(userIDs))
	if err != nil {
		return nil, fmt.Errorf("error listing conversations: %w", err)
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning conversation: %w", err)
		}
		conversations = append(conversations, *c)
	}
	return conversations, rows.Err()
}

func (r *conversationRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	_, err := r.q.Exec(ctx, `DELETE FROM conversations WHERE user_id = $1`, userID.String())
	if err != nil {
		return fmt.Errorf("error deleting conversation: %w", err)
	}
	return nil
}

package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"timesheet/internal/cards"
	"timesheet/internal/config"
	"timesheet/internal/db/models"
	"timesheet/internal/logging"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2/clientcredentials"
)

const adaptiveCardContentType = "application/vnd.microsoft.card.adaptive"

// ChannelAccount identifies a user or bot in a Bot Framework activity.
type ChannelAccount struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	AADObjectID string `json:"aadObjectId,omitempty"`
}

type ConversationAccount struct {
	ID               string `json:"id"`
	ConversationType string `json:"conversationType,omitempty"`
	TenantID         string `json:"tenantId,omitempty"`
}

type Attachment struct {
	ContentType string          `json:"contentType"`
	Content     json.RawMessage `json:"content"`
}

// Activity is the subset of the Bot Framework activity schema the service
// sends and receives.
type Activity struct {
	Type         string              `json:"type"`
	ID           string              `json:"id,omitempty"`
	ServiceURL   string              `json:"serviceUrl,omitempty"`
	ChannelID    string              `json:"channelId,omitempty"`
	From         ChannelAccount      `json:"from"`
	Recipient    ChannelAccount      `json:"recipient"`
	Conversation ConversationAccount `json:"conversation"`
	MembersAdded []ChannelAccount    `json:"membersAdded,omitempty"`
	Action       string              `json:"action,omitempty"`
	Summary      string              `json:"summary,omitempty"`
	Text         string              `json:"text,omitempty"`
	Attachments  []Attachment        `json:"attachments,omitempty"`
}

// Connector sends proactive messages through the Bot Framework connector
// service of each conversation.
type Connector struct {
	http    *http.Client
	appID   string
	breaker *gobreaker.CircuitBreaker
}

func NewConnector(ctx context.Context, cfg config.Bot) *Connector {
	creds := clientcredentials.Config{
		ClientID:     cfg.AppID,
		ClientSecret: cfg.AppPassword,
		TokenURL:     cfg.TokenURL,
		Scopes:       []string{cfg.Scope},
	}
	return NewConnectorWithHTTPClient(creds.Client(ctx), cfg.AppID)
}

func NewConnectorWithHTTPClient(httpClient *http.Client, appID string) *Connector {
	return &Connector{
		http:  httpClient,
		appID: appID,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "botframework-cb",
			MaxRequests: 1,
			Timeout:     5 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Logger.Infof("Event ID: CIRCUIT_BREAKER_STATE_CHANGE, Description: Circuit Breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
			},
		}),
	}
}

func (c *Connector) Notify(ctx context.Context, conversation models.Conversation, card *cards.Card) error {
	if conversation.ServiceURL == "" {
		return fmt.Errorf("%w: empty service url", ErrNoChannel)
	}

	activity := Activity{
		Type:         "message",
		From:         ChannelAccount{ID: "28:" + c.appID},
		Conversation: ConversationAccount{ID: conversation.ConversationID},
		Summary:      card.Summary,
		Attachments:  []Attachment{{ContentType: adaptiveCardContentType, Content: card.Content}},
	}
	body, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("error encoding activity: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v3/conversations/%s/activities",
		strings.TrimRight(conversation.ServiceURL, "/"), url.PathEscape(conversation.ConversationID))

	_, err = c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("connector returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("error sending activity to conversation %s: %w", conversation.ConversationID, err)
	}
	return nil
}

// Package graph is a small Microsoft Graph client covering the directory
// lookups the timesheet service needs.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"timesheet/internal/config"
	"timesheet/internal/logging"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultScope = "https://graph.microsoft.com/.default"
	userSelect   = "id,displayName,userPrincipalName,mail,jobTitle"
)

type User struct {
	ID                uuid.UUID `json:"id"`
	DisplayName       string    `json:"displayName"`
	UserPrincipalName string    `json:"userPrincipalName"`
	Mail              string    `json:"mail,omitempty"`
	JobTitle          string    `json:"jobTitle,omitempty"`
}

// APIError is a non-2xx answer from Graph.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph request failed with status %d: %s %s", e.StatusCode, e.Code, e.Message)
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type Client struct {
	http      *http.Client
	baseURL   string
	batchSize int
	breaker   *gobreaker.CircuitBreaker
}

// New creates a client authenticated with the app's client credentials.
func New(ctx context.Context, cfg config.Graph) *Client {
	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       []string{defaultScope},
	}
	return NewWithHTTPClient(creds.Client(ctx), cfg.BaseURL, cfg.BatchSize)
}

// NewWithHTTPClient uses httpClient as is. It must add authentication itself.
func NewWithHTTPClient(httpClient *http.Client, baseURL string, batchSize int) *Client {
	if batchSize < 1 || batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}
	return &Client{
		http:      httpClient,
		baseURL:   strings.TrimRight(baseURL, "/"),
		batchSize: batchSize,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "graph-cb",
			MaxRequests: 1,
			Timeout:     5 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 3
			},
			// Client errors say nothing about the health of Graph
			IsSuccessful: func(err error) bool {
				var apiErr *APIError
				if errors.As(err, &apiErr) {
					return apiErr.StatusCode < http.StatusInternalServerError
				}
				return err == nil
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Logger.Infof("Event ID: CIRCUIT_BREAKER_STATE_CHANGE, Description: Circuit Breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
			},
		}),
	}
}

// do sends a request through the circuit breaker and decodes a JSON answer
// into out when out is not nil.
func (c *Client) do(ctx context.Context, method, rawURL string, body any, out any) error {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = c.baseURL + rawURL
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("error encoding graph request: %w", err)
		}
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 {
			return nil, parseError(resp.StatusCode, data)
		}
		if out != nil && len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return nil, fmt.Errorf("error decoding graph response: %w", err)
			}
		}
		return nil, nil
	})
	return err
}

func parseError(status int, data []byte) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(data, &envelope)
	return &APIError{StatusCode: status, Code: envelope.Error.Code, Message: envelope.Error.Message}
}

// GetManager returns the manager of a user, or nil when none is set.
func (c *Client) GetManager(ctx context.Context, userID uuid.UUID) (*User, error) {
	var manager User
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%s/manager?$select=%s", userID, userSelect), nil, &manager)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting manager of %s: %w", userID, err)
	}
	return &manager, nil
}

// GetDirectReports lists the reportees of a manager, following paging links.
// A non-empty search keeps users whose display name or principal name
// contains it, ignoring case.
func (c *Client) GetDirectReports(ctx context.Context, managerID uuid.UUID, search string) ([]User, error) {
	next := fmt.Sprintf("/users/%s/directReports?$select=%s&$top=999", managerID, userSelect)
	search = strings.ToLower(strings.TrimSpace(search))

	var reports []User
	for next != "" {
		var page struct {
			Value    []User `json:"value"`
			NextLink string `json:"@odata.nextLink"`
		}
		if err := c.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, fmt.Errorf("error listing direct reports of %s: %w", managerID, err)
		}
		for _, u := range page.Value {
			if search == "" ||
				strings.Contains(strings.ToLower(u.DisplayName), search) ||
				strings.Contains(strings.ToLower(u.UserPrincipalName), search) {
				reports = append(reports, u)
			}
		}
		next = page.NextLink
	}
	return reports, nil
}

// GetUsers resolves users by id. Unknown ids are left out of the result.
func (c *Client) GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]User, error) {
	paths := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		paths[id] = fmt.Sprintf("/users/%s?$select=%s", id, url.QueryEscape(userSelect))
	}
	users, err := c.batchGet(ctx, paths)
	if err != nil {
		return nil, fmt.Errorf("error getting users: %w", err)
	}
	return users, nil
}

// GetManagers maps each user id to its manager. Users without a manager are
// left out of the result.
func (c *Client) GetManagers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]User, error) {
	paths := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		paths[id] = fmt.Sprintf("/users/%s/manager?$select=%s", id, url.QueryEscape(userSelect))
	}
	managers, err := c.batchGet(ctx, paths)
	if err != nil {
		return nil, fmt.Errorf("error getting managers: %w", err)
	}
	return managers, nil
}

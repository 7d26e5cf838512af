// Package api provides the HTTP client for the scavenger-hunt backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/EV081/mysto-mobile-sub000/internal/platform/errors"
	"github.com/EV081/mysto-mobile-sub000/internal/platform/timeouts"
	"github.com/EV081/mysto-mobile-sub000/internal/quest"
)

// maxErrorBody caps how much of an error response body is read for
// classification.
const maxErrorBody = 16 << 10

// Backend is the boundary to the scavenger-hunt server. The server decides
// proximity, object-count sufficiency, and quest uniqueness; the client only
// interprets its responses.
type Backend interface {
	// StartQuest asks the server to create today's quest for the museum at
	// the user's position. Failures carry a structured code (see the errors
	// package) so the initiator can choose between recovery and settling.
	StartQuest(ctx context.Context, museumID int64, loc quest.Location) (int64, error)

	// GetQuest reads the museum's currently active quest. It fails with
	// CodeQuestNotFound when no quest is active today, which callers treat
	// as a normal state.
	GetQuest(ctx context.Context, museumID int64) (quest.Quest, error)
}

// Client calls the backend's HTTP/JSON quest endpoints.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithAuthToken attaches a bearer token to every request.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = token
	}
}

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	client := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeouts.BackendRequest},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type startQuestRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type startQuestResponse struct {
	GoalID int64 `json:"goal_id"`
}

type questResponse struct {
	ID            int64         `json:"id"`
	Found         []int64       `json:"found"`
	TargetObjects []objectEntry `json:"target_objects"`
}

type objectEntry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// StartQuest implements Backend.
func (c *Client) StartQuest(ctx context.Context, museumID int64, loc quest.Location) (int64, error) {
	body, err := json.Marshal(startQuestRequest{Latitude: loc.Latitude, Longitude: loc.Longitude})
	if err != nil {
		return 0, fmt.Errorf("encode start quest request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/museums/%d/quests", c.baseURL, museumID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build start quest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeTransientFailure, "start quest request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return 0, classifyStartFailure(resp)
	}

	var decoded startQuestResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, apperrors.Wrap(apperrors.CodeTransientFailure, "decode start quest response", err)
	}
	if decoded.GoalID <= 0 {
		return 0, apperrors.New(apperrors.CodeTransientFailure, "start quest response carried no goal id")
	}
	return decoded.GoalID, nil
}

// GetQuest implements Backend.
func (c *Client) GetQuest(ctx context.Context, museumID int64) (quest.Quest, error) {
	url := fmt.Sprintf("%s/v1/museums/%d/quests/today", c.baseURL, museumID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return quest.Quest{}, fmt.Errorf("build get quest request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return quest.Quest{}, apperrors.Wrap(apperrors.CodeTransientFailure, "get quest request failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return quest.Quest{}, apperrors.New(apperrors.CodeQuestNotFound, "no active quest today")
	case http.StatusUnauthorized:
		return quest.Quest{}, apperrors.New(apperrors.CodeUnauthorized, "not authenticated")
	default:
		return quest.Quest{}, apperrors.New(apperrors.CodeTransientFailure,
			fmt.Sprintf("get quest returned %s", resp.Status))
	}

	var decoded questResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return quest.Quest{}, apperrors.Wrap(apperrors.CodeTransientFailure, "decode get quest response", err)
	}
	if decoded.ID <= 0 {
		return quest.Quest{}, apperrors.New(apperrors.CodeTransientFailure, "get quest response carried no id")
	}

	result := quest.Quest{
		ID:       decoded.ID,
		MuseumID: museumID,
		Found:    decoded.Found,
	}
	for _, obj := range decoded.TargetObjects {
		result.TargetObjects = append(result.TargetObjects, quest.CulturalObjectRef{ID: obj.ID, Name: obj.Name})
	}
	return result, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

func readErrorBody(resp *http.Response) errorBody {
	var decoded errorBody
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return decoded
	}
	_ = json.Unmarshal(raw, &decoded)
	if decoded.Message == "" {
		decoded.Message = string(raw)
	}
	return decoded
}

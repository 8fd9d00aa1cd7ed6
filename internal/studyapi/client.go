package studyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vidswitch/backend/internal/models"
	"github.com/vidswitch/backend/internal/telemetry"
)

var (
	// ErrNotFound maps the server's 404 for sessions and participants.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyCompleted maps the server's 409 on duplicate completion.
	ErrAlreadyCompleted = errors.New("session already completed")
	// ErrUnauthorized maps 401/403.
	ErrUnauthorized = errors.New("unauthorized")
)

// Client is the participant-side HTTP client for the study server. It holds
// the bearer token from Login and implements telemetry.Sender.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
	logger  *zap.Logger
}

// envelope is the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// New creates a client for the given server base URL.
func New(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// Token returns the current bearer token, empty before Login.
func (c *Client) Token() string { return c.token }

// Login exchanges a participant label for a bearer token and the participant
// record, storing the token for subsequent calls.
func (c *Client) Login(ctx context.Context, participantID string) (*models.Participant, error) {
	var out struct {
		Token       string              `json:"token"`
		Participant *models.Participant `json:"participant"`
	}
	body := map[string]string{"participant_id": participantID}
	if err := c.do(ctx, http.MethodPost, "/participants/login", body, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return out.Participant, nil
}

// Me returns the authenticated participant.
func (c *Client) Me(ctx context.Context) (*models.Participant, error) {
	var out struct {
		Participant *models.Participant `json:"participant"`
	}
	if err := c.do(ctx, http.MethodGet, "/participants/me", nil, &out); err != nil {
		return nil, err
	}
	return out.Participant, nil
}

// Videos returns the item catalog.
func (c *Client) Videos(ctx context.Context) ([]models.Video, error) {
	var out struct {
		Videos []models.Video `json:"videos"`
	}
	if err := c.do(ctx, http.MethodGet, "/videos", nil, &out); err != nil {
		return nil, err
	}
	return out.Videos, nil
}

// StartSession opens a viewing session for a video.
func (c *Client) StartSession(ctx context.Context, videoID string) (*models.Session, error) {
	var out struct {
		Session *models.Session `json:"session"`
	}
	body := map[string]string{"video_id": videoID}
	if err := c.do(ctx, http.MethodPost, "/sessions/start", body, &out); err != nil {
		return nil, err
	}
	return out.Session, nil
}

// CompleteSession closes a session. Returns ErrAlreadyCompleted if it was
// closed before and ErrNotFound for missing or foreign sessions.
func (c *Client) CompleteSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var out struct {
		Session *models.Session `json:"session"`
	}
	if err := c.do(ctx, http.MethodPut, "/sessions/"+sessionID+"/complete", nil, &out); err != nil {
		return nil, err
	}
	return out.Session, nil
}

// Send delivers a telemetry batch via POST /events/track-batch. The server
// accepts or rejects the batch as a whole.
func (c *Client) Send(ctx context.Context, batch []telemetry.Event) error {
	if len(batch) == 0 {
		return nil
	}
	body := map[string]interface{}{"events": batch}
	return c.do(ctx, http.MethodPost, "/events/track-batch", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: decode response (status %d): %w", method, path, resp.StatusCode, err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s %s: %s: %w", method, path, env.Error, ErrUnauthorized)
	case http.StatusNotFound:
		return fmt.Errorf("%s %s: %s: %w", method, path, env.Error, ErrNotFound)
	case http.StatusConflict:
		return fmt.Errorf("%s %s: %s: %w", method, path, env.Error, ErrAlreadyCompleted)
	default:
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, env.Error)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: decode data: %w", method, path, err)
		}
	}
	return nil
}

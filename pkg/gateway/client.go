package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/concord-chat/concord/pkg/domain"
)

// Client is the HTTP side of the homeserver API: authentication and history
// backfill. The live stream is Socket's job.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a homeserver API client. token may be empty before login.
func New(homeserver, token string) *Client {
	return &Client{
		baseURL: homeserver,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetToken installs the session token obtained from Login.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Credentials is a successful authentication result.
type Credentials struct {
	UserID domain.UserID `json:"user_id"`
	Token  string        `json:"token"`
}

// loginRequest is the payload for login and register.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	DeviceID string `json:"device_id,omitempty"`
}

// Login authenticates and returns session credentials.
func (c *Client) Login(ctx context.Context, username, password, deviceID string) (*Credentials, error) {
	var creds Credentials
	req := loginRequest{Username: username, Password: password, DeviceID: deviceID}
	if err := c.post(ctx, "/api/login", req, &creds); err != nil {
		return nil, fmt.Errorf("gateway.Login: %w", err)
	}
	return &creds, nil
}

// Register creates an account and returns session credentials.
func (c *Client) Register(ctx context.Context, username, password, deviceID string) (*Credentials, error) {
	var creds Credentials
	req := loginRequest{Username: username, Password: password, DeviceID: deviceID}
	if err := c.post(ctx, "/api/register", req, &creds); err != nil {
		return nil, fmt.Errorf("gateway.Register: %w", err)
	}
	return &creds, nil
}

// Logout invalidates the session token server-side.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodPost, "/api/logout", nil, nil); err != nil {
		return fmt.Errorf("gateway.Logout: %w", err)
	}
	return nil
}

// MemberInfo is one room member in the initial room list.
type MemberInfo struct {
	ID       domain.UserID `json:"id"`
	Name     string        `json:"name"`
	JoinedAt time.Time     `json:"joined_at"`
}

// RoomInfo is one room in the initial room list.
type RoomInfo struct {
	ID      domain.RoomID `json:"id"`
	Name    string        `json:"name"`
	Members []MemberInfo  `json:"members"`
}

// Rooms returns the rooms the user is a member of.
func (c *Client) Rooms(ctx context.Context) ([]RoomInfo, error) {
	var rooms []RoomInfo
	if err := c.get(ctx, "/api/rooms", &rooms); err != nil {
		return nil, fmt.Errorf("gateway.Rooms: %w", err)
	}
	return rooms, nil
}

// Messages returns up to limit message frames from a room, newest first,
// optionally older than before. Frames feed the same reconcile path as live
// events, so refetching overlapping history is harmless.
func (c *Client) Messages(ctx context.Context, room domain.RoomID, before time.Time, limit int) ([]Frame, error) {
	params := url.Values{}
	if !before.IsZero() {
		params.Set("before", before.Format(time.RFC3339Nano))
	}
	params.Set("limit", strconv.Itoa(limit))

	var frames []Frame
	path := "/api/rooms/" + url.PathEscape(string(room)) + "/messages?" + params.Encode()
	if err := c.get(ctx, path, &frames); err != nil {
		return nil, fmt.Errorf("gateway.Messages: %w", err)
	}
	return frames, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Error}
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

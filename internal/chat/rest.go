package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// RestGateway implements Gateway against the platform's JSON HTTP API
type RestGateway struct {
	baseURL    string
	token      string
	guildID    string
	httpClient *http.Client
}

// Option configures the gateway
type Option func(*RestGateway)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(g *RestGateway) {
		g.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(g *RestGateway) {
		g.httpClient.Timeout = timeout
	}
}

// NewRestGateway creates a new REST gateway client
func NewRestGateway(baseURL, token, guildID string, opts ...Option) *RestGateway {
	g := &RestGateway{
		baseURL: baseURL,
		token:   token,
		guildID: guildID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// CreateChannel creates a text channel under a parent category
func (g *RestGateway) CreateChannel(ctx context.Context, name, parentID string) (*Channel, error) {
	req := map[string]string{
		"name":      name,
		"parent_id": parentID,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := g.doRequest(ctx, "POST", fmt.Sprintf("/api/guilds/%s/channels", g.guildID), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var channel Channel
	if err := json.Unmarshal(resp, &channel); err != nil {
		return nil, fmt.Errorf("failed to unmarshal channel: %w", err)
	}

	return &channel, nil
}

// GetChannel retrieves a channel by ID
func (g *RestGateway) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	resp, err := g.doRequest(ctx, "GET", fmt.Sprintf("/api/channels/%s", url.PathEscape(channelID)), nil)
	if err != nil {
		return nil, err
	}

	var channel Channel
	if err := json.Unmarshal(resp, &channel); err != nil {
		return nil, fmt.Errorf("failed to unmarshal channel: %w", err)
	}

	return &channel, nil
}

// DeleteChannel removes a channel
func (g *RestGateway) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := g.doRequest(ctx, "DELETE", fmt.Sprintf("/api/channels/%s", url.PathEscape(channelID)), nil)
	return err
}

// RenameChannel changes a channel's display name
func (g *RestGateway) RenameChannel(ctx context.Context, channelID, name string) error {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	_, err = g.doRequest(ctx, "PATCH", fmt.Sprintf("/api/channels/%s", url.PathEscape(channelID)), bytes.NewReader(body))
	return err
}

// SetRoleView installs a view-permission override for a role
func (g *RestGateway) SetRoleView(ctx context.Context, channelID, roleID string, allow bool) error {
	return g.setOverride(ctx, channelID, "role", roleID, allow)
}

// SetMemberView installs a view-permission override for a member
func (g *RestGateway) SetMemberView(ctx context.Context, channelID, userID string, allow bool) error {
	return g.setOverride(ctx, channelID, "member", userID, allow)
}

func (g *RestGateway) setOverride(ctx context.Context, channelID, kind, targetID string, allow bool) error {
	body, err := json.Marshal(map[string]bool{"view": allow})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	path := fmt.Sprintf("/api/channels/%s/permissions/%s/%s",
		url.PathEscape(channelID), kind, url.PathEscape(targetID))

	_, err = g.doRequest(ctx, "PUT", path, bytes.NewReader(body))
	return err
}

// SendMessage posts a message, with optional interactive controls, to a channel
func (g *RestGateway) SendMessage(ctx context.Context, channelID string, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	_, err = g.doRequest(ctx, "POST", fmt.Sprintf("/api/channels/%s/messages", url.PathEscape(channelID)), bytes.NewReader(body))
	return err
}

// GetMember resolves a guild member by user ID
func (g *RestGateway) GetMember(ctx context.Context, userID string) (*Member, error) {
	resp, err := g.doRequest(ctx, "GET", fmt.Sprintf("/api/guilds/%s/members/%s", g.guildID, url.PathEscape(userID)), nil)
	if err != nil {
		return nil, err
	}

	var member Member
	if err := json.Unmarshal(resp, &member); err != nil {
		return nil, fmt.Errorf("failed to unmarshal member: %w", err)
	}

	return &member, nil
}

// AddRole grants a role to a member
func (g *RestGateway) AddRole(ctx context.Context, userID, roleID string) error {
	path := fmt.Sprintf("/api/guilds/%s/members/%s/roles/%s",
		g.guildID, url.PathEscape(userID), url.PathEscape(roleID))

	_, err := g.doRequest(ctx, "PUT", path, nil)
	return err
}

// RemoveRole revokes a role from a member
func (g *RestGateway) RemoveRole(ctx context.Context, userID, roleID string) error {
	path := fmt.Sprintf("/api/guilds/%s/members/%s/roles/%s",
		g.guildID, url.PathEscape(userID), url.PathEscape(roleID))

	_, err := g.doRequest(ctx, "DELETE", path, nil)
	return err
}

// MembersWithRole returns the user IDs currently holding a role
func (g *RestGateway) MembersWithRole(ctx context.Context, roleID string) ([]string, error) {
	path := fmt.Sprintf("/api/guilds/%s/roles/%s/members", g.guildID, url.PathEscape(roleID))

	resp, err := g.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Members []string `json:"members"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal members: %w", err)
	}

	return result.Members, nil
}

// doRequest performs an HTTP request
func (g *RestGateway) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+g.token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

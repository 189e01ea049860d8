package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agent-bounty-market/utils"
)

// HTTPDoer is the subset of *http.Client the identity client needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RemoteProfile is the agent profile returned by the remote identity service.
type RemoteProfile struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   *string   `json:"description,omitempty"`
	AvatarURL     *string   `json:"avatar_url,omitempty"`
	FollowerCount int64     `json:"follower_count"`
	Karma         int64     `json:"karma"`
	IsClaimed     bool      `json:"is_claimed"`
	IsVerified    bool      `json:"is_verified"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UpstreamStatusError is returned when the identity service answers with a non-2xx status.
type UpstreamStatusError struct {
	Status int
	Body   string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("identity service returned %d: %s", e.Status, e.Body)
}

// IdentityClient talks to the remote identity service.
type IdentityClient struct {
	BaseURL      string
	ServiceToken string // used for the profile change feed, not for who-am-i
	Client       HTTPDoer
}

func NewIdentityClient(baseURL, serviceToken string) *IdentityClient {
	return &IdentityClient{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		ServiceToken: serviceToken,
		Client:       utils.HTTPClient,
	}
}

// WhoAmI resolves a remote agent token to its profile.
func (c *IdentityClient) WhoAmI(ctx context.Context, token string) (*RemoteProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/v1/agents/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	var out struct {
		Agent RemoteProfile `json:"agent"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if out.Agent.ID == "" {
		return nil, fmt.Errorf("identity service returned a profile without id")
	}
	return &out.Agent, nil
}

// ChangedProfiles returns every remote profile updated after since.
func (c *IdentityClient) ChangedProfiles(ctx context.Context, since time.Time) ([]RemoteProfile, error) {
	u, err := url.Parse(c.BaseURL + "/api/v1/agents/changes")
	if err != nil {
		return nil, fmt.Errorf("invalid identity service URL '%s': %w", c.BaseURL, err)
	}
	q := u.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Service-Token", c.ServiceToken)

	var out struct {
		Agents []RemoteProfile `json:"agents"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Agents, nil
}

func (c *IdentityClient) do(req *http.Request, out any) error {
	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("identity service request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Printf("[IDENTITY] %s %s returned %d", req.Method, req.URL.Path, resp.StatusCode)
		return &UpstreamStatusError{Status: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode identity service response: %w", err)
	}
	return nil
}

package helix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	tokenURL   = "https://id.twitch.tv/oauth2/token"
	apiBaseURL = "https://api.twitch.tv/helix"
)

// Client is a minimal Twitch Helix client using an app access token.
// It covers the three calls this backend needs: the liveness poll,
// login-to-id resolution and clip creation.
type Client struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu             sync.Mutex
	token          string
	tokenExpiresAt time.Time
}

func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// 30s запас до истечения токена
	if c.token != "" && time.Now().Before(c.tokenExpiresAt.Add(-30*time.Second)) {
		return c.token, nil
	}

	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK || payload.AccessToken == "" || payload.ExpiresIn <= 0 {
		return "", fmt.Errorf("helix: token request failed: http %d", resp.StatusCode)
	}

	c.token = payload.AccessToken
	c.tokenExpiresAt = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return c.token, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Токен протух раньше времени; сбрасываем, вызывающий цикл повторит.
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		return fmt.Errorf("helix: unauthorized")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("helix: GET %s: http %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// IsLive reports whether the channel is currently broadcasting.
func (c *Client) IsLive(ctx context.Context, userLogin string) (bool, error) {
	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	params := url.Values{"user_login": {userLogin}}
	if err := c.get(ctx, "/streams", params, &payload); err != nil {
		return false, err
	}
	return len(payload.Data) > 0, nil
}

// UserID resolves a login to a Twitch user id. Empty string when unknown.
func (c *Client) UserID(ctx context.Context, userLogin string) (string, error) {
	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	params := url.Values{"login": {userLogin}}
	if err := c.get(ctx, "/users", params, &payload); err != nil {
		return "", err
	}
	if len(payload.Data) == 0 {
		return "", nil
	}
	return payload.Data[0].ID, nil
}

// CreateClip creates a clip on the channel and returns the clip id.
func (c *Client) CreateClip(ctx context.Context, userLogin string) (string, error) {
	broadcasterID, err := c.UserID(ctx, userLogin)
	if err != nil {
		return "", err
	}
	if broadcasterID == "" {
		return "", fmt.Errorf("helix: unknown login %q", userLogin)
	}

	token, err := c.ensureToken(ctx)
	if err != nil {
		return "", err
	}

	params := url.Values{"broadcaster_id": {broadcasterID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBaseURL+"/clips?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("helix: POST /clips: http %d", resp.StatusCode)
	}

	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if len(payload.Data) == 0 {
		return "", fmt.Errorf("helix: clip response empty")
	}
	return payload.Data[0].ID, nil
}

package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// LoginResult is the data payload of a successful login.
type LoginResult struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user"`
}

// Login exchanges operator credentials for a token. No bearer is sent.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	start := time.Now()
	var out LoginResult
	body := map[string]string{"username": username, "password": password}
	err := c.do(ctx, http.MethodPost, "auth/login", nil, body, &out, false)
	requestsTotal.WithLabelValues(http.MethodPost, "auth", outcomeLabel(err)).Inc()
	requestLatency.WithLabelValues(http.MethodPost, "auth").Observe(time.Since(start).Seconds())
	if err != nil {
		return LoginResult{}, err
	}
	if out.Token == "" || len(out.User) == 0 {
		return LoginResult{}, &Error{Kind: KindDecode, Message: "login response missing token or user"}
	}
	return out, nil
}

// Logout revokes token on the server. It does not touch the session; a
// 401 here means the token is already dead.
func (c *Client) Logout(ctx context.Context, token string) error {
	start := time.Now()
	err := c.logout(ctx, token)
	requestsTotal.WithLabelValues(http.MethodPost, "auth", outcomeLabel(err)).Inc()
	requestLatency.WithLabelValues(http.MethodPost, "auth").Observe(time.Since(start).Seconds())
	return err
}

func (c *Client) logout(ctx context.Context, token string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "auth/logout", nil, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))

	if resp.StatusCode >= 300 {
		return &Error{Kind: KindServer, Message: fmt.Sprintf("logout failed with status %d", resp.StatusCode), Status: resp.StatusCode}
	}
	return nil
}

// Revoke adapts Logout to a detached revoker.
func (c *Client) Revoke(ctx context.Context, token string) error { return c.Logout(ctx, token) }

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds every remote call.
const DefaultTimeout = 30 * time.Second

const maxBody = 4 << 20

// Session is the slice of the session context the client needs.
type Session interface {
	Token() string
	Epoch() uint64
	ExpireAuth(ctx context.Context, issuedEpoch uint64) bool
}

// Client calls the studio REST API. Every response is a JSON envelope.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	session Session
}

// New creates a client. A zero timeout uses DefaultTimeout.
func New(baseURL string, timeout time.Duration, session Session) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		HTTP: &http.Client{
			Timeout: timeout,
		},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Do performs one authenticated call against /api/<path> and decodes the
// envelope data into out (when out is non-nil). A nil error is the Ok
// outcome; anything else is an *Error. A 401 expires the session once and
// is never retried.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	start := time.Now()
	collection := collectionOf(path)
	err := c.do(ctx, method, path, query, body, out, true)
	requestsTotal.WithLabelValues(method, collection, outcomeLabel(err)).Inc()
	requestLatency.WithLabelValues(method, collection).Observe(time.Since(start).Seconds())
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, authed bool) error {
	var epoch uint64
	var token string
	if authed && c.session != nil {
		epoch = c.session.Epoch()
		token = c.session.Token()
	}

	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return transportError(err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode == http.StatusUnauthorized {
		if authed && c.session != nil {
			c.session.ExpireAuth(ctx, epoch)
		}
		msg := msgExpired
		if decodeErr == nil && env.Error != "" {
			msg = env.Error
		}
		return &Error{Kind: KindAuthExpired, Message: msg, Status: resp.StatusCode}
	}

	if resp.StatusCode == http.StatusNotFound {
		msg := msgNotFound
		if decodeErr == nil && env.Error != "" {
			msg = env.Error
		}
		return &Error{Kind: KindNotFound, Message: msg, Status: resp.StatusCode}
	}

	if resp.StatusCode >= 300 {
		msg := fmt.Sprintf("request failed with status %d", resp.StatusCode)
		if decodeErr == nil && env.Error != "" {
			msg = env.Error
		}
		return &Error{Kind: KindServer, Message: msg, Status: resp.StatusCode}
	}
	if decodeErr != nil {
		return &Error{Kind: KindDecode, Message: "malformed response from server", Status: resp.StatusCode}
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = msgGeneric
		}
		return &Error{Kind: KindServer, Message: msg, Status: resp.StatusCode}
	}

	if out == nil || len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &Error{Kind: KindDecode, Message: "malformed response from server", Status: resp.StatusCode}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.BaseURL + "/api/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: KindTimeout, Message: msgTimeout}
	}
	return &Error{Kind: KindNetwork, Message: msgNetwork}
}

func collectionOf(path string) string {
	path = strings.TrimLeft(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}

package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/chat-app/domain/apperr"
	"github.com/example/chat-app/domain/message"
	"github.com/example/chat-app/domain/user"
)

const sessionCookie = "jwt"

// HTTPClient talks to the chat REST API. The session cookie set by
// Signup or Login is kept in a cookie jar and sent on every request.
type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client
}

// NewHTTPClient creates a client for the server at baseURL, for example
// "http://localhost:3000".
func NewHTTPClient(baseURL string) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &HTTPClient{
		baseURL: u,
		http: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Signup creates an account and stores its session.
func (c *HTTPClient) Signup(ctx context.Context, email, fullName, password string) (*user.Profile, error) {
	var profile user.Profile
	body := map[string]string{"email": email, "fullName": fullName, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", body, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Login opens a session.
func (c *HTTPClient) Login(ctx context.Context, email, password string) (*user.Profile, error) {
	var profile user.Profile
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Logout clears the session.
func (c *HTTPClient) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Check returns the session user.
func (c *HTTPClient) Check(ctx context.Context) (*user.Profile, error) {
	var profile user.Profile
	if err := c.do(ctx, http.MethodGet, "/api/auth/check", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListUsers returns every user except the caller.
func (c *HTTPClient) ListUsers(ctx context.Context) ([]user.Profile, error) {
	var users []user.Profile
	if err := c.do(ctx, http.MethodGet, "/api/messages/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListMessages returns one page of the conversation with peerID.
func (c *HTTPClient) ListMessages(ctx context.Context, peerID string, page message.Page) ([]message.Message, error) {
	q := url.Values{}
	if page.Limit > 0 {
		q.Set("limit", strconv.Itoa(page.Limit))
	}
	if !page.Before.IsZero() {
		q.Set("before", page.Before.UTC().Format(time.RFC3339Nano))
	}
	path := "/api/messages/" + url.PathEscape(peerID)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var msgs []message.Message
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage sends text and an optional image data URL to peerID.
func (c *HTTPClient) SendMessage(ctx context.Context, peerID, text, image string) (*message.Message, error) {
	var msg message.Message
	body := map[string]string{"message": text, "image": image}
	if err := c.do(ctx, http.MethodPost, "/api/messages/send/"+url.PathEscape(peerID), body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SessionToken returns the session token held in the cookie jar.
func (c *HTTPClient) SessionToken() string {
	for _, cookie := range c.http.Jar.Cookies(c.baseURL) {
		if cookie.Name == sessionCookie {
			return cookie.Value
		}
	}
	return ""
}

// WebSocketURL returns the push endpoint for userID.
func (c *HTTPClient) WebSocketURL(userID string) string {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"userId": {userID}}.Encode()
	return u.String()
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Internal(method+" "+path+" failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Internal("failed to read response", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Internal("failed to decode response", err)
	}
	return nil
}

// decodeError turns an error body back into a classified error.
func decodeError(status int, data []byte) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(data, &body)

	kind := apperr.Kind(body.Error)
	switch kind {
	case apperr.KindValidation, apperr.KindAuthentication, apperr.KindAuthorization, apperr.KindNotFound, apperr.KindInternal:
	default:
		kind = kindForStatus(status)
	}
	if body.Message == "" {
		body.Message = http.StatusText(status)
	}
	return apperr.New(kind, body.Message)
}

func kindForStatus(status int) apperr.Kind {
	switch status {
	case http.StatusBadRequest:
		return apperr.KindValidation
	case http.StatusUnauthorized:
		return apperr.KindAuthorization
	case http.StatusNotFound:
		return apperr.KindNotFound
	default:
		return apperr.KindInternal
	}
}

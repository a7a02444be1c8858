// Package fbclient publishes captions to a Facebook Page via the Graph API.
package fbclient

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

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"inspiro/internal/config"
	"inspiro/internal/logging"
	"inspiro/internal/model"
)

// Client is a page-token client for the Graph API. Each publish is a single
// attempt; failures are reported, never retried.
type Client struct {
	baseURL    string
	version    string
	pageID     string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

func New(cfg config.FacebookConfig) *Client {
	base := &http.Client{Timeout: cfg.Timeout}
	if base.Timeout <= 0 {
		base.Timeout = 15 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		version: cfg.APIVersion,
		pageID:  strings.TrimSpace(cfg.PageID),
		token:   strings.TrimSpace(cfg.AccessToken),
		limiter: newLimiter(cfg.RPS, cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "facebook",
			Timeout: time.Minute,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			// An error answer means facebook is reachable.
			IsSuccessful: func(err error) bool {
				var apiErr *APIError
				return err == nil || errors.As(err, &apiErr)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warn("breaker_state_change", map[string]any{"name": name, "from": from.String(), "to": to.String()})
			},
		}),
	}
	if c.baseURL == "" {
		c.baseURL = "https://graph.facebook.com"
	}
	if c.version == "" {
		c.version = "v18.0"
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	c.httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token, TokenType: "Bearer"}))
	c.httpClient.Timeout = base.Timeout
	return c
}

// Configured reports whether a page id and token are present at all.
func (c *Client) Configured() bool { return c.pageID != "" && c.token != "" }

// ValidateCredentials runs the offline sanity checks on page id and token.
func (c *Client) ValidateCredentials() error {
	switch {
	case c.token == "":
		return fmt.Errorf("%w: missing page access token", ErrCredentials)
	case c.pageID == "":
		return fmt.Errorf("%w: missing page id", ErrCredentials)
	case !isDigits(c.pageID):
		return fmt.Errorf("%w: page id must be numeric", ErrCredentials)
	case len(c.token) < 50:
		return fmt.Errorf("%w: token looks too short", ErrCredentials)
	}
	return nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Publish posts message to the page feed and returns the new post id.
func (c *Client) Publish(ctx context.Context, message string) (string, error) {
	if err := c.ValidateCredentials(); err != nil {
		return "", err
	}
	message, err := model.ValidateCaption(message)
	if err != nil {
		return "", err
	}
	form := url.Values{"message": {message}}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, c.pageID+"/feed", form, &out); err != nil {
		logging.Warn("facebook_publish_failed", map[string]any{"page_id": c.pageID, "error": err.Error()})
		return "", err
	}
	if out.ID == "" {
		out.ID = "unknown"
	}
	logging.Info("facebook_published", map[string]any{"page_id": c.pageID, "post_id": out.ID})
	return out.ID, nil
}

// ValidateToken asks the Graph API who the token belongs to.
func (c *Client) ValidateToken(ctx context.Context) error {
	if c.token == "" {
		return fmt.Errorf("%w: missing page access token", ErrCredentials)
	}
	var me struct {
		ID string `json:"id"`
	}
	return c.call(ctx, http.MethodGet, "me", nil, &me)
}

// PostURL is the public link for a published post id.
func PostURL(id string) string { return "https://facebook.com/" + id }

func (c *Client) call(ctx context.Context, method, path string, form url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return classifyNetwork(err)
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, method, path, form, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &NetworkError{Kind: KindConnection, Err: err}
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	u := fmt.Sprintf("%s/%s/%s", c.baseURL, c.version, path)
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyNetwork(err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyNetwork(err)
	}
	if resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(raw, out); err != nil {
			return invalidResponse(resp.StatusCode, raw)
		}
		return nil
	}
	var e struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &e); err != nil {
		return invalidResponse(resp.StatusCode, raw)
	}
	code := e.Error.Code
	if code == 0 {
		code = resp.StatusCode
	}
	msg := e.Error.Message
	if msg == "" {
		msg = "Unknown error from Facebook"
	}
	typ := e.Error.Type
	if typ == "" {
		typ = "Unknown"
	}
	return &APIError{Status: resp.StatusCode, Code: code, Type: typ, Message: msg, Explanation: Explain(code, msg, typ)}
}

func invalidResponse(status int, raw []byte) *APIError {
	return &APIError{
		Status:      status,
		Code:        502,
		Type:        "InvalidResponse",
		Message:     string(bytes.TrimSpace(raw)),
		Explanation: "Invalid response from Facebook (not JSON)",
	}
}

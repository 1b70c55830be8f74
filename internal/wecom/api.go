package wecom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dkravets/keychat/internal/logging"
)

// DefaultAPIBase is the WeCom REST endpoint prefix.
const DefaultAPIBase = "https://qyapi.weixin.qq.com/cgi-bin"

// tokenSafetyMargin forces a refresh slightly before the platform expiry
// so an in-flight request never rides an expiring token.
const tokenSafetyMargin = 60 * time.Second

// TokenCache holds the single process-wide access token. Refresh is lazy
// on read; racing refreshes are harmless (worst case one redundant fetch).
type TokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenCache() *TokenCache {
	return &TokenCache{}
}

// Get returns the cached token, or "" when absent/expired.
func (c *TokenCache) Get(now time.Time) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || now.After(c.expiresAt.Add(-tokenSafetyMargin)) {
		return ""
	}
	return c.token
}

// Set stores a freshly fetched token with its absolute expiry.
func (c *TokenCache) Set(token string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.expiresAt = expiresAt
}

// Invalidate drops the cached token; the next call refetches.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
}

// APIError is a non-zero errcode answer from the platform.
type APIError struct {
	Code    int    `json:"errcode"`
	Message string `json:"errmsg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wecom api error %d: %s", e.Code, e.Message)
}

// ClientConfig carries the credentials of the WeCom application.
type ClientConfig struct {
	APIBase    string
	CorpID     string
	CorpSecret string
	AgentID    int64
}

// Client talks to the WeCom REST API: token fetch, message push, menu
// management. Safe for concurrent use.
type Client struct {
	http   *http.Client
	cfg    ClientConfig
	tokens *TokenCache
	log    logging.Logger
	now    func() time.Time
}

func NewClient(cfg ClientConfig, tokens *TokenCache, logger logging.Logger) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	return &Client{
		http:   &http.Client{Timeout: 10 * time.Second},
		cfg:    cfg,
		tokens: tokens,
		log:    logger,
		now:    time.Now,
	}
}

type accessTokenResponse struct {
	APIError
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// AccessToken returns a valid access token, refreshing lazily when the
// cached one is absent or within the safety margin of its expiry.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if token := c.tokens.Get(c.now()); token != "" {
		return token, nil
	}

	u := fmt.Sprintf("%s/gettoken?corpid=%s&corpsecret=%s",
		c.cfg.APIBase, url.QueryEscape(c.cfg.CorpID), url.QueryEscape(c.cfg.CorpSecret))

	var resp accessTokenResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return "", fmt.Errorf("failed to fetch access token: %w", err)
	}
	if resp.Code != 0 || resp.AccessToken == "" {
		return "", fmt.Errorf("failed to fetch access token: %w", &resp.APIError)
	}

	expiresIn := resp.ExpiresIn
	if expiresIn == 0 {
		expiresIn = 7200
	}
	c.tokens.Set(resp.AccessToken, c.now().Add(time.Duration(expiresIn)*time.Second))
	c.log.Debug(ctx, "access token refreshed", "expires_in", expiresIn)

	return resp.AccessToken, nil
}

// SendText pushes a plain text message to a user via the application.
func (c *Client) SendText(ctx context.Context, toUser, content string) error {
	return c.send(ctx, map[string]any{
		"touser":  toUser,
		"msgtype": "text",
		"agentid": c.cfg.AgentID,
		"text":    map[string]string{"content": content},
	})
}

// SendMarkdown pushes a markdown message (WeCom supports a small subset).
func (c *Client) SendMarkdown(ctx context.Context, toUser, content string) error {
	return c.send(ctx, map[string]any{
		"touser":   toUser,
		"msgtype":  "markdown",
		"agentid":  c.cfg.AgentID,
		"markdown": map[string]string{"content": content},
	})
}

func (c *Client) send(ctx context.Context, body map[string]any) error {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}

	u := fmt.Sprintf("%s/message/send?access_token=%s", c.cfg.APIBase, url.QueryEscape(token))

	var resp APIError
	if err := c.postJSON(ctx, u, body, &resp); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	if resp.Code != 0 {
		return fmt.Errorf("failed to send message: %w", &resp)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, u string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Package steamauth is the client of the session helper service that
// produces Steam Guard codes and drops active sessions.
package steamauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// GuardCode запрашивает одноразовый код входа для аккаунта.
func (c *Client) GuardCode(ctx context.Context, login string) (string, error) {
	var resp struct {
		Code string `json:"code"`
	}
	if err := c.post(ctx, "/guard", map[string]string{"login": login}, &resp); err != nil {
		return "", err
	}
	if resp.Code == "" {
		return "", fmt.Errorf("helper вернул пустой код для %s", login)
	}
	return resp.Code, nil
}

// KickSessions сбрасывает все активные сессии аккаунта.
func (c *Client) KickSessions(ctx context.Context, login, password string) error {
	body := map[string]string{"login": login, "password": password}
	return c.post(ctx, "/kick", body, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, msg)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPClient - клиент площадки поверх её JSON API.
type HTTPClient struct {
	baseURL   string
	token     string
	userAgent string
	http      *http.Client
	log       *slog.Logger

	pollInterval time.Duration
	cursor       string
}

func NewHTTPClient(baseURL, token, userAgent string, pollInterval time.Duration, log *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:      baseURL,
		token:        token,
		userAgent:    userAgent,
		http:         &http.Client{Timeout: 30 * time.Second},
		log:          log,
		pollInterval: pollInterval,
	}
}

func (c *HTTPClient) SendMessage(ctx context.Context, chatID, text string) error {
	body := map[string]string{"chat_id": chatID, "text": text}
	return c.do(ctx, http.MethodPost, "/api/chat/send", body, nil)
}

func (c *HTTPClient) Refund(ctx context.Context, orderID string) error {
	return c.do(ctx, http.MethodPost, "/api/orders/"+url.PathEscape(orderID)+"/refund", nil, nil)
}

func (c *HTTPClient) MyLots(ctx context.Context, categoryID int64) ([]Lot, error) {
	var lots []Lot
	path := "/api/lots?category=" + strconv.FormatInt(categoryID, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &lots); err != nil {
		return nil, err
	}
	return lots, nil
}

func (c *HTTPClient) LotFields(ctx context.Context, lotID int64) (*LotFields, error) {
	var fields LotFields
	path := "/api/lots/" + strconv.FormatInt(lotID, 10) + "/fields"
	if err := c.do(ctx, http.MethodGet, path, nil, &fields); err != nil {
		return nil, err
	}
	return &fields, nil
}

func (c *HTTPClient) SaveLot(ctx context.Context, fields *LotFields) error {
	return c.do(ctx, http.MethodPost, "/api/lots/save", fields, nil)
}

func (c *HTTPClient) DeleteLot(ctx context.Context, lotID int64) error {
	return c.do(ctx, http.MethodDelete, "/api/lots/"+strconv.FormatInt(lotID, 10), nil, nil)
}

// Listen опрашивает /api/events и выдаёт события в канал. Ошибки опроса
// логируются, цикл продолжается со следующего тика.
func (c *HTTPClient) Listen(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				events, err := c.pollEvents(ctx)
				if err != nil {
					c.log.Error("опрос событий площадки", "error", err)
					continue
				}
				for _, ev := range events {
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out
}

func (c *HTTPClient) pollEvents(ctx context.Context) ([]Event, error) {
	var resp struct {
		Cursor string  `json:"cursor"`
		Events []Event `json:"events"`
	}
	path := "/api/events"
	if c.cursor != "" {
		path += "?cursor=" + url.QueryEscape(c.cursor)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	c.cursor = resp.Cursor
	return resp.Events, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Op: method + " " + path, StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Package marketplace describes the boundary with the external trading
// platform: lot management, chat, refunds and the inbound event stream.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Lot - видимое на площадке предложение.
type Lot struct {
	ID          int64   `json:"id"`
	CategoryID  int64   `json:"category_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Active      bool    `json:"active"`
	PublicLink  string  `json:"public_link"`
}

// LotFields - полный набор полей лота для создания/редактирования.
// LotID == 0 создаёт новый лот.
type LotFields struct {
	LotID      int64             `json:"lot_id"`
	CategoryID int64             `json:"category_id"`
	TitleRU    string            `json:"title_ru"`
	TitleEN    string            `json:"title_en"`
	DescRU     string            `json:"desc_ru"`
	DescEN     string            `json:"desc_en"`
	Price      float64           `json:"price"`
	Active     bool              `json:"active"`
	Amount     int               `json:"amount"`
	Attrs      map[string]string `json:"attrs,omitempty"`
}

// Order - оплаченный заказ.
type Order struct {
	ID          string  `json:"id"`
	BuyerID     int64   `json:"buyer_id"`
	ChatID      string  `json:"chat_id"`
	CategoryID  int64   `json:"category_id"`
	Description string  `json:"description"`
	Hours       int     `json:"hours"`
	Price       float64 `json:"price"`
}

// Message - входящее сообщение чата.
type Message struct {
	ChatID   string `json:"chat_id"`
	AuthorID int64  `json:"author_id"`
	Author   string `json:"author"`
	Text     string `json:"text"`
}

type EventType string

const (
	EventNewOrder    EventType = "new_order"
	EventNewMessage  EventType = "new_message"
	EventNewFeedback EventType = "new_feedback"
)

type Event struct {
	Type    EventType `json:"type"`
	Order   *Order    `json:"order,omitempty"`
	Message *Message  `json:"message,omitempty"`
}

// Client - исходящие вызовы к площадке. Все реализации должны нести
// таймауты соединения/ответа.
type Client interface {
	SendMessage(ctx context.Context, chatID, text string) error
	Refund(ctx context.Context, orderID string) error
	MyLots(ctx context.Context, categoryID int64) ([]Lot, error)
	LotFields(ctx context.Context, lotID int64) (*LotFields, error)
	SaveLot(ctx context.Context, fields *LotFields) error
	DeleteLot(ctx context.Context, lotID int64) error
	// Listen отдаёт поток событий до отмены контекста.
	Listen(ctx context.Context) <-chan Event
}

// APIError - ошибка вызова площадки с HTTP-статусом.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsRateLimited - классификация 429-класса: такие ошибки ретраит
// обёртка retry, остальные уходят вызывающему сразу.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

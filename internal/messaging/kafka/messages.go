package kafka

import (
	"encoding/json"
	"time"
)

// Topics для Kafka
const (
	// TopicCatalogValidate — запросы к сервису каталога на проверку товаров.
	TopicCatalogValidate = "catalog.product.validate"
	// TopicCatalogReplies — ответы каталога для этого сервиса.
	TopicCatalogReplies = "orders.catalog.replies"
	// TopicOrderEvents — события жизненного цикла заказов.
	TopicOrderEvents = "orders.order.events"
)

// Kafka headers для request/reply
const (
	HeaderCorrelationID = "correlation-id"
	HeaderReplyTo       = "reply-to"
)

// Коды ошибок в ответе каталога
const (
	ErrorCodeProductNotFound = "product_not_found"
)

// ValidateRequest — тело запроса на валидацию товаров.
type ValidateRequest struct {
	ProductIDs []string `json:"product_ids"`
}

// ProductPayload — товар в ответе каталога.
type ProductPayload struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceMinor int64  `json:"price_minor"`
}

// ReplyError — ошибка в ответе каталога.
type ReplyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidateReply — тело ответа каталога.
type ValidateReply struct {
	Products []ProductPayload `json:"products"`
	Error    *ReplyError      `json:"error,omitempty"`
}

// OrderEventEnvelope — конверт события заказа, публикуемого из outbox.
type OrderEventEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vcherkasov/orders-ms/internal/domain"
)

// CatalogClientConfig настраивает request/reply клиент каталога.
type CatalogClientConfig struct {
	Brokers      []string
	RequestTopic string
	ReplyTopic   string
	// GroupID должен быть уникальным на инстанс: каждый инстанс читает
	// весь reply-топик и отбрасывает чужие корреляции.
	GroupID string
	Timeout time.Duration
}

func (c *CatalogClientConfig) applyDefaults() {
	if c.RequestTopic == "" {
		c.RequestTopic = TopicCatalogValidate
	}
	if c.ReplyTopic == "" {
		c.ReplyTopic = TopicCatalogReplies
	}
	if c.GroupID == "" {
		c.GroupID = "orders-catalog-" + uuid.NewString()
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
}

// CatalogClient реализует ProductCatalog поверх Kafka request/reply:
// запрос уходит в топик каталога с correlation-id и reply-to заголовками,
// ответ приходит в собственный reply-топик сервиса.
type CatalogClient struct {
	producer *Producer
	group    sarama.ConsumerGroup
	cfg      CatalogClientConfig
	logger   *log.Entry

	mu      sync.Mutex
	pending map[string]chan ValidateReply

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCatalogClient создаёт клиент и запускает чтение reply-топика.
func NewCatalogClient(producer *Producer, cfg CatalogClientConfig) (*CatalogClient, error) {
	cfg.applyDefaults()

	groupConfig := sarama.NewConfig()
	groupConfig.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	groupConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	groupConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, groupConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog reply consumer: %w", err)
	}

	client := &CatalogClient{
		producer: producer,
		group:    group,
		cfg:      cfg,
		logger:   log.WithField("component", "catalog-client"),
		pending:  make(map[string]chan ValidateReply),
	}

	ctx, cancel := context.WithCancel(context.Background())
	client.cancel = cancel

	client.wg.Add(1)
	go func() {
		defer client.wg.Done()
		for {
			// Consume вызывается в цикле: при rebalance он завершается.
			if err := group.Consume(ctx, []string{cfg.ReplyTopic}, client); err != nil {
				client.logger.WithError(err).Error("error from reply consumer")
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	client.wg.Add(1)
	go func() {
		defer client.wg.Done()
		for err := range group.Errors() {
			client.logger.WithError(err).Error("reply consumer error")
		}
	}()

	return client, nil
}

// Validate отправляет запрос каталогу и ждёт коррелированный ответ.
// Истечение таймаута или контекста превращается в ErrCatalogUnavailable.
func (c *CatalogClient) Validate(ctx context.Context, ids []string) ([]domain.Product, error) {
	correlationID := uuid.NewString()
	replyCh := make(chan ValidateReply, 1)

	c.mu.Lock()
	c.pending[correlationID] = replyCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, correlationID)
		c.mu.Unlock()
	}()

	body, err := json.Marshal(ValidateRequest{ProductIDs: ids})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal validate request: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: c.cfg.RequestTopic,
		Key:   sarama.StringEncoder(correlationID),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte(HeaderCorrelationID), Value: []byte(correlationID)},
			{Key: []byte(HeaderReplyTo), Value: []byte(c.cfg.ReplyTopic)},
		},
		Timestamp: time.Now(),
	}

	if err := c.producer.PublishRaw(msg); err != nil {
		c.logger.WithError(err).Warn("failed to publish validate request")
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}

	timer := time.NewTimer(c.cfg.Timeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		return decodeReply(reply)
	case <-timer.C:
		c.logger.WithField("correlation_id", correlationID).Warn("catalog reply timed out")
		return nil, fmt.Errorf("%w: reply timed out after %s", domain.ErrCatalogUnavailable, c.cfg.Timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, ctx.Err())
	}
}

func decodeReply(reply ValidateReply) ([]domain.Product, error) {
	if reply.Error != nil {
		if reply.Error.Code == ErrorCodeProductNotFound {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, reply.Error.Message)
		}
		return nil, fmt.Errorf("%w: %s: %s", domain.ErrCatalogUnavailable, reply.Error.Code, reply.Error.Message)
	}

	products := make([]domain.Product, 0, len(reply.Products))
	for _, p := range reply.Products {
		products = append(products, domain.Product{
			ID:         p.ID,
			Name:       p.Name,
			PriceMinor: p.PriceMinor,
		})
	}
	return products, nil
}

// Close останавливает чтение reply-топика.
func (c *CatalogClient) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	if err := c.group.Close(); err != nil {
		return fmt.Errorf("failed to close catalog reply consumer: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("catalog client stopped")
	return nil
}

// Setup вызывается при старте consumer session
func (c *CatalogClient) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup вызывается при завершении consumer session
func (c *CatalogClient) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim доставляет ответы каталога ожидающим запросам.
func (c *CatalogClient) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}
			c.dispatch(message)
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// dispatch находит ожидающий запрос по correlation-id и передаёт ему ответ.
// Ответы без корреляции (чужие или опоздавшие) отбрасываются.
func (c *CatalogClient) dispatch(message *sarama.ConsumerMessage) {
	correlationID := headerValue(message, HeaderCorrelationID)
	if correlationID == "" {
		c.logger.WithField("offset", message.Offset).Debug("reply without correlation id")
		return
	}

	c.mu.Lock()
	replyCh, ok := c.pending[correlationID]
	if ok {
		delete(c.pending, correlationID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	var reply ValidateReply
	if err := json.Unmarshal(message.Value, &reply); err != nil {
		c.logger.WithError(err).WithField("correlation_id", correlationID).Warn("failed to decode catalog reply")
		reply = ValidateReply{Error: &ReplyError{Code: "malformed_reply", Message: err.Error()}}
	}

	replyCh <- reply
}

func headerValue(message *sarama.ConsumerMessage, key string) string {
	for _, header := range message.Headers {
		if string(header.Key) == key {
			return string(header.Value)
		}
	}
	return ""
}

var _ domain.ProductCatalog = (*CatalogClient)(nil)
var _ sarama.ConsumerGroupHandler = (*CatalogClient)(nil)

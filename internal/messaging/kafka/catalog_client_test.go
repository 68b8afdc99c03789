package kafka

import (
	"errors"
	"testing"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vcherkasov/orders-ms/internal/domain"
)

func newTestClient() *CatalogClient {
	return &CatalogClient{
		logger:  log.WithField("component", "catalog-client-test"),
		pending: make(map[string]chan ValidateReply),
	}
}

func replyMessage(correlationID string, value []byte) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{
		Topic: TopicCatalogReplies,
		Value: value,
		Headers: []*sarama.RecordHeader{
			{Key: []byte(HeaderCorrelationID), Value: []byte(correlationID)},
		},
	}
}

func TestCatalogClient_Dispatch(t *testing.T) {
	client := newTestClient()

	ch := make(chan ValidateReply, 1)
	client.pending["corr-1"] = ch

	client.dispatch(replyMessage("corr-1", []byte(`{"products":[{"id":"p-1","name":"Keyboard","price_minor":4500}]}`)))

	select {
	case reply := <-ch:
		if len(reply.Products) != 1 || reply.Products[0].ID != "p-1" {
			t.Fatalf("unexpected reply: %+v", reply)
		}
	default:
		t.Fatal("reply was not delivered")
	}

	// Корреляция удаляется после доставки.
	if _, ok := client.pending["corr-1"]; ok {
		t.Fatal("pending entry must be removed after dispatch")
	}
}

func TestCatalogClient_DispatchUnknownCorrelation(t *testing.T) {
	client := newTestClient()

	// Чужой или опоздавший ответ не должен паниковать и ничего не меняет.
	client.dispatch(replyMessage("unknown", []byte(`{"products":[]}`)))

	if len(client.pending) != 0 {
		t.Fatalf("pending must stay empty, got %d", len(client.pending))
	}
}

func TestCatalogClient_DispatchMalformedReply(t *testing.T) {
	client := newTestClient()

	ch := make(chan ValidateReply, 1)
	client.pending["corr-1"] = ch

	client.dispatch(replyMessage("corr-1", []byte(`not json`)))

	reply := <-ch
	if reply.Error == nil {
		t.Fatal("malformed reply must carry an error")
	}
}

func TestDecodeReply(t *testing.T) {
	products, err := decodeReply(ValidateReply{
		Products: []ProductPayload{
			{ID: "p-1", Name: "Keyboard", PriceMinor: 4500},
			{ID: "p-2", Name: "Mouse", PriceMinor: 1500},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
	if products[0].Name != "Keyboard" || products[0].PriceMinor != 4500 {
		t.Fatalf("unexpected product: %+v", products[0])
	}
}

func TestDecodeReply_ProductNotFound(t *testing.T) {
	_, err := decodeReply(ValidateReply{
		Error: &ReplyError{Code: ErrorCodeProductNotFound, Message: "p-x not found"},
	})
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestDecodeReply_OtherError(t *testing.T) {
	_, err := decodeReply(ValidateReply{
		Error: &ReplyError{Code: "internal", Message: "boom"},
	})
	if !errors.Is(err, domain.ErrCatalogUnavailable) {
		t.Fatalf("expected ErrCatalogUnavailable, got %v", err)
	}
}

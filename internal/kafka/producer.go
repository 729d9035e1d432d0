package kafka

import (
	"context"
	"strconv"
	"strings"

	"github.com/RaikyD/blockroute-client/internal/domain"
	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
)

// Writer is the part of kafka.Writer the producer uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	w Writer
}

func NewProducer(brokersSTR, topic string) *Producer {
	brokers := strings.Split(brokersSTR, ",")

	return NewProducerWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	})
}

func NewProducerWithWriter(w Writer) *Producer {
	return &Producer{w: w}
}

func (p *Producer) Close() error {
	return p.w.Close()
}

// PublishWrite keys events by shipment so one shipment's events stay on
// one partition, in order. Creates have no id yet and go by write id.
func (p *Producer) PublishWrite(ctx context.Context, ev domain.WriteEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	key := ev.WriteID
	if ev.ShipmentID > 0 {
		key = strconv.FormatInt(ev.ShipmentID, 10)
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: b,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "event-type", Value: []byte("shipment.write." + ev.State)},
		},
	})
}

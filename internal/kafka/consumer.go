package kafka

import (
	"context"
	"strings"
	"time"

	"github.com/RaikyD/blockroute-client/internal/domain"
	"github.com/RaikyD/blockroute-client/internal/logger"
	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
)

type ConsumerConfig struct {
	Brokers string
	Topic   string
	GroupID string
}

// Reader is the part of kafka.Reader the consumer loop uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Invalidator drops cached shipments; repository.ShipmentRepository is one.
type Invalidator interface {
	Invalidate(id int64)
}

// StartConsumer follows ledger change notifications and evicts the
// shipments they name, so the next read goes to the ledger.
func StartConsumer(ctx context.Context, inv Invalidator, cfg ConsumerConfig) (*kafka.Reader, error) {
	brokers := strings.Split(cfg.Brokers, ",")

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         brokers,
		GroupID:         cfg.GroupID,
		Topic:           cfg.Topic,
		MinBytes:        1,
		MaxBytes:        10e6,
		CommitInterval:  0,
		StartOffset:     kafka.LastOffset,
		ReadLagInterval: -1,
	})

	logger.Info("kafka consumer starting", "brokers", cfg.Brokers, "topic", cfg.Topic, "group", cfg.GroupID)

	go Consume(ctx, r, inv, 300*time.Millisecond)
	return r, nil
}

// Consume runs until ctx is done and closes r on the way out.
func Consume(ctx context.Context, r Reader, inv Invalidator, backoff time.Duration) {
	defer r.Close()

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("kafka fetch error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}

		var ev domain.LedgerEvent
		if err = json.Unmarshal(m.Value, &ev); err != nil || ev.ShipmentID < 1 {
			logger.Warn("kafka invalid ledger event. skip and commit", "offset", m.Offset, "err", err)
			_ = r.CommitMessages(ctx, m)
			continue
		}

		inv.Invalidate(ev.ShipmentID)
		logger.Debug("shipment invalidated", "id", ev.ShipmentID, "event", ev.Event, "tx", ev.TxHash)

		if err := r.CommitMessages(ctx, m); err != nil {
			logger.Warn("[kafka] commit failed", "err", err)
		} else {
			logger.Debug("[kafka] committed", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset)
		}
	}
}

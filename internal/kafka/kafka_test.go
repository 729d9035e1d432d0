package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/RaikyD/blockroute-client/internal/domain"
	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestPublishWrite(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w)

	ev := domain.WriteEvent{WriteID: "0b7c", Method: "updateShipmentStatus", ShipmentID: 42, State: "success", TxHash: "0xabc"}
	require.NoError(t, p.PublishWrite(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	m := w.msgs[0]
	assert.Equal(t, "42", string(m.Key))

	var got domain.WriteEvent
	require.NoError(t, json.Unmarshal(m.Value, &got))
	assert.Equal(t, ev.WriteID, got.WriteID)
	assert.Equal(t, ev.State, got.State)
	assert.Equal(t, ev.TxHash, got.TxHash)

	headers := map[string]string{}
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "application/json", headers["content-type"])
	assert.Equal(t, "shipment.write.success", headers["event-type"])
}

func TestPublishWrite_CreateKeyedByWrite(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w)

	require.NoError(t, p.PublishWrite(context.Background(), domain.WriteEvent{WriteID: "w-1", Method: "createShipment", State: "pending"}))
	assert.Equal(t, "w-1", string(w.msgs[0].Key))
}

func TestPublishWrite_WriterError(t *testing.T) {
	p := NewProducerWithWriter(&fakeWriter{err: errors.New("leader not available")})
	assert.Error(t, p.PublishWrite(context.Background(), domain.WriteEvent{WriteID: "w"}))
}

type fakeReader struct {
	msgs      chan kafka.Message
	fetchErrs chan error

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newFakeReader() *fakeReader {
	return &fakeReader{msgs: make(chan kafka.Message, 10), fetchErrs: make(chan error, 10)}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case err := <-r.fetchErrs:
		return kafka.Message{}, err
	default:
	}
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type invalidations struct {
	mu  sync.Mutex
	ids []int64
}

func (i *invalidations) Invalidate(id int64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids = append(i.ids, id)
}

func (i *invalidations) seen() []int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]int64(nil), i.ids...)
}

func TestConsume(t *testing.T) {
	r := newFakeReader()
	inv := &invalidations{}

	r.fetchErrs <- errors.New("coordinator not available")
	r.msgs <- kafka.Message{Offset: 1, Value: []byte(`{"shipmentId":3,"event":"StatusUpdated"}`)}
	r.msgs <- kafka.Message{Offset: 2, Value: []byte(`not json`)}
	r.msgs <- kafka.Message{Offset: 3, Value: []byte(`{"event":"StatusUpdated"}`)}
	r.msgs <- kafka.Message{Offset: 4, Value: []byte(`{"shipmentId":7,"event":"LocationUpdated","txHash":"0x01"}`)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		Consume(ctx, r, inv, time.Millisecond)
	}()

	require.Eventually(t, func() bool { return len(r.commits()) == 4 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []int64{3, 7}, inv.seen())
	assert.Equal(t, []int64{1, 2, 3, 4}, r.commits())
	assert.True(t, r.closed)
}

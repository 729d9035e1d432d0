package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// WriteState tracks a state-changing ledger call.
//
//	Draft -> Validated -> Submitted -> Confirmed
//	                  \-> Failed   \-> Failed
type WriteState int

const (
	WriteDraft WriteState = iota
	WriteValidated
	WriteSubmitted
	WriteConfirmed
	WriteFailed
)

func (s WriteState) String() string {
	switch s {
	case WriteDraft:
		return "draft"
	case WriteValidated:
		return "validated"
	case WriteSubmitted:
		return "pending"
	case WriteConfirmed:
		return "success"
	case WriteFailed:
		return "failed"
	}
	return "unknown"
}

func (s WriteState) settled() bool {
	return s == WriteConfirmed || s == WriteFailed
}

// Observer is called with WriteSubmitted, WriteConfirmed or WriteFailed.
// err is only set for WriteFailed.
type Observer func(state WriteState, err error)

// PendingWrite is the handle returned by every PrepareAndSend* call.
type PendingWrite struct {
	ID         uuid.UUID
	Method     string
	ShipmentID int64
	CreatedAt  time.Time

	// notify serializes observer calls so late subscribers replay in order
	notify sync.Mutex

	mu        sync.Mutex
	state     WriteState
	txHash    common.Hash
	err       error
	fired     []WriteState
	observers []Observer
	done      chan struct{}
}

func newPendingWrite(method string, shipmentID int64) *PendingWrite {
	return &PendingWrite{
		ID:         uuid.New(),
		Method:     method,
		ShipmentID: shipmentID,
		CreatedAt:  time.Now().UTC(),
		state:      WriteDraft,
		done:       make(chan struct{}),
	}
}

func (w *PendingWrite) State() WriteState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Err is the failure cause once the write settled as WriteFailed.
func (w *PendingWrite) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// TxHash is zero until the transaction has been accepted by the node.
func (w *PendingWrite) TxHash() common.Hash {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.txHash
}

// Done is closed once the write is confirmed or failed.
func (w *PendingWrite) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until the write settles or ctx ends. Giving up on the wait
// does not cancel the write.
func (w *PendingWrite) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return w.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Observe subscribes fn to state changes. States already reached are
// replayed, so every observer sees each notification exactly once.
// fn must not call Observe on the same write.
func (w *PendingWrite) Observe(fn Observer) {
	w.notify.Lock()
	defer w.notify.Unlock()

	w.mu.Lock()
	fired := append([]WriteState(nil), w.fired...)
	err := w.err
	w.observers = append(w.observers, fn)
	w.mu.Unlock()

	for _, s := range fired {
		if s == WriteFailed {
			fn(s, err)
			continue
		}
		fn(s, nil)
	}
}

func (w *PendingWrite) validated() {
	w.mu.Lock()
	w.state = WriteValidated
	w.mu.Unlock()
}

func (w *PendingWrite) submitted(tx common.Hash) {
	w.transition(WriteSubmitted, func() { w.txHash = tx })
}

func (w *PendingWrite) confirm() {
	w.transition(WriteConfirmed, nil)
}

func (w *PendingWrite) fail(err error) {
	w.transition(WriteFailed, func() { w.err = err })
}

func (w *PendingWrite) transition(to WriteState, apply func()) {
	w.notify.Lock()
	defer w.notify.Unlock()

	w.mu.Lock()
	if w.state.settled() {
		w.mu.Unlock()
		return
	}
	if apply != nil {
		apply()
	}
	w.state = to
	w.fired = append(w.fired, to)
	observers := append([]Observer(nil), w.observers...)
	err := w.err
	w.mu.Unlock()

	for _, fn := range observers {
		fn(to, err)
	}
	// after observers, so Wait callers see their side effects
	if to.settled() {
		close(w.done)
	}
}

// Package ledgertest provides an in-memory BlockRoute contract speaking the
// real ABI, for tests of everything above ledger.Connection.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/RaikyD/blockroute-client/internal/domain"
	"github.com/RaikyD/blockroute-client/internal/ledger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNotFound is what the contract reverts with for an unknown id.
var ErrNotFound = errors.New("execution reverted: shipment does not exist")

type Environment struct {
	Temperature int64
	Humidity    int64
}

type tx struct {
	from   common.Address
	method *abi.Method
	args   []interface{}
}

type Ledger struct {
	mu        sync.Mutex
	shipments []domain.Shipment
	history   map[int64][]domain.Location
	env       map[int64]Environment
	notes     map[int64][]string

	calls     map[string]int
	submits   int
	pending   map[common.Hash]tx
	readErrs  map[int64]error
	callErr   error
	submitErr error
	mineErr   error
	gate      chan struct{}
	mineGate  chan struct{}
}

var _ ledger.Connection = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{
		history:  make(map[int64][]domain.Location),
		env:      make(map[int64]Environment),
		notes:    make(map[int64][]string),
		calls:    make(map[string]int),
		pending:  make(map[common.Hash]tx),
		readErrs: make(map[int64]error),
	}
}

// Add stores s under the next id and returns that id.
func (l *Ledger) Add(s domain.Shipment, history ...domain.Location) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.ID = int64(len(l.shipments) + 1)
	l.shipments = append(l.shipments, s)
	l.history[s.ID] = append([]domain.Location(nil), history...)
	return s.ID
}

func (l *Ledger) Shipment(id int64) (domain.Shipment, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id < 1 || id > int64(len(l.shipments)) {
		return domain.Shipment{}, false
	}
	return l.shipments[id-1], true
}

func (l *Ledger) Environment(id int64) (Environment, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.env[id]
	return e, ok
}

// Notes lists the notes of every mined status update of id.
func (l *Ledger) Notes(id int64) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.notes[id]...)
}

// SetStatus changes a shipment behind the client's back.
func (l *Ledger) SetStatus(id int64, s domain.ShipmentStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shipments[id-1].Status = s
}

// FailRead makes reads of id return err; nil clears it.
func (l *Ledger) FailRead(id int64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readErrs[id] = err
}

// FailCalls makes every Call return err; nil restores normal behaviour.
func (l *Ledger) FailCalls(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callErr = err
}

func (l *Ledger) FailSubmit(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submitErr = err
}

// RevertMined makes every mined transaction revert with err.
func (l *Ledger) RevertMined(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mineErr = err
}

// Block holds every Call (after it was counted) until release is called.
func (l *Ledger) Block() (release func()) {
	gate := make(chan struct{})
	l.mu.Lock()
	l.gate = gate
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.gate = nil
			l.mu.Unlock()
			close(gate)
		})
	}
}

// HoldMining keeps submitted transactions pending until release is called.
func (l *Ledger) HoldMining() (release func()) {
	gate := make(chan struct{})
	l.mu.Lock()
	l.mineGate = gate
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.mineGate = nil
			l.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns how many times method was called through Call.
func (l *Ledger) Calls(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[method]
}

// Submits counts accepted and rejected Submit invocations.
func (l *Ledger) Submits() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.submits
}

func (l *Ledger) Call(ctx context.Context, data []byte) ([]byte, error) {
	method, args, err := decode(data)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.calls[method.Name]++
	gate := l.gate
	l.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.callErr != nil {
		return nil, l.callErr
	}

	switch method.Name {
	case ledger.MethodGetTotalShipments:
		return method.Outputs.Pack(big.NewInt(int64(len(l.shipments))))

	case ledger.MethodGetShipment:
		s, err := l.lookup(args[0].(*big.Int))
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(
			big.NewInt(s.ID),
			s.ProductName,
			s.Description,
			s.Manufacturer,
			s.Supplier,
			s.Carrier,
			s.Receiver,
			ledger.ToLocationTuple(s.Origin),
			ledger.ToLocationTuple(s.Destination),
			big.NewInt(s.EstimatedDeliveryDate),
			s.Status.Ordinal(),
		)

	case ledger.MethodGetTransitHistory:
		s, err := l.lookup(args[0].(*big.Int))
		if err != nil {
			return nil, err
		}
		tuples := make([]ledger.LocationTuple, 0, len(l.history[s.ID]))
		for _, loc := range l.history[s.ID] {
			tuples = append(tuples, ledger.ToLocationTuple(loc))
		}
		return method.Outputs.Pack(tuples)
	}

	return nil, fmt.Errorf("execution reverted: %s is not a view", method.Name)
}

func (l *Ledger) Submit(ctx context.Context, from common.Address, data []byte) (common.Hash, error) {
	method, args, err := decode(data)
	if err != nil {
		return common.Hash{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.submits++
	if l.submitErr != nil {
		return common.Hash{}, l.submitErr
	}

	nonce := big.NewInt(int64(l.submits)).Bytes()
	hash := crypto.Keccak256Hash(from.Bytes(), nonce, data)
	l.pending[hash] = tx{from: from, method: method, args: args}
	return hash, nil
}

func (l *Ledger) WaitMined(ctx context.Context, hash common.Hash) error {
	l.mu.Lock()
	gate := l.mineGate
	l.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.pending[hash]
	if !ok {
		return fmt.Errorf("unknown transaction %s", hash.Hex())
	}
	delete(l.pending, hash)
	if l.mineErr != nil {
		return l.mineErr
	}
	return l.apply(t)
}

func (l *Ledger) apply(t tx) error {
	switch t.method.Name {
	case ledger.MethodCreateShipment:
		origin, err := toLocation(t.args[5])
		if err != nil {
			return err
		}
		dest, err := toLocation(t.args[6])
		if err != nil {
			return err
		}
		s := domain.Shipment{
			ID:                    int64(len(l.shipments) + 1),
			ProductName:           t.args[0].(string),
			Description:           t.args[1].(string),
			Manufacturer:          t.from,
			Supplier:              t.args[2].(common.Address),
			Carrier:               t.args[3].(common.Address),
			Receiver:              t.args[4].(common.Address),
			Origin:                origin,
			Destination:           dest,
			EstimatedDeliveryDate: t.args[7].(*big.Int).Int64(),
			Status:                domain.StatusCreated,
		}
		l.shipments = append(l.shipments, s)
		l.history[s.ID] = nil

	case ledger.MethodUpdateStatus:
		s, err := l.lookup(t.args[0].(*big.Int))
		if err != nil {
			return err
		}
		l.shipments[s.ID-1].Status = domain.StatusFromOrdinal(t.args[1].(uint8))
		l.notes[s.ID] = append(l.notes[s.ID], t.args[2].(string))

	case ledger.MethodUpdateEnvironment:
		s, err := l.lookup(t.args[0].(*big.Int))
		if err != nil {
			return err
		}
		l.env[s.ID] = Environment{
			Temperature: t.args[1].(*big.Int).Int64(),
			Humidity:    t.args[2].(*big.Int).Int64(),
		}

	default:
		return fmt.Errorf("execution reverted: %s is read-only", t.method.Name)
	}
	return nil
}

// lookup expects l.mu to be held.
func (l *Ledger) lookup(raw *big.Int) (domain.Shipment, error) {
	id := raw.Int64()
	if err := l.readErrs[id]; err != nil {
		return domain.Shipment{}, err
	}
	if id < 1 || id > int64(len(l.shipments)) {
		return domain.Shipment{}, ErrNotFound
	}
	return l.shipments[id-1], nil
}

func decode(data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("execution reverted: short calldata")
	}
	method, err := ledger.ContractABI.MethodById(data[:4])
	if err != nil {
		return nil, nil, fmt.Errorf("execution reverted: %w", err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("execution reverted: %w", err)
	}
	return method, args, nil
}

func toLocation(v interface{}) (domain.Location, error) {
	return (*abi.ConvertType(v, new(ledger.LocationTuple)).(*ledger.LocationTuple)).Location()
}

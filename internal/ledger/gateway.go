package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/RaikyD/blockroute-client/internal/domain"
	"github.com/RaikyD/blockroute-client/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
)

const DefaultConfirmTimeout = 2 * time.Minute

// Connection is the transport to a node hosting the contract.
type Connection interface {
	// Call runs read-only calldata against the contract.
	Call(ctx context.Context, data []byte) ([]byte, error)
	// Submit signs and broadcasts a transaction carrying data.
	Submit(ctx context.Context, from common.Address, data []byte) (common.Hash, error)
	// WaitMined blocks until tx is included; a reverted tx is an error.
	WaitMined(ctx context.Context, tx common.Hash) error
}

type CreateShipmentArgs struct {
	ProductName string `validate:"required"`
	Description string `validate:"required"`

	Supplier common.Address
	Carrier  common.Address
	Receiver common.Address

	Origin      domain.Location
	Destination domain.Location

	EstimatedDeliveryDate  int64 `validate:"required,gt=0"`
	IsTemperatureSensitive bool
	IsHumiditySensitive    bool
	DocumentsHash          common.Hash
}

type Option func(*Gateway)

// WithConfirmTimeout bounds how long a write may stay pending.
func WithConfirmTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.confirmTimeout = d
		}
	}
}

// Gateway translates domain calls into contract calls and back. It holds no
// business rules beyond argument checks that can be made without the ledger.
type Gateway struct {
	conn           Connection
	session        Session
	confirmTimeout time.Duration
	validate       *validator.Validate
}

// NewGateway accepts a nil conn; every call then fails with ErrConnection.
func NewGateway(conn Connection, session Session, opts ...Option) *Gateway {
	if session == nil {
		session = ReadOnly
	}
	g := &Gateway{
		conn:           conn,
		session:        session,
		confirmTimeout: DefaultConfirmTimeout,
		validate:       validator.New(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) ReadTotalCount(ctx context.Context) (int64, error) {
	out, err := g.call(ctx, MethodGetTotalShipments)
	if err != nil {
		return 0, err
	}
	total, err := toInt64(abi.ConvertType(out[0], new(big.Int)).(*big.Int))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", domain.ErrRemote, MethodGetTotalShipments, err)
	}
	return total, nil
}

func (g *Gateway) ReadShipment(ctx context.Context, id int64) (*domain.Shipment, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	out, err := g.call(ctx, MethodGetShipment, big.NewInt(id))
	if err != nil {
		return nil, err
	}
	s, err := decodeShipment(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %s(%d): %w", domain.ErrRemote, MethodGetShipment, id, err)
	}
	return s, nil
}

func (g *Gateway) ReadTransitHistory(ctx context.Context, id int64) ([]domain.Location, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	out, err := g.call(ctx, MethodGetTransitHistory, big.NewInt(id))
	if err != nil {
		return nil, err
	}
	h, err := decodeHistory(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %s(%d): %w", domain.ErrRemote, MethodGetTransitHistory, id, err)
	}
	return h, nil
}

func (g *Gateway) PrepareAndSendStatusUpdate(ctx context.Context, id int64, status domain.ShipmentStatus, notes string) (*PendingWrite, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if err := status.CanPropose(); err != nil {
		return nil, err
	}
	return g.write(ctx, id, MethodUpdateStatus, big.NewInt(id), status.Ordinal(), notes)
}

func (g *Gateway) PrepareAndSendCreate(ctx context.Context, args CreateShipmentArgs) (*PendingWrite, error) {
	if err := g.validate.Struct(args); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidArgument, describeValidation(err))
	}
	return g.write(ctx, 0, MethodCreateShipment,
		args.ProductName,
		args.Description,
		args.Supplier,
		args.Carrier,
		args.Receiver,
		ToLocationTuple(args.Origin),
		ToLocationTuple(args.Destination),
		big.NewInt(args.EstimatedDeliveryDate),
		args.IsTemperatureSensitive,
		args.IsHumiditySensitive,
		[32]byte(args.DocumentsHash),
	)
}

func (g *Gateway) PrepareAndSendEnvironmentalUpdate(ctx context.Context, id int64, temperature, humidity int64) (*PendingWrite, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if temperature < 0 || humidity < 0 {
		return nil, fmt.Errorf("%w: temperature and humidity must be non-negative", domain.ErrInvalidArgument)
	}
	return g.write(ctx, id, MethodUpdateEnvironment, big.NewInt(id), big.NewInt(temperature), big.NewInt(humidity))
}

func (g *Gateway) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	if g.conn == nil {
		return nil, fmt.Errorf("%w: no active connection", domain.ErrConnection)
	}
	data, err := ContractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %w", domain.ErrInvalidArgument, method, err)
	}
	raw, err := g.conn.Call(ctx, data)
	if err != nil {
		return nil, classify(method, err)
	}
	out, err := ContractABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", domain.ErrRemote, method, err)
	}
	return out, nil
}

// write runs the synchronous prepare phase and hands the send phase to a
// goroutine. Everything returned as an error here happened before any
// transaction left the process.
func (g *Gateway) write(ctx context.Context, shipmentID int64, method string, args ...interface{}) (*PendingWrite, error) {
	from, ok := g.session.Account()
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	if g.conn == nil {
		return nil, fmt.Errorf("%w: no active connection", domain.ErrConnection)
	}

	w := newPendingWrite(method, shipmentID)
	data, err := ContractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %w", domain.ErrInvalidArgument, method, err)
	}
	w.validated()

	logger.Debug("ledger write prepared", "write_id", w.ID, "method", method, "shipment_id", shipmentID, "from", from.Hex())
	go g.send(ctx, w, from, data)
	return w, nil
}

func (g *Gateway) send(ctx context.Context, w *PendingWrite, from common.Address, data []byte) {
	// the write outlives the request that started it, but not the timeout
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.confirmTimeout)
	defer cancel()

	tx, err := g.conn.Submit(ctx, from, data)
	if err != nil {
		err = classify(w.Method, err)
		logger.Warn("ledger write rejected", "write_id", w.ID, "method", w.Method, "err", err)
		w.fail(err)
		return
	}
	w.submitted(tx)
	logger.Info("ledger write submitted", "write_id", w.ID, "method", w.Method, "tx", tx.Hex())

	if err := g.conn.WaitMined(ctx, tx); err != nil {
		err = classify(w.Method, err)
		logger.Warn("ledger write failed", "write_id", w.ID, "method", w.Method, "tx", tx.Hex(), "err", err)
		w.fail(err)
		return
	}
	logger.Info("ledger write confirmed", "write_id", w.ID, "method", w.Method, "tx", tx.Hex())
	w.confirm()
}

func checkID(id int64) error {
	if id < 1 {
		return fmt.Errorf("%w: shipment id must be >= 1, got %d", domain.ErrInvalidArgument, id)
	}
	return nil
}

// classify maps transport failures onto ErrConnection and everything the
// node answered with onto ErrRemote.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, domain.ErrConnection),
		errors.Is(err, domain.ErrRemote):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		// checked before net.Error: DeadlineExceeded implements it too
		return fmt.Errorf("%w: %s: no response before timeout: %w", domain.ErrRemote, op, err)
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return fmt.Errorf("%w: %s: %w", domain.ErrConnection, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %s: %w", domain.ErrConnection, op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrRemote, op, err)
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.StructNamespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		fields = append(fields, ns+" ("+fe.Tag()+")")
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}

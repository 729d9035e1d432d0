package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RaikyD/blockroute-client/internal/domain"
	"github.com/RaikyD/blockroute-client/internal/ledger"
	"github.com/RaikyD/blockroute-client/internal/logger"
	"github.com/RaikyD/blockroute-client/internal/repository"
	"github.com/RaikyD/blockroute-client/internal/route"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultNotes       = "Status updated by user"
	defaultRecentLimit = 5
	defaultRegistry    = 1024
	publishTimeout     = 5 * time.Second
	eventBuffer        = 256
)

// DefaultDocumentsHash is sent when a shipment is created without documents.
var DefaultDocumentsHash = common.BigToHash(common.Big1)

type Repository interface {
	GetShipment(ctx context.Context, id int64) (*domain.Shipment, error)
	GetRecentShipmentsOf(ctx context.Context, total int64, n int) ([]domain.Shipment, error)
	GetTransitHistory(ctx context.Context, id int64) ([]domain.Location, error)
	TotalCount(ctx context.Context) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status domain.ShipmentStatus, notes string) (*ledger.PendingWrite, error)
	CreateShipment(ctx context.Context, args ledger.CreateShipmentArgs) (*ledger.PendingWrite, error)
	UpdateEnvironment(ctx context.Context, id int64, temperature, humidity int64) (*ledger.PendingWrite, error)
}

var _ Repository = (*repository.ShipmentRepository)(nil)

// Publisher receives write lifecycle events. kafka.Producer implements it.
type Publisher interface {
	PublishWrite(ctx context.Context, ev domain.WriteEvent) error
}

type Dashboard struct {
	Total  int64             `json:"total"`
	Recent []domain.Shipment `json:"recent"`
}

type Tracking struct {
	Shipment domain.Shipment   `json:"shipment"`
	History  []domain.Location `json:"history"`
	Route    *route.Projection `json:"route,omitempty"`
	// set instead of Route when the shipment has nothing drawable
	NoRoute string `json:"no_route,omitempty"`
}

type CreateForm struct {
	ProductName string
	Description string

	OriginName      string
	OriginLat       string
	OriginLng       string
	DestinationName string
	DestinationLat  string
	DestinationLng  string

	// unix seconds; ShippedAt stamps the origin, ArrivesAt the destination
	ShippedAt         int64
	ArrivesAt         int64
	EstimatedDelivery int64

	TemperatureSensitive bool
	HumiditySensitive    bool

	// zero values fall back to the connected account
	Supplier      common.Address
	Carrier       common.Address
	Receiver      common.Address
	DocumentsHash common.Hash
}

type StatusOption struct {
	Ordinal    uint8             `json:"ordinal"`
	Label      string            `json:"label"`
	Color      domain.ColorClass `json:"color"`
	Terminal   bool              `json:"terminal"`
	Proposable bool              `json:"proposable"`
}

type SessionView struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address,omitempty"`
	Short     string `json:"short,omitempty"`
}

type Option func(*TrackingService)

func WithRecentLimit(n int) Option {
	return func(s *TrackingService) {
		if n > 0 {
			s.recentLimit = n
		}
	}
}

func WithWriteRegistrySize(n int) Option {
	return func(s *TrackingService) {
		if n > 0 {
			s.registrySize = n
		}
	}
}

type TrackingService struct {
	repo    Repository
	session ledger.Session
	pub     Publisher

	recentLimit  int
	registrySize int
	writes       *lru.Cache[uuid.UUID, *ledger.PendingWrite]

	// write events leave through one goroutine, off the write's own path
	events    chan domain.WriteEvent
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewTrackingService wires the service; pub may be nil. With a publisher,
// Close must be called to flush queued events.
func NewTrackingService(repo Repository, session ledger.Session, pub Publisher, opts ...Option) (*TrackingService, error) {
	if session == nil {
		session = ledger.ReadOnly
	}
	s := &TrackingService{
		repo:         repo,
		session:      session,
		pub:          pub,
		recentLimit:  defaultRecentLimit,
		registrySize: defaultRegistry,
	}
	for _, opt := range opts {
		opt(s)
	}

	writes, err := lru.New[uuid.UUID, *ledger.PendingWrite](s.registrySize)
	if err != nil {
		return nil, fmt.Errorf("write registry: %w", err)
	}
	s.writes = writes

	if pub != nil {
		s.events = make(chan domain.WriteEvent, eventBuffer)
		s.quit = make(chan struct{})
		s.stopped = make(chan struct{})
		go s.publishLoop()
	}
	return s, nil
}

// Close publishes the events still queued and stops the publisher loop.
func (s *TrackingService) Close() {
	if s.pub == nil {
		return
	}
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.stopped
}

func (s *TrackingService) Dashboard(ctx context.Context) (*Dashboard, error) {
	total, err := s.repo.TotalCount(ctx)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{Total: total, Recent: []domain.Shipment{}}
	if total == 0 {
		return d, nil
	}
	// same total for both halves, a create in between must not skew them
	if d.Recent, err = s.repo.GetRecentShipmentsOf(ctx, total, s.recentLimit); err != nil {
		return nil, err
	}
	return d, nil
}

// Track loads a shipment with its history and projects the route.
func (s *TrackingService) Track(ctx context.Context, id int64) (*Tracking, error) {
	var (
		shipment *domain.Shipment
		history  []domain.Location
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		shipment, err = s.repo.GetShipment(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		history, err = s.repo.GetTransitHistory(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t := &Tracking{Shipment: *shipment, History: lo.Ternary(history == nil, []domain.Location{}, history)}
	proj, err := route.Project(*shipment, history)
	switch {
	case errors.Is(err, domain.ErrInsufficientGeometry):
		t.NoRoute = err.Error()
	case err != nil:
		return nil, err
	default:
		t.Route = proj
	}
	return t, nil
}

func (s *TrackingService) History(ctx context.Context, id int64) ([]domain.Location, error) {
	return s.repo.GetTransitHistory(ctx, id)
}

func (s *TrackingService) UpdateStatus(ctx context.Context, id int64, status domain.ShipmentStatus, notes string) (*ledger.PendingWrite, error) {
	if strings.TrimSpace(notes) == "" {
		notes = DefaultNotes
	}
	w, err := s.repo.UpdateStatus(ctx, id, status, notes)
	if err != nil {
		return nil, err
	}
	s.register(w)
	return w, nil
}

// CreateShipment fills the parties left empty with the connected account,
// which also signs both endpoint locations.
func (s *TrackingService) CreateShipment(ctx context.Context, f CreateForm) (*ledger.PendingWrite, error) {
	account, ok := s.session.Account()
	if !ok {
		return nil, domain.ErrUnauthenticated
	}

	orZero := func(a common.Address) common.Address {
		return lo.Ternary(a == (common.Address{}), account, a)
	}
	args := ledger.CreateShipmentArgs{
		ProductName: strings.TrimSpace(f.ProductName),
		Description: strings.TrimSpace(f.Description),
		Supplier:    orZero(f.Supplier),
		Carrier:     orZero(f.Carrier),
		Receiver:    orZero(f.Receiver),
		Origin: domain.Location{
			Name:      strings.TrimSpace(f.OriginName),
			Latitude:  strings.TrimSpace(f.OriginLat),
			Longitude: strings.TrimSpace(f.OriginLng),
			Timestamp: f.ShippedAt,
			UpdatedBy: account,
		},
		Destination: domain.Location{
			Name:      strings.TrimSpace(f.DestinationName),
			Latitude:  strings.TrimSpace(f.DestinationLat),
			Longitude: strings.TrimSpace(f.DestinationLng),
			Timestamp: f.ArrivesAt,
			UpdatedBy: account,
		},
		EstimatedDeliveryDate:  lo.Ternary(f.EstimatedDelivery == 0, f.ArrivesAt, f.EstimatedDelivery),
		IsTemperatureSensitive: f.TemperatureSensitive,
		IsHumiditySensitive:    f.HumiditySensitive,
		DocumentsHash:          lo.Ternary(f.DocumentsHash == (common.Hash{}), DefaultDocumentsHash, f.DocumentsHash),
	}

	w, err := s.repo.CreateShipment(ctx, args)
	if err != nil {
		return nil, err
	}
	s.register(w)
	return w, nil
}

func (s *TrackingService) UpdateEnvironment(ctx context.Context, id int64, temperature, humidity int64) (*ledger.PendingWrite, error) {
	w, err := s.repo.UpdateEnvironment(ctx, id, temperature, humidity)
	if err != nil {
		return nil, err
	}
	s.register(w)
	return w, nil
}

// Write looks up a write started by this process. Old writes are evicted
// once the registry is full.
func (s *TrackingService) Write(id uuid.UUID) (*ledger.PendingWrite, bool) {
	return s.writes.Get(id)
}

func (s *TrackingService) Statuses() []StatusOption {
	return lo.Map(domain.Statuses(), func(st domain.ShipmentStatus, _ int) StatusOption {
		return StatusOption{
			Ordinal:    st.Ordinal(),
			Label:      st.Label(),
			Color:      st.Color(),
			Terminal:   st.IsTerminal(),
			Proposable: st.CanPropose() == nil,
		}
	})
}

func (s *TrackingService) Session() SessionView {
	addr, ok := s.session.Account()
	if !ok {
		return SessionView{}
	}
	return SessionView{Connected: true, Address: addr.Hex(), Short: domain.ShortAddress(addr)}
}

func (s *TrackingService) register(w *ledger.PendingWrite) {
	s.writes.Add(w.ID, w)
	if s.pub == nil {
		return
	}
	// observer calls are serialized per write and the queue is FIFO, so
	// events leave in state order
	w.Observe(func(state ledger.WriteState, err error) {
		ev := domain.WriteEvent{
			WriteID:    w.ID.String(),
			Method:     w.Method,
			ShipmentID: w.ShipmentID,
			State:      state.String(),
			At:         time.Now().UTC(),
		}
		if tx := w.TxHash(); tx != (common.Hash{}) {
			ev.TxHash = tx.Hex()
		}
		if err != nil {
			ev.Error = err.Error()
		}

		select {
		case s.events <- ev:
		default:
			logger.Warn("write event queue full, dropping", "write_id", ev.WriteID, "state", ev.State)
		}
	})
}

func (s *TrackingService) publishLoop() {
	defer close(s.stopped)
	for {
		select {
		case ev := <-s.events:
			s.publish(ev)
		case <-s.quit:
			for {
				select {
				case ev := <-s.events:
					s.publish(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *TrackingService) publish(ev domain.WriteEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.pub.PublishWrite(ctx, ev); err != nil {
		logger.Warn("publish write event failed", "write_id", ev.WriteID, "state", ev.State, "err", err)
	}
}

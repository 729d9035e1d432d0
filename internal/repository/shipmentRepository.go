package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/RaikyD/blockroute-client/internal/domain"
	"github.com/RaikyD/blockroute-client/internal/ledger"
	"github.com/RaikyD/blockroute-client/internal/logger"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const (
	defaultFanout = 8
	// DefaultReadTimeout bounds one shared ledger read.
	DefaultReadTimeout = 30 * time.Second
)

// Ledger is what the repository needs from ledger.Gateway.
type Ledger interface {
	ReadTotalCount(ctx context.Context) (int64, error)
	ReadShipment(ctx context.Context, id int64) (*domain.Shipment, error)
	ReadTransitHistory(ctx context.Context, id int64) ([]domain.Location, error)
	PrepareAndSendStatusUpdate(ctx context.Context, id int64, status domain.ShipmentStatus, notes string) (*ledger.PendingWrite, error)
	PrepareAndSendCreate(ctx context.Context, args ledger.CreateShipmentArgs) (*ledger.PendingWrite, error)
	PrepareAndSendEnvironmentalUpdate(ctx context.Context, id int64, temperature, humidity int64) (*ledger.PendingWrite, error)
}

var _ Ledger = (*ledger.Gateway)(nil)

// call is one shared ledger read; everyone asking for the same id while it
// runs waits on done.
type call struct {
	done     chan struct{}
	shipment *domain.Shipment
	err      error
	waiters  int
}

type ShipmentRepository struct {
	gw          Ledger
	fanout      int
	readTimeout time.Duration

	mu       sync.Mutex
	byID     map[int64]*domain.Shipment
	inflight map[int64]*call
	// ledger reads of id currently running, shared loads and Warm alike
	readers map[int64]int
	// bumped by Invalidate while id has readers, so their result is not
	// cached; dropped with the last reader
	gen map[int64]uint64
}

type Option func(*ShipmentRepository)

// WithFanout limits concurrent ledger reads of GetRecentShipments and Warm.
func WithFanout(n int) Option {
	return func(r *ShipmentRepository) {
		if n > 0 {
			r.fanout = n
		}
	}
}

// WithReadTimeout bounds each shared read so a node that stops answering
// can't pin an id in flight.
func WithReadTimeout(d time.Duration) Option {
	return func(r *ShipmentRepository) {
		if d > 0 {
			r.readTimeout = d
		}
	}
}

func NewShipmentRepository(gw Ledger, opts ...Option) *ShipmentRepository {
	r := &ShipmentRepository{
		gw:          gw,
		fanout:      defaultFanout,
		readTimeout: DefaultReadTimeout,
		byID:        make(map[int64]*domain.Shipment),
		inflight:    make(map[int64]*call),
		readers:     make(map[int64]int),
		gen:         make(map[int64]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetShipment serves id from cache or joins the single in-flight read for
// it. A caller whose ctx ends stops waiting; the read itself carries on,
// bounded by the read timeout, and still fills the cache.
func (r *ShipmentRepository) GetShipment(ctx context.Context, id int64) (*domain.Shipment, error) {
	if id < 1 {
		return nil, fmt.Errorf("%w: shipment id must be >= 1, got %d", domain.ErrInvalidArgument, id)
	}

	r.mu.Lock()
	if s, ok := r.byID[id]; ok {
		r.mu.Unlock()
		cp := *s
		return &cp, nil
	}
	c, ok := r.inflight[id]
	if !ok {
		c = &call{done: make(chan struct{})}
		r.inflight[id] = c
		go r.load(context.WithoutCancel(ctx), id, c, r.acquire(id))
	}
	c.waiters++
	r.mu.Unlock()

	select {
	case <-c.done:
		if c.err != nil {
			return nil, c.err
		}
		cp := *c.shipment
		return &cp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *ShipmentRepository) load(ctx context.Context, id int64, c *call, gen uint64) {
	ctx, cancel := context.WithTimeout(ctx, r.readTimeout)
	s, err := r.gw.ReadShipment(ctx, id)
	cancel()

	r.mu.Lock()
	c.shipment, c.err = s, err
	delete(r.inflight, id)
	if err == nil && r.gen[id] == gen {
		r.byID[id] = s
	}
	r.release(id)
	r.mu.Unlock()
	close(c.done)

	if err != nil {
		logger.Warn("shipment read failed", "id", id, "err", err)
	}
}

// GetRecentShipments returns up to n of the newest shipments, newest first.
// Ids are assumed dense from 1 to the ledger total. Shipments that fail to
// load are logged and left out.
func (r *ShipmentRepository) GetRecentShipments(ctx context.Context, n int) ([]domain.Shipment, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: n must be >= 1, got %d", domain.ErrInvalidArgument, n)
	}
	total, err := r.gw.ReadTotalCount(ctx)
	if err != nil {
		return nil, err
	}
	return r.GetRecentShipmentsOf(ctx, total, n)
}

// GetRecentShipmentsOf is GetRecentShipments against a total the caller
// already read, so both describe the same ledger state.
func (r *ShipmentRepository) GetRecentShipmentsOf(ctx context.Context, total int64, n int) ([]domain.Shipment, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: n must be >= 1, got %d", domain.ErrInvalidArgument, n)
	}
	ids := recentIDs(total, n)
	if len(ids) == 0 {
		return []domain.Shipment{}, nil
	}

	ch := make(chan domain.Shipment, len(ids))
	var g errgroup.Group
	g.SetLimit(r.fanout)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			s, err := r.GetShipment(ctx, id)
			if err != nil {
				logger.Warn("recent shipments: skipping", "id", id, "err", err)
				return nil
			}
			ch <- *s
			return nil
		})
	}
	_ = g.Wait()
	close(ch)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := lo.ChannelToSlice(ch)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *ShipmentRepository) GetTransitHistory(ctx context.Context, id int64) ([]domain.Location, error) {
	return r.gw.ReadTransitHistory(ctx, id)
}

func (r *ShipmentRepository) TotalCount(ctx context.Context) (int64, error) {
	return r.gw.ReadTotalCount(ctx)
}

// UpdateStatus sends the write and drops the cached shipment once the
// ledger confirms it.
func (r *ShipmentRepository) UpdateStatus(ctx context.Context, id int64, status domain.ShipmentStatus, notes string) (*ledger.PendingWrite, error) {
	w, err := r.gw.PrepareAndSendStatusUpdate(ctx, id, status, notes)
	if err != nil {
		return nil, err
	}
	w.Observe(func(s ledger.WriteState, _ error) {
		if s == ledger.WriteConfirmed {
			r.Invalidate(id)
		}
	})
	return w, nil
}

func (r *ShipmentRepository) CreateShipment(ctx context.Context, args ledger.CreateShipmentArgs) (*ledger.PendingWrite, error) {
	return r.gw.PrepareAndSendCreate(ctx, args)
}

func (r *ShipmentRepository) UpdateEnvironment(ctx context.Context, id int64, temperature, humidity int64) (*ledger.PendingWrite, error) {
	return r.gw.PrepareAndSendEnvironmentalUpdate(ctx, id, temperature, humidity)
}

// Invalidate drops id from the cache. A read already in flight for id will
// still answer its waiters but won't be cached.
func (r *ShipmentRepository) Invalidate(id int64) {
	r.mu.Lock()
	delete(r.byID, id)
	if r.readers[id] > 0 {
		r.gen[id]++
	}
	r.mu.Unlock()
}

// acquire registers a ledger read of id and returns the generation its
// result must still match to be cached. Expects r.mu to be held.
func (r *ShipmentRepository) acquire(id int64) uint64 {
	r.readers[id]++
	return r.gen[id]
}

// release expects r.mu to be held.
func (r *ShipmentRepository) release(id int64) {
	if r.readers[id]--; r.readers[id] > 0 {
		return
	}
	delete(r.readers, id)
	delete(r.gen, id)
}

// Warm replaces the cache with the newest n shipments.
func (r *ShipmentRepository) Warm(ctx context.Context, n int) error {
	total, err := r.gw.ReadTotalCount(ctx)
	if err != nil {
		return err
	}
	ids := recentIDs(total, n)

	r.mu.Lock()
	gens := make(map[int64]uint64, len(ids))
	for _, id := range ids {
		gens[id] = r.acquire(id)
	}
	r.mu.Unlock()

	// собираем в локальную мапу, чтобы держать Lock меньше
	var (
		tmpMu sync.Mutex
		tmp   = make(map[int64]*domain.Shipment, len(ids))
		g     errgroup.Group
	)
	g.SetLimit(r.fanout)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			rctx, cancel := context.WithTimeout(ctx, r.readTimeout)
			defer cancel()
			s, err := r.gw.ReadShipment(rctx, id)
			if err != nil {
				logger.Warn("warm cache: skipping", "id", id, "err", err)
				return nil
			}
			tmpMu.Lock()
			tmp[id] = s
			tmpMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	r.mu.Lock()
	for id := range tmp {
		if r.gen[id] != gens[id] {
			delete(tmp, id)
		}
	}
	for _, id := range ids {
		r.release(id)
	}
	loaded := len(tmp)
	r.byID = tmp
	r.mu.Unlock()

	logger.Info("shipment cache warmed", "requested", len(ids), "loaded", loaded)
	return nil
}

// recentIDs lists total, total-1, ... down to max(total-n+1, 1).
func recentIDs(total int64, n int) []int64 {
	if total < 1 || n < 1 {
		return nil
	}
	oldest := max(total-int64(n)+1, 1)
	ids := make([]int64, 0, total-oldest+1)
	for id := total; id >= oldest; id-- {
		ids = append(ids, id)
	}
	return ids
}

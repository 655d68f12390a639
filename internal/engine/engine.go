// Package engine is the order synchronization engine: it converts draft cart
// mutations into persisted order documents, adopts remote changes pushed
// back by the shared store, suppresses self-echoes by canonical signature,
// and latches sessions whose table another terminal settled.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kiwari-pos/terminal/internal/billing"
	"github.com/kiwari-pos/terminal/internal/enum"
	"github.com/kiwari-pos/terminal/internal/floor"
	"github.com/kiwari-pos/terminal/internal/model"
	"github.com/kiwari-pos/terminal/internal/store"
	"github.com/sirupsen/logrus"
)

// Errors returned by the engine and its sessions.
var (
	ErrSessionLatched  = errors.New("table was settled by another terminal; leave and re-enter to edit")
	ErrNoOrder         = errors.New("no order is bound to this table")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrOrderNotFound   = errors.New("order not found")
	ErrNotReopenable   = errors.New("only billed or settled orders can be reopened")
	ErrInvalidPayment  = errors.New("invalid payment mode")
	ErrSessionNotFound = errors.New("no open session for this table")
)

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source, used by tests and the bill allocator.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithErrorHandler registers the operator-facing sink for asynchronous push
// failures. Local optimistic state is never rolled back; the handler is the
// only signal that local and remote state have diverged.
func WithErrorHandler(fn func(tableID string, err error)) Option {
	return func(e *Engine) { e.onError = fn }
}

// Engine owns one session per open table on this terminal and dispatches
// remote order snapshots to them.
type Engine struct {
	terminalID string
	store      store.DocumentStore
	floor      *floor.Service
	log        *logrus.Entry
	now        func() time.Time
	onError    func(tableID string, err error)

	mu       sync.Mutex
	sessions map[string]*Session

	billMu   sync.Mutex
	billDay  string
	billLast int
}

// New creates an engine for one terminal.
func New(terminalID string, st store.DocumentStore, fl *floor.Service, log *logrus.Logger, opts ...Option) *Engine {
	e := &Engine{
		terminalID: terminalID,
		store:      st,
		floor:      fl,
		log:        log.WithField("terminal_id", terminalID),
		now:        time.Now,
		sessions:   make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.onError == nil {
		e.onError = func(tableID string, err error) {
			e.log.WithError(err).WithField("table_id", tableID).Error("push failed")
		}
	}
	return e
}

// Open starts (or returns) the session for a table. Opening resets any
// settled latch: navigating away and back is the documented way to resume
// editing after another terminal settled the table. The bound order, if one
// exists remotely, is adopted into the fresh draft.
func (e *Engine) Open(ctx context.Context, tableID string) (*Session, error) {
	table, err := e.floor.Get(ctx, tableID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if s, ok := e.sessions[tableID]; ok {
		e.mu.Unlock()
		s.reset(ctx)
		return s, nil
	}
	s := newSession(e, tableID)
	e.sessions[tableID] = s
	e.mu.Unlock()

	if table.CurrentOrderID != "" {
		var o model.Order
		err := e.store.Get(ctx, store.CollectionOrders, table.CurrentOrderID, &o)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// Stale weak reference; table doc will heal on next write.
		case err != nil:
			e.closeSession(tableID)
			return nil, fmt.Errorf("load bound order: %w", err)
		default:
			s.adoptInitial(o)
		}
	}
	return s, nil
}

// Session returns the open session for a table, if any.
func (e *Engine) Session(tableID string) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[tableID]; ok {
		return s, nil
	}
	return nil, ErrSessionNotFound
}

// Leave tears the table's session down: the operator navigated away.
func (e *Engine) Leave(tableID string) {
	e.closeSession(tableID)
}

func (e *Engine) closeSession(tableID string) {
	e.mu.Lock()
	s, ok := e.sessions[tableID]
	if ok {
		delete(e.sessions, tableID)
	}
	e.mu.Unlock()
	if ok {
		s.close()
	}
}

// Reopen binds a previously billed or settled order back onto its table for
// correction, on behalf of the reporting collaborator. The table must be
// Available; it is forced to Billing until re-settled.
func (e *Engine) Reopen(ctx context.Context, orderID string) (model.Order, error) {
	var o model.Order
	err := e.store.Get(ctx, store.CollectionOrders, orderID, &o)
	if errors.Is(err, store.ErrNotFound) {
		return model.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return model.Order{}, fmt.Errorf("load order: %w", err)
	}
	if o.Status != enum.OrderStatusBilled && o.Status != enum.OrderStatusSettled {
		return model.Order{}, ErrNotReopenable
	}
	if err := e.floor.Reopen(ctx, o.TableID, o.ID); err != nil {
		return model.Order{}, err
	}
	o.Status = enum.OrderStatusBilled
	if err := e.store.Put(ctx, store.CollectionOrders, o.ID, o); err != nil {
		return model.Order{}, fmt.Errorf("persist reopened order: %w", err)
	}
	e.log.WithFields(logrus.Fields{
		"order_id": o.ID,
		"bill_no":  o.DailyBillNo,
		"table_id": o.TableID,
	}).Info("order reopened for correction")
	return o, nil
}

// nextBillNumber allocates the next daily bill number. The store scan alone
// is not enough: this terminal's own just-billed orders may still sit in
// pusher queues, invisible to ListAll, so every number handed out locally is
// tracked and never re-issued within the same day. Concurrent allocation
// across terminals can still collide; see billing.NextBillValue.
func (e *Engine) nextBillNumber(ctx context.Context) (string, error) {
	orders, err := e.Orders(ctx)
	if err != nil {
		return "", err
	}
	now := e.now()
	n := billing.NextBillValue(orders, now)
	day := now.Format("2006-01-02")
	e.billMu.Lock()
	if day != e.billDay {
		e.billDay = day
		e.billLast = 0
	}
	if n <= e.billLast {
		n = e.billLast + 1
	}
	e.billLast = n
	e.billMu.Unlock()
	return billing.FormatBillNumber(n), nil
}

// Orders lists every order document in the store.
func (e *Engine) Orders(ctx context.Context) ([]model.Order, error) {
	docs, err := e.store.ListAll(ctx, store.CollectionOrders)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return store.DecodeAll[model.Order](docs)
}

// Run blocks watching the orders collection and dispatching each snapshot
// to the open sessions. Returns when ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	snaps, cancel := e.store.Watch(store.CollectionOrders)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			e.mu.Lock()
			sessions := make([]*Session, 0, len(e.sessions))
			for _, s := range e.sessions {
				sessions = append(sessions, s)
			}
			e.mu.Unlock()
			for _, s := range sessions {
				s.handleSnapshot(ctx, snap)
			}
		}
	}
}

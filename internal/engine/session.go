package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/kiwari-pos/terminal/internal/draft"
	"github.com/kiwari-pos/terminal/internal/enum"
	"github.com/kiwari-pos/terminal/internal/kot"
	"github.com/kiwari-pos/terminal/internal/model"
	"github.com/kiwari-pos/terminal/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type sessionState int

const (
	stateEditable sessionState = iota
	// stateLatchedSettled: another terminal settled this table. Every local
	// mutation is a no-op until the operator leaves and re-enters the
	// table, which resets the session. This is the guard against reopening
	// a table someone else just closed.
	stateLatchedSettled
)

// Session is the per-(terminal, table) sync context: the draft cart, the
// bound order identity, the settled latch and the push pipeline. Created
// when the operator opens a table, torn down when they navigate away.
type Session struct {
	engine  *Engine
	tableID string
	log     *logrus.Entry
	pusher  *pusher
	cancel  context.CancelFunc

	mu    sync.Mutex
	cart  *draft.Cart
	state sessionState
	// order carries the persisted identity and the fields the cart does
	// not own: id, bill number, creation time, kot count, status, cashier.
	// Items and editable metadata are mirrored in from the cart on every
	// push. A zero ID means nothing is persisted for this table yet.
	order model.Order
	// lastSig is the canonical signature of the last state this session
	// pushed or adopted. An incoming snapshot with an equal signature is
	// an echo and is ignored.
	lastSig string
	// released holds ids of orders this session deliberately walked away
	// from: a billed order whose cart was emptied, or a discarded draft
	// whose deletion is still in flight. Snapshots keep re-delivering the
	// retained document; the unbound scan must never re-adopt it.
	released map[string]bool
}

func newSession(e *Engine, tableID string) *Session {
	log := e.log.WithField("table_id", tableID)
	s := &Session{
		engine:   e,
		tableID:  tableID,
		log:      log,
		cart:     draft.New(),
		released: make(map[string]bool),
	}
	s.pusher = newPusher(e.store, log, func(err error) {
		e.onError(tableID, err)
	})
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.pusher.run(ctx)
	return s
}

// TableID returns the table this session is bound to.
func (s *Session) TableID() string { return s.tableID }

// Latched reports whether the session is read-only after a remote settle.
func (s *Session) Latched() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateLatchedSettled
}

// View returns the current display state of the session: the bound order
// identity with the live draft mirrored in.
func (s *Session) View() model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayLocked()
}

// AddItem adds one unit of a menu item to the cart and syncs.
func (s *Session) AddItem(ctx context.Context, menuItemID, name string, price, taxRate decimal.Decimal) ([]model.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateLatchedSettled {
		return nil, ErrSessionLatched
	}
	items, err := s.cart.AddLine(menuItemID, name, price, taxRate)
	if err != nil {
		return nil, err
	}
	return items, s.syncLocked(ctx)
}

// SetQuantity updates a line's quantity (0 removes it) and syncs.
func (s *Session) SetQuantity(ctx context.Context, lineID string, qty int) ([]model.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateLatchedSettled {
		return nil, ErrSessionLatched
	}
	items, err := s.cart.SetQuantity(lineID, qty)
	if err != nil {
		return nil, err
	}
	return items, s.syncLocked(ctx)
}

// SetPrice overrides a line's price for this order and syncs.
func (s *Session) SetPrice(ctx context.Context, lineID string, price decimal.Decimal) ([]model.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateLatchedSettled {
		return nil, ErrSessionLatched
	}
	items, err := s.cart.SetPrice(lineID, price)
	if err != nil {
		return nil, err
	}
	return items, s.syncLocked(ctx)
}

// SetMeta updates captain/customer/payment metadata and syncs. Nil fields
// are left untouched so callers can update one at a time; a non-nil empty
// string clears the field.
func (s *Session) SetMeta(ctx context.Context, captain, customer, paymentMode *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateLatchedSettled {
		return ErrSessionLatched
	}
	if paymentMode != nil && *paymentMode != "" && !enum.ValidPaymentMode(*paymentMode) {
		return ErrInvalidPayment
	}
	if captain != nil {
		s.cart.SetCaptain(*captain)
	}
	if customer != nil {
		s.cart.SetCustomer(*customer)
	}
	if paymentMode != nil {
		s.cart.SetPaymentMode(*paymentMode)
	}
	return s.syncLocked(ctx)
}

// ClearCart drops every line and syncs: an unbilled draft is deleted
// outright, a billed order is retained; the table goes Available either way.
func (s *Session) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateLatchedSettled {
		return ErrSessionLatched
	}
	s.cart.Clear()
	return s.syncLocked(ctx)
}

// IssueKOT cuts a full-cart kitchen ticket. The first ticket on a fresh
// order assigns the daily bill number: the first KOT is what formally opens
// the bill. kotCount goes up by exactly 1 and becomes the ticket's display
// number. Tickets are always full-cart snapshots, never deltas.
func (s *Session) IssueKOT(ctx context.Context) (model.KOTRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateLatchedSettled {
		return model.KOTRecord{}, ErrSessionLatched
	}
	if s.cart.Empty() {
		return model.KOTRecord{}, ErrEmptyCart
	}
	if err := s.syncLocked(ctx); err != nil {
		return model.KOTRecord{}, err
	}

	billNo := s.order.DailyBillNo
	if billNo == "" {
		var err error
		billNo, err = s.allocateBillNo(ctx)
		if err != nil {
			return model.KOTRecord{}, err
		}
	}

	rec := kot.BuildTicket(s.order, s.engine.now())
	if err := s.engine.store.Put(ctx, store.CollectionKOTs, rec.ID, rec); err != nil {
		return model.KOTRecord{}, fmt.Errorf("persist kot: %w", err)
	}

	s.order.DailyBillNo = billNo
	s.order.KOTCount = rec.TicketNo
	s.enqueueOrderLocked()
	s.log.WithFields(logrus.Fields{
		"order_id":  s.order.ID,
		"bill_no":   billNo,
		"ticket_no": rec.TicketNo,
	}).Info("kot issued")
	return rec, nil
}

// PrintBill assigns the daily bill number if absent and moves the order to
// Billed. From this point the order document is retained for audit even if
// its cart later empties.
func (s *Session) PrintBill(ctx context.Context) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateLatchedSettled {
		return model.Order{}, ErrSessionLatched
	}
	if s.cart.Empty() {
		return model.Order{}, ErrEmptyCart
	}
	if err := s.syncLocked(ctx); err != nil {
		return model.Order{}, err
	}
	if s.order.DailyBillNo == "" {
		billNo, err := s.allocateBillNo(ctx)
		if err != nil {
			return model.Order{}, err
		}
		s.order.DailyBillNo = billNo
	}
	s.order.Status = enum.OrderStatusBilled
	s.enqueueOrderLocked()
	s.lastSig = orderSignature(s.order)
	return s.displayLocked(), nil
}

// Settle finalizes payment: the order becomes terminally Settled, the table
// goes Available, and the session latches until the operator re-enters.
func (s *Session) Settle(ctx context.Context, paymentMode, cashierName string) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateLatchedSettled {
		return model.Order{}, ErrSessionLatched
	}
	if s.order.ID == "" {
		return model.Order{}, ErrNoOrder
	}
	if paymentMode != "" {
		if !enum.ValidPaymentMode(paymentMode) {
			return model.Order{}, ErrInvalidPayment
		}
		s.cart.SetPaymentMode(paymentMode)
	}
	if s.order.DailyBillNo == "" {
		billNo, err := s.allocateBillNo(ctx)
		if err != nil {
			return model.Order{}, err
		}
		s.order.DailyBillNo = billNo
	}
	s.mirrorCartLocked()
	s.order.Status = enum.OrderStatusSettled
	s.order.CashierName = cashierName
	s.enqueueOrderLocked()
	s.lastSig = orderSignature(s.order)
	s.state = stateLatchedSettled

	if err := s.engine.floor.Release(ctx, s.tableID); err != nil {
		return model.Order{}, err
	}
	s.log.WithFields(logrus.Fields{
		"order_id": s.order.ID,
		"bill_no":  s.order.DailyBillNo,
		"total":    s.order.TotalAmount.StringFixed(2),
	}).Info("order settled")
	return s.displayLocked(), nil
}

// syncLocked is the local-mutation half of the protocol: the draft just
// changed, make the store and the floor agree with it.
func (s *Session) syncLocked(ctx context.Context) error {
	if s.cart.Empty() {
		if s.order.ID == "" {
			return nil
		}
		if s.order.DailyBillNo == "" {
			// Discarded draft: the document goes away entirely.
			s.pusher.enqueue(pushJob{id: s.order.ID, remove: true})
		}
		// With a bill number the document is audit history and stays
		// untouched; either way the table is free again. Remember the id
		// so later snapshots of the retained document are not re-adopted.
		s.released[s.order.ID] = true
		s.order = model.Order{}
		s.lastSig = ""
		return s.engine.floor.Release(ctx, s.tableID)
	}

	if s.order.ID == "" {
		s.order = model.Order{
			ID:        uuid.NewString(),
			TableID:   s.tableID,
			Status:    enum.OrderStatusPending,
			CreatedAt: s.engine.now(),
		}
	}
	s.mirrorCartLocked()
	s.enqueueOrderLocked()
	s.lastSig = orderSignature(s.order)
	return s.engine.floor.Bind(ctx, s.tableID, s.order.ID)
}

// handleSnapshot is the remote half of the protocol.
func (s *Session) handleSnapshot(ctx context.Context, snap store.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remote, ok := s.findBoundOrder(snap)
	if !ok {
		if s.order.ID != "" && s.order.DailyBillNo == "" {
			// Another terminal discarded the draft we were showing.
			s.log.Info("bound draft deleted remotely; dropping local copy")
			s.cart.Adopt(nil, "", "", "")
			s.order = model.Order{}
			s.lastSig = ""
		}
		return
	}

	sig := orderSignature(remote)
	if sig == s.lastSig {
		// Echo of a write this session made (or already adopted).
		return
	}

	if remote.Status == enum.OrderStatusSettled {
		s.log.WithField("order_id", remote.ID).
			Info("table settled remotely; latching session")
		s.adoptLocked(remote, sig)
		s.state = stateLatchedSettled
		return
	}

	// Real remote change: adopt wholesale, last write wins. Any unsynced
	// local edit is discarded; there is no field-level merge.
	s.adoptLocked(remote, sig)
}

// reset clears the settled latch and re-adopts the table's bound order, if
// any. Called when the operator re-enters the table.
func (s *Session) reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateEditable
	s.cart.Adopt(nil, "", "", "")
	s.order = model.Order{}
	s.lastSig = ""
	s.released = make(map[string]bool)

	table, err := s.engine.floor.Get(ctx, s.tableID)
	if err != nil || table.CurrentOrderID == "" {
		return
	}
	var o model.Order
	if err := s.engine.store.Get(ctx, store.CollectionOrders, table.CurrentOrderID, &o); err != nil {
		return
	}
	s.adoptLocked(o, orderSignature(o))
}

func (s *Session) adoptInitial(o model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adoptLocked(o, orderSignature(o))
	if o.Status == enum.OrderStatusSettled {
		s.state = stateLatchedSettled
	}
}

func (s *Session) adoptLocked(o model.Order, sig string) {
	o.Items = model.CloneItems(o.Items)
	s.order = o
	s.cart.Adopt(o.Items, o.CaptainName, o.CustomerName, o.PaymentMode)
	s.lastSig = sig
}

// findBoundOrder resolves this table's order inside a whole-collection
// snapshot: the bound id when known, otherwise any unsettled order another
// terminal created for this table.
func (s *Session) findBoundOrder(snap store.Snapshot) (model.Order, bool) {
	if s.order.ID != "" {
		var o model.Order
		if err := snap.Decode(s.order.ID, &o); err == nil {
			return o, true
		}
		return model.Order{}, false
	}
	for _, raw := range snap.Docs {
		var o model.Order
		if err := json.Unmarshal(raw, &o); err != nil {
			continue
		}
		if s.released[o.ID] {
			continue
		}
		if o.TableID == s.tableID && o.Status != enum.OrderStatusSettled {
			return o, true
		}
	}
	return model.Order{}, false
}

// mirrorCartLocked copies the editable draft fields onto the cached order
// and recomputes the derived totals; they are never stored stale.
func (s *Session) mirrorCartLocked() {
	items := s.cart.Items()
	s.order.Items = items
	s.order.CaptainName = s.cart.CaptainName()
	s.order.CustomerName = s.cart.CustomerName()
	s.order.PaymentMode = s.cart.PaymentMode()
	totals := model.ComputeTotals(items)
	s.order.SubTotal = totals.SubTotal
	s.order.TaxAmount = totals.TaxAmount
	s.order.TotalAmount = totals.TotalAmount
}

func (s *Session) enqueueOrderLocked() {
	doc := s.order
	doc.Items = model.CloneItems(doc.Items)
	s.pusher.enqueue(pushJob{id: doc.ID, doc: doc})
}

func (s *Session) allocateBillNo(ctx context.Context) (string, error) {
	return s.engine.nextBillNumber(ctx)
}

func (s *Session) displayLocked() model.Order {
	o := s.order
	o.Items = s.cart.Items()
	o.CaptainName = s.cart.CaptainName()
	o.CustomerName = s.cart.CustomerName()
	o.PaymentMode = s.cart.PaymentMode()
	if o.ID != "" {
		totals := model.ComputeTotals(o.Items)
		o.SubTotal = totals.SubTotal
		o.TaxAmount = totals.TaxAmount
		o.TotalAmount = totals.TotalAmount
	}
	return o
}

func (s *Session) close() {
	s.cancel()
	<-s.pusher.done
	s.pusher.drain()
}

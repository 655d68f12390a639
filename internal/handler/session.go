package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/terminal/internal/engine"
	"github.com/kiwari-pos/terminal/internal/kot"
	"github.com/kiwari-pos/terminal/internal/model"
	"github.com/shopspring/decimal"
)

// SyncEngine defines the engine methods the session handlers need.
// Satisfied by *engine.Engine.
type SyncEngine interface {
	Open(ctx context.Context, tableID string) (*engine.Session, error)
	Session(tableID string) (*engine.Session, error)
	Leave(tableID string)
}

// SessionHandler drives the open-table surface: cart edits, tickets,
// billing and settlement for the table a terminal operator has open.
type SessionHandler struct {
	engine SyncEngine
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(eng SyncEngine) *SessionHandler {
	return &SessionHandler{engine: eng}
}

// RegisterRoutes registers session endpoints on a router mounted under
// /tables/{tid}/session.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Open)
	r.Get("/", h.View)
	r.Delete("/", h.Leave)
	r.Patch("/", h.SetMeta)
	r.Post("/items", h.AddItem)
	r.Patch("/items/{lineID}", h.UpdateItem)
	r.Delete("/items", h.ClearCart)
	r.Post("/kot", h.IssueKOT)
	r.Post("/bill", h.PrintBill)
	r.Post("/settle", h.Settle)
}

// --- Request / Response types ---

type addItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	Price      string `json:"price"`
	TaxRate    string `json:"tax_rate"`
}

type updateItemRequest struct {
	Quantity *int    `json:"quantity"`
	Price    *string `json:"price"`
}

// metaRequest fields are pointers so PATCH can tell an omitted field (leave
// as is) from an explicit empty string (clear it).
type metaRequest struct {
	CaptainName  *string `json:"captain_name"`
	CustomerName *string `json:"customer_name"`
	PaymentMode  *string `json:"payment_mode"`
}

type settleRequest struct {
	PaymentMode string `json:"payment_mode"`
	CashierName string `json:"cashier_name"`
}

type sessionResponse struct {
	TableID string        `json:"table_id"`
	Latched bool          `json:"latched"`
	Order   orderResponse `json:"order"`
}

type orderResponse struct {
	ID           string            `json:"id,omitempty"`
	DailyBillNo  string            `json:"daily_bill_no,omitempty"`
	TableID      string            `json:"table_id,omitempty"`
	CaptainName  string            `json:"captain_name,omitempty"`
	CustomerName string            `json:"customer_name,omitempty"`
	PaymentMode  string            `json:"payment_mode,omitempty"`
	CashierName  string            `json:"cashier_name,omitempty"`
	Status       string            `json:"status,omitempty"`
	Items        []model.OrderItem `json:"items"`
	SubTotal     string            `json:"sub_total"`
	TaxAmount    string            `json:"tax_amount"`
	TotalAmount  string            `json:"total_amount"`
	KOTCount     int               `json:"kot_count"`
}

// toOrderResponse renders money at 2 decimals; internal values stay at full
// precision and rounding happens only here, at presentation.
func toOrderResponse(o model.Order) orderResponse {
	return orderResponse{
		ID:           o.ID,
		DailyBillNo:  o.DailyBillNo,
		TableID:      o.TableID,
		CaptainName:  o.CaptainName,
		CustomerName: o.CustomerName,
		PaymentMode:  o.PaymentMode,
		CashierName:  o.CashierName,
		Status:       o.Status,
		Items:        o.Items,
		SubTotal:     o.SubTotal.StringFixed(2),
		TaxAmount:    o.TaxAmount.StringFixed(2),
		TotalAmount:  o.TotalAmount.StringFixed(2),
		KOTCount:     o.KOTCount,
	}
}

func (h *SessionHandler) sessionView(s *engine.Session) sessionResponse {
	return sessionResponse{
		TableID: s.TableID(),
		Latched: s.Latched(),
		Order:   toOrderResponse(s.View()),
	}
}

// --- Handlers ---

// Open handles POST /tables/{tid}/session: the operator entered the table.
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.Open(r.Context(), chi.URLParam(r, "tid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionView(s))
}

// View handles GET /tables/{tid}/session.
func (h *SessionHandler) View(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.Session(chi.URLParam(r, "tid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionView(s))
}

// Leave handles DELETE /tables/{tid}/session: the operator navigated away.
func (h *SessionHandler) Leave(w http.ResponseWriter, r *http.Request) {
	h.engine.Leave(chi.URLParam(r, "tid"))
	w.WriteHeader(http.StatusNoContent)
}

// AddItem handles POST /tables/{tid}/session/items.
func (h *SessionHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.Session(chi.URLParam(r, "tid"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}
	taxRate := decimal.Zero
	if req.TaxRate != "" {
		taxRate, err = decimal.NewFromString(req.TaxRate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tax_rate"})
			return
		}
	}

	if _, err := s.AddItem(r.Context(), req.MenuItemID, req.Name, price, taxRate); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionView(s))
}

// UpdateItem handles PATCH /tables/{tid}/session/items/{lineID}: quantity
// (0 removes the line) and/or a per-order price override.
func (h *SessionHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.Session(chi.URLParam(r, "tid"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Quantity == nil && req.Price == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity or price is required"})
		return
	}

	lineID := chi.URLParam(r, "lineID")
	if req.Price != nil {
		price, err := decimal.NewFromString(*req.Price)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
			return
		}
		if _, err := s.SetPrice(r.Context(), lineID, price); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Quantity != nil {
		if _, err := s.SetQuantity(r.Context(), lineID, *req.Quantity); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, h.sessionView(s))
}

// SetMeta handles PATCH /tables/{tid}/session.
func (h *SessionHandler) SetMeta(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.Session(chi.URLParam(r, "tid"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req metaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := s.SetMeta(r.Context(), req.CaptainName, req.CustomerName, req.PaymentMode); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionView(s))
}

// ClearCart handles DELETE /tables/{tid}/session/items.
func (h *SessionHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.Session(chi.URLParam(r, "tid"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.ClearCart(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionView(s))
}

// IssueKOT handles POST /tables/{tid}/session/kot and returns both the
// stored ticket record and its print rendering.
func (h *SessionHandler) IssueKOT(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.Session(chi.URLParam(r, "tid"))
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.IssueKOT(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"kot":    rec,
		"render": kot.Render(rec, false),
	})
}

// PrintBill handles POST /tables/{tid}/session/bill.
func (h *SessionHandler) PrintBill(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.Session(chi.URLParam(r, "tid"))
	if err != nil {
		writeError(w, err)
		return
	}
	o, err := s.PrintBill(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// Settle handles POST /tables/{tid}/session/settle.
func (h *SessionHandler) Settle(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.Session(chi.URLParam(r, "tid"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	o, err := s.Settle(r.Context(), req.PaymentMode, req.CashierName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

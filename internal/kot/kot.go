// Package kot builds kitchen order tickets: immutable full-cart snapshots
// cut from an order at the instant of issuance.
package kot

import (
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/terminal/internal/model"
)

// BuildTicket cuts the next ticket for an order. Every ticket carries the
// entire current cart, not a delta against previously printed lines; the
// ticket's display number is the order's kotCount after this issuance.
func BuildTicket(o model.Order, now time.Time) model.KOTRecord {
	return model.KOTRecord{
		ID:          uuid.NewString(),
		OrderID:     o.ID,
		TicketNo:    o.KOTCount + 1,
		TableID:     o.TableID,
		CaptainName: o.CaptainName,
		Items:       model.CloneItems(o.Items),
		CreatedAt:   now,
	}
}

// Line is one printable ticket line.
type Line struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// RenderRequest is what the print collaborator consumes. Rendering a
// historical record (a reprint) mutates nothing.
type RenderRequest struct {
	TicketNo    int       `json:"ticketNo"`
	TableID     string    `json:"tableId"`
	CaptainName string    `json:"captainName,omitempty"`
	Lines       []Line    `json:"lines"`
	IssuedAt    time.Time `json:"issuedAt"`
	Reprint     bool      `json:"reprint"`
}

// Render converts a ticket record into a rendering request.
func Render(rec model.KOTRecord, reprint bool) RenderRequest {
	lines := make([]Line, len(rec.Items))
	for i, it := range rec.Items {
		lines[i] = Line{Name: it.Name, Quantity: it.Quantity}
	}
	return RenderRequest{
		TicketNo:    rec.TicketNo,
		TableID:     rec.TableID,
		CaptainName: rec.CaptainName,
		Lines:       lines,
		IssuedAt:    rec.CreatedAt,
		Reprint:     reprint,
	}
}

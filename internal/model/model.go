// Package model defines the document shapes shared by every terminal through
// the remote document store. Field names are wire names: documents written by
// one terminal must round-trip unchanged through another.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Table is one physical table on the floor.
type Table struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Status string `json:"status"`
	// CurrentOrderID is a weak reference resolved against the orders
	// collection, never an embedded pointer; empty when the table is free.
	CurrentOrderID string `json:"currentOrderId,omitempty"`
}

// OrderItem is one cart line. Name, Price and TaxRate are snapshots taken
// when the line is added; later catalog edits do not touch existing lines.
type OrderItem struct {
	ID         string          `json:"id"`
	MenuItemID string          `json:"menuItemId"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
	TaxRate    decimal.Decimal `json:"taxRate"`
	// PrintedQty tracks how many units have appeared on a kitchen ticket.
	// Carried for forward compatibility; tickets are currently always
	// full-cart snapshots, so nothing reads it yet.
	PrintedQty int `json:"printedQty,omitempty"`
}

// Order is the shared per-table order record.
type Order struct {
	ID string `json:"id"`
	// DailyBillNo is empty until the first bill/KOT assigns it, then a
	// 5-digit zero-padded decimal string, immutable from that point on.
	DailyBillNo  string          `json:"dailyBillNo,omitempty"`
	TableID      string          `json:"tableId"`
	CaptainName  string          `json:"captainName,omitempty"`
	Items        []OrderItem     `json:"items"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	SubTotal     decimal.Decimal `json:"subTotal"`
	TaxAmount    decimal.Decimal `json:"taxAmount"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	KOTCount     int             `json:"kotCount"`
	CustomerName string          `json:"customerName,omitempty"`
	PaymentMode  string          `json:"paymentMode,omitempty"`
	CashierName  string          `json:"cashierName,omitempty"`
}

// KOTRecord is an immutable kitchen-ticket snapshot, cut from an Order at
// the instant of issuance. Pure read model; never updated after creation.
type KOTRecord struct {
	ID          string      `json:"id"`
	OrderID     string      `json:"orderId"`
	TicketNo    int         `json:"ticketNo"`
	TableID     string      `json:"tableId"`
	CaptainName string      `json:"captainName,omitempty"`
	Items       []OrderItem `json:"items"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Totals holds the derived money fields of an order. Values stay at full
// precision; rounding to 2 decimals happens only at presentation.
type Totals struct {
	SubTotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	TotalAmount decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// ComputeTotals derives subtotal, tax and total from an item list.
//
//	subTotal  = Σ price·qty
//	taxAmount = Σ price·qty·taxRate/100
//	total     = subTotal + taxAmount
func ComputeTotals(items []OrderItem) Totals {
	sub := decimal.Zero
	tax := decimal.Zero
	for _, it := range items {
		line := it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		sub = sub.Add(line)
		tax = tax.Add(line.Mul(it.TaxRate).Div(hundred))
	}
	return Totals{SubTotal: sub, TaxAmount: tax, TotalAmount: sub.Add(tax)}
}

// CloneItems returns a deep copy of an item list so callers can hand out
// snapshots without sharing backing arrays.
func CloneItems(items []OrderItem) []OrderItem {
	if items == nil {
		return nil
	}
	out := make([]OrderItem, len(items))
	copy(out, items)
	return out
}

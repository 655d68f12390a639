package engine

import (
	"encoding/json"

	"github.com/kiwari-pos/terminal/internal/model"
)

// The canonical signature is a stable serialization of the fields a terminal
// can edit: items (in list order), captain, customer, payment mode and order
// status. Comparing the signature of an incoming snapshot against the last
// one this session produced is how self-echoes are told apart from real
// remote changes. It is a heuristic, not causal tracking: two genuinely
// distinct histories that serialize identically are indistinguishable.

type sigItem struct {
	MenuItemID string `json:"m"`
	Name       string `json:"n"`
	Price      string `json:"p"`
	Quantity   int    `json:"q"`
	TaxRate    string `json:"t"`
}

type sigPayload struct {
	Items    []sigItem `json:"items"`
	Captain  string    `json:"captain"`
	Customer string    `json:"customer"`
	Payment  string    `json:"payment"`
	Status   string    `json:"status"`
}

func signature(items []model.OrderItem, captain, customer, payment, status string) string {
	p := sigPayload{
		Items:    make([]sigItem, len(items)),
		Captain:  captain,
		Customer: customer,
		Payment:  payment,
		Status:   status,
	}
	for i, it := range items {
		p.Items[i] = sigItem{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Price:      it.Price.String(),
			Quantity:   it.Quantity,
			TaxRate:    it.TaxRate.String(),
		}
	}
	raw, _ := json.Marshal(p)
	return string(raw)
}

func orderSignature(o model.Order) string {
	return signature(o.Items, o.CaptainName, o.CustomerName, o.PaymentMode, o.Status)
}

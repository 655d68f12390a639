package enum

// --- Table occupancy state machine ---

const (
	TableStatusAvailable = "AVAILABLE"
	TableStatusOccupied  = "OCCUPIED"
	TableStatusBilling   = "BILLING"
)

// --- Order lifecycle state machine ---

const (
	OrderStatusPending = "PENDING"
	OrderStatusBilled  = "BILLED"
	OrderStatusSettled = "SETTLED"
)

// --- Configurable labels (no store-side constraint) ---

const (
	PaymentModeCash = "CASH"
	PaymentModeCard = "CARD"
	PaymentModeUPI  = "UPI"
)

// ValidPaymentMode reports whether s is a known payment mode.
func ValidPaymentMode(s string) bool {
	switch s {
	case PaymentModeCash, PaymentModeCard, PaymentModeUPI:
		return true
	}
	return false
}

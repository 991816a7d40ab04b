package advance

import (
	"time"

	"github.com/google/uuid"
)

// AdvancePayment is money taken from (or returned to) a patient ahead of
// final billing. Refunds are rows with IsRefund set rather than negative
// amounts, so both directions stay auditable.
type AdvancePayment struct {
	ID        uuid.UUID `json:"id"`
	VisitUUID uuid.UUID `json:"visit_uuid"`
	Amount    float64   `json:"amount"`
	Mode      string    `json:"mode"`
	Reference string    `json:"reference,omitempty"`
	IsRefund  bool      `json:"is_refund"`
	PaidAt    time.Time `json:"paid_at"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	ModeCash   = "cash"
	ModeCard   = "card"
	ModeUPI    = "upi"
	ModeCheque = "cheque"
	ModeNEFT   = "neft"
)

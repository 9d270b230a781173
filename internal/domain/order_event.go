package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Routing keys of events published after a commit.
const (
	EventOrderCreated        = "order.created"
	EventOrderPaid           = "order.paid"
	EventOrderPaymentFailed  = "order.payment_failed"
	EventOrderStatusChanged  = "order.status_changed"
	EventOrderReturned       = "order.returned"
	EventOrderRefunded       = "order.refunded"
	EventWalletCredited      = "wallet.credited"
	EventWalletDebited       = "wallet.debited"
	EventWithdrawalCompleted = "wallet.withdrawal_completed"
	EventWithdrawalFailed    = "wallet.withdrawal_failed"
	EventInventoryChanged    = "inventory.changed"
)

type Event struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	UserID     string           `json:"userId,omitempty"`
	OrderID    string           `json:"orderId,omitempty"`
	TxnID      string           `json:"transactionId,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Status     string           `json:"status,omitempty"`
	ProductIDs []uint64         `json:"productIds,omitempty"`
	OccurredAt time.Time        `json:"occurredAt"`
}

func NewEvent(name string) Event {
	return Event{ID: NewID(), Name: name, OccurredAt: time.Now().UTC()}
}

func (e Event) WithAmount(d decimal.Decimal) Event {
	e.Amount = &d
	return e
}

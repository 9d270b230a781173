package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusReturned   OrderStatus = "returned"
	StatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusReturned, StatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending         PaymentStatus = "pending"
	PaymentPaid            PaymentStatus = "paid"
	PaymentFailed          PaymentStatus = "failed"
	PaymentRefundInitiated PaymentStatus = "refund_initiated"
	PaymentRefunded        PaymentStatus = "refunded"
)

const PaymentMethodWallet = "wallet"

// ShippingInfo is copied onto the order at checkout.
type ShippingInfo struct {
	FullName   string `json:"fullName" gorm:"size:128"`
	Phone      string `json:"phone" gorm:"size:32"`
	Address    string `json:"address" gorm:"size:255"`
	City       string `json:"city" gorm:"size:64"`
	State      string `json:"state" gorm:"size:64"`
	PostalCode string `json:"postalCode" gorm:"size:16"`
	Country    string `json:"country" gorm:"size:64"`
}

// OrderItem is a price snapshot taken at checkout. It is never recomputed
// from live catalog data.
type OrderItem struct {
	ID        uint64          `json:"-" gorm:"primaryKey;autoIncrement"`
	OrderID   string          `json:"-" gorm:"size:36;index;not null"`
	ProductID uint64          `json:"productId" gorm:"not null"`
	Name      string          `json:"name" gorm:"size:255"`
	Image     string          `json:"image,omitempty" gorm:"size:512"`
	UnitPrice decimal.Decimal `json:"unitPrice" gorm:"type:decimal(14,2);not null"`
	Quantity  int64           `json:"quantity" gorm:"not null"`
}

type Order struct {
	ID              string          `json:"id" gorm:"primaryKey;size:36"`
	UserID          string          `json:"userId" gorm:"size:64;not null;index"`
	Items           []OrderItem     `json:"items" gorm:"foreignKey:OrderID;references:ID"`
	Subtotal        decimal.Decimal `json:"subtotal" gorm:"type:decimal(14,2);not null"`
	Tax             decimal.Decimal `json:"tax" gorm:"type:decimal(14,2);not null"`
	ShippingCharges decimal.Decimal `json:"shippingCharges" gorm:"type:decimal(14,2);not null"`
	TotalAmount     decimal.Decimal `json:"totalAmount" gorm:"type:decimal(14,2);not null"`
	Shipping        ShippingInfo    `json:"shipping" gorm:"embedded;embeddedPrefix:ship_"`
	Status          OrderStatus     `json:"status" gorm:"size:16;not null;index"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus" gorm:"size:24;not null;index"`
	PaymentMethod   string          `json:"paymentMethod" gorm:"size:32"`
	GatewayOrderID  *string         `json:"gatewayOrderId,omitempty" gorm:"size:64;uniqueIndex"`
	GatewayTxnID    string          `json:"gatewayTxnId,omitempty" gorm:"size:128"`
	IsReturned      bool            `json:"isReturned"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	ReturnedAt      *time.Time      `json:"returnedAt,omitempty"`
	ReturnedReason  string          `json:"returnedReason,omitempty" gorm:"size:512"`
	CreatedAt       time.Time       `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt       time.Time       `json:"updatedAt" gorm:"autoUpdateTime"`
}

// OrderGuard is the expected prior state of a conditional order update.
// Empty fields match anything.
type OrderGuard struct {
	Status        OrderStatus
	PaymentStatus PaymentStatus
}

func (g OrderGuard) Matches(o *Order) bool {
	if g.Status != "" && o.Status != g.Status {
		return false
	}
	if g.PaymentStatus != "" && o.PaymentStatus != g.PaymentStatus {
		return false
	}
	return true
}

// OrderChanges lists the fields a transition writes. Nil fields are left alone.
type OrderChanges struct {
	Status         *OrderStatus
	PaymentStatus  *PaymentStatus
	PaymentMethod  *string
	GatewayTxnID   *string
	IsReturned     *bool
	PaidAt         *time.Time
	DeliveredAt    *time.Time
	ReturnedAt     *time.Time
	ReturnedReason *string
}

func (c OrderChanges) Apply(o *Order) {
	if c.Status != nil {
		o.Status = *c.Status
	}
	if c.PaymentStatus != nil {
		o.PaymentStatus = *c.PaymentStatus
	}
	if c.PaymentMethod != nil {
		o.PaymentMethod = *c.PaymentMethod
	}
	if c.GatewayTxnID != nil {
		o.GatewayTxnID = *c.GatewayTxnID
	}
	if c.IsReturned != nil {
		o.IsReturned = *c.IsReturned
	}
	if c.PaidAt != nil {
		t := *c.PaidAt
		o.PaidAt = &t
	}
	if c.DeliveredAt != nil {
		t := *c.DeliveredAt
		o.DeliveredAt = &t
	}
	if c.ReturnedAt != nil {
		t := *c.ReturnedAt
		o.ReturnedAt = &t
	}
	if c.ReturnedReason != nil {
		o.ReturnedReason = *c.ReturnedReason
	}
}

// CanTransition reports whether an admin may move an order from one
// fulfillment status to another. Delivered orders may only be returned and
// cancelled or returned orders are final.
func CanTransition(from, to OrderStatus) bool {
	if !to.Valid() || from == to {
		return false
	}
	switch from {
	case StatusCancelled, StatusReturned:
		return false
	case StatusDelivered:
		return to == StatusReturned
	}
	// returns are only legal from delivered
	return to != StatusReturned && to != StatusPending
}

func Ptr[T any](v T) *T { return &v }

package validation

import (
	"checkout-service/internal/domain"

	"github.com/shopspring/decimal"
)

type AddCartItemRequest struct {
	ProductID uint64 `json:"productId" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"required,min=1,max=1000"`
}

// UpdateCartItemRequest takes a pointer so an explicit zero is not
// mistaken for a missing field. Zero removes the line.
type UpdateCartItemRequest struct {
	Quantity *int64 `json:"quantity" validate:"required,min=0,max=1000"`
}

type ShippingRequest struct {
	FullName   string `json:"fullName" validate:"required,max=128"`
	Phone      string `json:"phone" validate:"required,min=7,max=32"`
	Address    string `json:"address" validate:"required,max=255"`
	City       string `json:"city" validate:"required,max=64"`
	State      string `json:"state" validate:"max=64"`
	PostalCode string `json:"postalCode" validate:"required,max=16"`
	Country    string `json:"country" validate:"required,max=64"`
}

func (r ShippingRequest) ToDomain() domain.ShippingInfo {
	return domain.ShippingInfo{
		FullName:   r.FullName,
		Phone:      r.Phone,
		Address:    r.Address,
		City:       r.City,
		State:      r.State,
		PostalCode: r.PostalCode,
		Country:    r.Country,
	}
}

type CheckoutRequest struct {
	Shipping ShippingRequest `json:"shipping" validate:"required"`
}

type DepositRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

type WithdrawRequest struct {
	Amount      decimal.Decimal      `json:"amount" validate:"required,gt=0"`
	Beneficiary domain.PayoutDetails `json:"beneficiary" validate:"required"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing shipped delivered returned cancelled"`
}

type ReturnRequest struct {
	Reason string `json:"reason" validate:"max=512"`
}

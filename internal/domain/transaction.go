package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxnDeposit        TransactionType = "deposit"
	TxnWithdrawal     TransactionType = "withdrawal"
	TxnOrderPayment   TransactionType = "order_payment"
	TxnRefundToWallet TransactionType = "refund_to_wallet"
)

type TransactionStatus string

const (
	TxnPending         TransactionStatus = "pending"
	TxnCompleted       TransactionStatus = "completed"
	TxnFailed          TransactionStatus = "failed"
	TxnRefundInitiated TransactionStatus = "refund_initiated"
	TxnRefunded        TransactionStatus = "refunded"
)

// PayoutDetails are the beneficiary coordinates of a withdrawal. They are
// sealed before they reach the database and opened on read.
type PayoutDetails struct {
	AccountHolder string `json:"accountHolder" validate:"required,max=128"`
	AccountNumber string `json:"accountNumber,omitempty" validate:"required_without=UPI,omitempty,numeric,min=6,max=20"`
	IFSC          string `json:"ifsc,omitempty" validate:"required_with=AccountNumber,omitempty,len=11,alphanum"`
	UPI           string `json:"upi,omitempty" validate:"required_without=AccountNumber,omitempty,contains=@,max=64"`
}

// Masked hides everything but the last four characters of the account.
func (p PayoutDetails) Masked() PayoutDetails {
	out := p
	out.AccountNumber = mask(p.AccountNumber)
	out.UPI = mask(p.UPI)
	return out
}

func mask(s string) string {
	if len(s) <= 4 {
		return s
	}
	b := []byte(s)
	for i := 0; i < len(b)-4; i++ {
		b[i] = '*'
	}
	return string(b)
}

// Transaction is a ledger entry. Its status only moves forward.
type Transaction struct {
	ID                string            `json:"id" gorm:"primaryKey;size:36"`
	UserID            string            `json:"userId" gorm:"size:64;not null;index"`
	Amount            decimal.Decimal   `json:"amount" gorm:"type:decimal(14,2);not null"`
	Type              TransactionType   `json:"type" gorm:"size:24;not null;index"`
	Status            TransactionStatus `json:"status" gorm:"size:24;not null;index"`
	PaymentGateway    string            `json:"paymentGateway" gorm:"size:32"`
	GatewayOrderID    *string           `json:"gatewayOrderId,omitempty" gorm:"size:64;uniqueIndex"`
	GatewayTxnID      string            `json:"gatewayTxnId,omitempty" gorm:"size:128"`
	GatewayPayoutID   *string           `json:"gatewayPayoutId,omitempty" gorm:"size:128;uniqueIndex"`
	OrderRef          *string           `json:"orderRef,omitempty" gorm:"size:36;index"`
	WithdrawalDetails *PayoutDetails    `json:"withdrawalDetails,omitempty" gorm:"-"`
	SealedDetails     []byte            `json:"-" gorm:"column:withdrawal_details;type:varbinary(1024)"`
	Reason            string            `json:"reason,omitempty" gorm:"size:512"`
	GatewayResponse   string            `json:"-" gorm:"type:text"`
	CreatedAt         time.Time         `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt         time.Time         `json:"updatedAt" gorm:"autoUpdateTime"`
}

// TransactionChanges lists the fields a ledger transition writes.
type TransactionChanges struct {
	Status          *TransactionStatus
	GatewayTxnID    *string
	GatewayPayoutID *string
	Reason          *string
	GatewayResponse *string
}

func (c TransactionChanges) Apply(t *Transaction) {
	if c.Status != nil {
		t.Status = *c.Status
	}
	if c.GatewayTxnID != nil {
		t.GatewayTxnID = *c.GatewayTxnID
	}
	if c.GatewayPayoutID != nil {
		id := *c.GatewayPayoutID
		t.GatewayPayoutID = &id
	}
	if c.Reason != nil {
		t.Reason = *c.Reason
	}
	if c.GatewayResponse != nil {
		t.GatewayResponse = *c.GatewayResponse
	}
}

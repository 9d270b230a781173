package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet balance only moves together with a ledger entry.
type Wallet struct {
	UserID    string          `json:"userId" gorm:"primaryKey;size:64"`
	Balance   decimal.Decimal `json:"balance" gorm:"type:decimal(14,2);not null"`
	CreatedAt time.Time       `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time       `json:"updatedAt" gorm:"autoUpdateTime"`
}

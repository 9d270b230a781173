package domain

import "time"

// Inventory is the stock ledger row of one product. Quantity is the sellable
// stock; Reserved counts units held by carts that have not been settled yet.
type Inventory struct {
	ProductID uint64    `json:"productId" gorm:"primaryKey;autoIncrement:false"`
	Quantity  int64     `json:"quantity" gorm:"not null;default:0"`
	Reserved  int64     `json:"reserved" gorm:"not null;default:0"`
	Location  string    `json:"warehouseLocation,omitempty" gorm:"size:64"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (i Inventory) IsAvailable() bool {
	return i.Quantity > 0
}

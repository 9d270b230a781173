package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartLine struct {
	ID              uint64          `json:"-" gorm:"primaryKey;autoIncrement"`
	UserID          string          `json:"-" gorm:"size:64;index;not null"`
	Position        int             `json:"-" gorm:"not null"`
	ProductID       uint64          `json:"productId" gorm:"not null"`
	Name            string          `json:"name" gorm:"size:255"`
	Image           string          `json:"image,omitempty" gorm:"size:512"`
	Quantity        int64           `json:"quantity" gorm:"not null"`
	PriceAtAddition decimal.Decimal `json:"priceAtAddition" gorm:"type:decimal(14,2);not null"`
	AddedAt         time.Time       `json:"addedAt"`
}

// Cart is owned by exactly one user. Every unit in it is reserved in the
// inventory ledger until the cart is checked out, edited or swept.
type Cart struct {
	UserID    string     `json:"userId" gorm:"primaryKey;size:64"`
	Lines     []CartLine `json:"lines" gorm:"foreignKey:UserID;references:UserID"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty" gorm:"index"`
	CreatedAt time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (c *Cart) Line(productID uint64) *CartLine {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return &c.Lines[i]
		}
	}
	return nil
}

// Put replaces the line for the product or appends a new one.
func (c *Cart) Put(line CartLine) {
	line.UserID = c.UserID
	if existing := c.Line(line.ProductID); existing != nil {
		line.ID = existing.ID
		line.Position = existing.Position
		line.AddedAt = existing.AddedAt
		*existing = line
		return
	}
	line.Position = len(c.Lines)
	c.Lines = append(c.Lines, line)
}

func (c *Cart) Remove(productID uint64) {
	out := c.Lines[:0]
	for _, l := range c.Lines {
		if l.ProductID != productID {
			out = append(out, l)
		}
	}
	for i := range out {
		out[i].Position = i
	}
	c.Lines = out
}

// Consume takes up to qty units of a product out of the cart and returns how
// many were there. Lines that reach zero are dropped.
func (c *Cart) Consume(productID uint64, qty int64) int64 {
	l := c.Line(productID)
	if l == nil {
		return 0
	}
	if l.Quantity <= qty {
		taken := l.Quantity
		c.Remove(productID)
		return taken
	}
	l.Quantity -= qty
	return qty
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c *Cart) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// Extend moves the expiry out to until. A later expiry already on the cart,
// such as a payment hold, is kept.
func (c *Cart) Extend(until *time.Time) {
	if until == nil {
		return
	}
	if c.ExpiresAt != nil && c.ExpiresAt.After(*until) {
		return
	}
	t := *until
	c.ExpiresAt = &t
}

func (c *Cart) Clone() *Cart {
	out := *c
	out.Lines = append([]CartLine(nil), c.Lines...)
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		out.ExpiresAt = &t
	}
	return &out
}

package repository

import (
	"context"
	"errors"
)

var (
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInsufficientReserved = errors.New("reserved stock too low")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrDuplicate            = errors.New("duplicate record")
)

// Store groups the repositories that must change together.
type Store interface {
	Inventory() InventoryRepository
	Carts() CartRepository
	Orders() OrderRepository
	Wallets() WalletRepository
	Transactions() TransactionRepository
	// WithTx runs fn against a transactional view of the store. Everything fn
	// wrote is committed when it returns nil and rolled back otherwise.
	// Nested calls join the outer transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

package mysql

import (
	"checkout-service/internal/repository"
	"checkout-service/internal/security"
	"context"

	"gorm.io/gorm"
)

type Store struct {
	db     *gorm.DB
	sealer security.Sealer
	inTx   bool
}

func NewStore(db *gorm.DB, sealer security.Sealer) *Store {
	return &Store{db: db, sealer: sealer}
}

func (s *Store) Inventory() repository.InventoryRepository { return &inventoryRepo{db: s.db} }
func (s *Store) Carts() repository.CartRepository          { return &cartRepo{db: s.db, lock: s.inTx} }
func (s *Store) Orders() repository.OrderRepository        { return &orderRepo{db: s.db} }
func (s *Store) Wallets() repository.WalletRepository      { return &walletRepo{db: s.db} }
func (s *Store) Transactions() repository.TransactionRepository {
	return &transactionRepo{db: s.db, codec: detailsCodec{sealer: s.sealer}}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, sealer: s.sealer, inTx: true})
	})
}

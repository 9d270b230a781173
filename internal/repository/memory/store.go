// Package memory is an in-process Store with the same transactional
// semantics as the MySQL one. Transactions are serialized: WithTx works on a
// copy of the state and swaps it in on success.
package memory

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/repository"
	"context"
	"sync"
)

type state struct {
	inventory    map[uint64]domain.Inventory
	carts        map[string]*domain.Cart
	orders       map[string]*domain.Order
	wallets      map[string]domain.Wallet
	transactions map[string]*domain.Transaction
	nextID       uint64
}

func newState() *state {
	return &state{
		inventory:    map[uint64]domain.Inventory{},
		carts:        map[string]*domain.Cart{},
		orders:       map[string]*domain.Order{},
		wallets:      map[string]domain.Wallet{},
		transactions: map[string]*domain.Transaction{},
	}
}

func (s *state) clone() *state {
	out := newState()
	out.nextID = s.nextID
	for k, v := range s.inventory {
		out.inventory[k] = v
	}
	for k, v := range s.carts {
		out.carts[k] = v.Clone()
	}
	for k, v := range s.orders {
		out.orders[k] = cloneOrder(v)
	}
	for k, v := range s.wallets {
		out.wallets[k] = v
	}
	for k, v := range s.transactions {
		out.transactions[k] = cloneTransaction(v)
	}
	return out
}

func (s *state) id() uint64 {
	s.nextID++
	return s.nextID
}

func cloneOrder(o *domain.Order) *domain.Order {
	out := *o
	out.Items = append([]domain.OrderItem(nil), o.Items...)
	return &out
}

func cloneTransaction(t *domain.Transaction) *domain.Transaction {
	out := *t
	if t.WithdrawalDetails != nil {
		d := *t.WithdrawalDetails
		out.WithdrawalDetails = &d
	}
	return &out
}

// view is either the committed state guarded by the store mutex or the
// private copy of a running transaction.
type view struct {
	root *Store
	tx   *state
}

func (v view) do(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.root.mu.Lock()
	defer v.root.mu.Unlock()
	return fn(v.root.st)
}

type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) view() view { return view{root: s} }

func (s *Store) Inventory() repository.InventoryRepository { return &inventoryRepo{v: s.view()} }
func (s *Store) Carts() repository.CartRepository          { return &cartRepo{v: s.view()} }
func (s *Store) Orders() repository.OrderRepository        { return &orderRepo{v: s.view()} }
func (s *Store) Wallets() repository.WalletRepository      { return &walletRepo{v: s.view()} }
func (s *Store) Transactions() repository.TransactionRepository {
	return &transactionRepo{v: s.view()}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&txStore{v: view{tx: work}}); err != nil {
		return err
	}
	s.st = work
	return nil
}

type txStore struct {
	v view
}

func (t *txStore) Inventory() repository.InventoryRepository { return &inventoryRepo{v: t.v} }
func (t *txStore) Carts() repository.CartRepository          { return &cartRepo{v: t.v} }
func (t *txStore) Orders() repository.OrderRepository        { return &orderRepo{v: t.v} }
func (t *txStore) Wallets() repository.WalletRepository      { return &walletRepo{v: t.v} }
func (t *txStore) Transactions() repository.TransactionRepository {
	return &transactionRepo{v: t.v}
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return fn(t)
}

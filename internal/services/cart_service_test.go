package services

import (
	"checkout-service/internal/domain"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartService_AddItem(t *testing.T) {
	tests := []struct {
		name          string
		adds          []int64
		expectedKind  domain.Kind
		expectedQty   int64
		expectedStock int64
	}{
		{
			name:          "single add reserves stock",
			adds:          []int64{2},
			expectedQty:   2,
			expectedStock: 3,
		},
		{
			name:          "second add merges into the line",
			adds:          []int64{2, 1},
			expectedQty:   3,
			expectedStock: 2,
		},
		{
			name:          "whole stock can be reserved",
			adds:          []int64{5},
			expectedQty:   5,
			expectedStock: 0,
		},
		{
			name:         "more than stock",
			adds:         []int64{6},
			expectedKind: domain.KindInsufficientStock,
		},
		{
			name:         "zero quantity",
			adds:         []int64{0},
			expectedKind: domain.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t).withProduct(CreateMockProduct(TestProductID, TestProductName, "100", 5))
			ctx := context.Background()

			var (
				cart *domain.Cart
				err  error
			)
			for _, qty := range tt.adds {
				cart, err = f.carts.AddItem(ctx, TestUserID, TestProductID, qty)
			}

			if tt.expectedKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.expectedKind, domain.KindOf(err))
				assert.Nil(t, cart)
				return
			}
			require.NoError(t, err)
			require.Len(t, cart.Lines, 1)
			assert.Equal(t, tt.expectedQty, cart.Lines[0].Quantity)
			assert.True(t, dec("100").Equal(cart.Lines[0].PriceAtAddition))
			require.NotNil(t, cart.ExpiresAt)
			assert.WithinDuration(t, time.Now().Add(TestCartTTL), *cart.ExpiresAt, time.Minute)

			inv := f.inventory(t, TestProductID)
			assert.Equal(t, tt.expectedStock, inv.Quantity)
			assert.Equal(t, tt.expectedQty, inv.Reserved)
		})
	}
}

func TestCartService_AddItem_InsufficientStockLeavesNothingBehind(t *testing.T) {
	f := newFixture(t).withProduct(CreateMockProduct(TestProductID, TestProductName, "100", 5))
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, TestUserID, TestProductID, 4)
	require.NoError(t, err)

	_, err = f.carts.AddItem(ctx, TestUserID, TestProductID, 2)
	require.Error(t, err)
	assert.Equal(t, domain.KindInsufficientStock, domain.KindOf(err))
	assert.Contains(t, err.Error(), "available 1")

	cart, err := f.carts.GetCart(ctx, TestUserID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), cart.Lines[0].Quantity)
	inv := f.inventory(t, TestProductID)
	assert.Equal(t, int64(1), inv.Quantity)
	assert.Equal(t, int64(4), inv.Reserved)
}

func TestCartService_AddItem_UnavailableProduct(t *testing.T) {
	p := CreateMockProduct(TestProductID, TestProductName, "100", 5)
	p.IsAvailable = false
	f := newFixture(t).withProduct(p)

	_, err := f.carts.AddItem(context.Background(), TestUserID, TestProductID, 1)

	require.Error(t, err)
	assert.Equal(t, domain.KindProductUnavailable, domain.KindOf(err))
	f.catalog.AssertExpectations(t)
}

func TestCartService_UpdateQuantity(t *testing.T) {
	tests := []struct {
		name          string
		qty           int64
		expectedLines int
		expectedStock int64
		expectedHeld  int64
		expectedKind  domain.Kind
	}{
		{name: "reduce releases the difference", qty: 1, expectedLines: 1, expectedStock: 4, expectedHeld: 1},
		{name: "increase reserves the difference", qty: 5, expectedLines: 1, expectedStock: 0, expectedHeld: 5},
		{name: "zero removes the line", qty: 0, expectedLines: 0, expectedStock: 5, expectedHeld: 0},
		{name: "unchanged", qty: 3, expectedLines: 1, expectedStock: 2, expectedHeld: 3},
		{name: "beyond stock", qty: 6, expectedKind: domain.KindInsufficientStock, expectedStock: 2, expectedHeld: 3},
		{name: "negative", qty: -1, expectedKind: domain.KindValidation, expectedStock: 2, expectedHeld: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t).withProduct(CreateMockProduct(TestProductID, TestProductName, "100", 5))
			ctx := context.Background()
			_, err := f.carts.AddItem(ctx, TestUserID, TestProductID, 3)
			require.NoError(t, err)

			cart, err := f.carts.UpdateQuantity(ctx, TestUserID, TestProductID, tt.qty)

			if tt.expectedKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.expectedKind, domain.KindOf(err))
			} else {
				require.NoError(t, err)
				assert.Len(t, cart.Lines, tt.expectedLines)
			}
			inv := f.inventory(t, TestProductID)
			assert.Equal(t, tt.expectedStock, inv.Quantity)
			assert.Equal(t, tt.expectedHeld, inv.Reserved)
		})
	}
}

func TestCartService_UpdateQuantity_ReduceAfterProductWithdrawn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := CreateMockProduct(TestProductID, TestProductName, "100", 5)
	f.catalog.On("GetProduct", ctx, TestProductID).Return(p, nil).Once()
	_, err := f.carts.AddItem(ctx, TestUserID, TestProductID, 3)
	require.NoError(t, err)

	withdrawn := *p
	withdrawn.IsAvailable = false
	f.catalog.On("GetProduct", ctx, TestProductID).Return(&withdrawn, nil)

	cart, err := f.carts.UpdateQuantity(ctx, TestUserID, TestProductID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cart.Lines[0].Quantity)
	assert.True(t, dec("100").Equal(cart.Lines[0].PriceAtAddition))

	_, err = f.carts.UpdateQuantity(ctx, TestUserID, TestProductID, 2)
	require.Error(t, err)
	assert.Equal(t, domain.KindProductUnavailable, domain.KindOf(err))
}

func TestCartService_RemoveItem(t *testing.T) {
	f := newFixture(t).
		withProduct(CreateMockProduct(1, "Kettle", "100", 5)).
		withProduct(CreateMockProduct(2, "Mug", "20", 10))
	ctx := context.Background()
	_, err := f.carts.AddItem(ctx, TestUserID, 1, 2)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, TestUserID, 2, 4)
	require.NoError(t, err)

	cart, err := f.carts.RemoveItem(ctx, TestUserID, 1)
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, uint64(2), cart.Lines[0].ProductID)
	assert.Equal(t, int64(5), f.inventory(t, 1).Quantity)
	assert.Equal(t, int64(0), f.inventory(t, 1).Reserved)

	_, err = f.carts.RemoveItem(ctx, TestUserID, 1)
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	cart, err = f.carts.RemoveItem(ctx, TestUserID, 2)
	require.NoError(t, err)
	assert.Empty(t, cart.Lines)

	stored, err := f.store.Carts().GetByUser(ctx, TestUserID)
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.Equal(t, int64(10), f.inventory(t, 2).Quantity)
}

func TestCartService_GetCart_Empty(t *testing.T) {
	f := newFixture(t)

	cart, err := f.carts.GetCart(context.Background(), "nobody")

	require.NoError(t, err)
	assert.Equal(t, "nobody", cart.UserID)
	assert.NotNil(t, cart.Lines)
	assert.Empty(t, cart.Lines)
}

func TestCartService_EditKeepsPaymentHold(t *testing.T) {
	f := newFixture(t).
		withProduct(CreateMockProduct(TestProductID, TestProductName, "100", 5)).
		withProduct(CreateMockProduct(2, "Other Product", "10", 5))
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, TestUserID, TestProductID, 2)
	require.NoError(t, err)
	f.gatewayOrder(t)

	cart, err := f.carts.AddItem(ctx, TestUserID, 2, 1)
	require.NoError(t, err)
	require.NotNil(t, cart.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *cart.ExpiresAt, time.Minute)

	cart, err = f.carts.UpdateQuantity(ctx, TestUserID, 2, 3)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *cart.ExpiresAt, time.Minute)

	cart, err = f.carts.RemoveItem(ctx, TestUserID, 2)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *cart.ExpiresAt, time.Minute)
}

func TestCart_Extend(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Hour)
	sooner := now.Add(time.Minute)

	cart := &domain.Cart{}
	cart.Extend(&sooner)
	assert.Equal(t, sooner, *cart.ExpiresAt)

	cart.Extend(&later)
	assert.Equal(t, later, *cart.ExpiresAt)

	cart.Extend(&sooner)
	assert.Equal(t, later, *cart.ExpiresAt)

	cart.Extend(nil)
	assert.Equal(t, later, *cart.ExpiresAt)
}

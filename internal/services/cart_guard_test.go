package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/hanko-field/storefront/internal/domain"
)

var cartNow = time.Date(2025, time.July, 4, 18, 0, 0, 0, time.UTC)

func openSeller(id string) domain.Seller {
	return domain.Seller{ID: id, Name: "Seller " + id, ServiceType: "restaurant", IsOpen: true}
}

func sellerItem(id, sellerID string, price int64) domain.Item {
	return domain.Item{ID: id, SellerID: sellerID, Name: "item " + id, BasePrice: price, InStock: true}
}

func newTestGuard() CartGuard {
	return NewCartGuard(func() time.Time { return cartNow }, sequentialIDs("line"))
}

func TestCartGuardAddsToEmptyCart(t *testing.T) {
	guard := newTestGuard()
	item := sellerItem("a", "s1", 1000)
	item.DiscountPercentage = 10

	result := guard.AddItem(domain.CartSession{CustomerID: "c1"}, item, openSeller("s1"), 2)
	require.Equal(t, AddOutcomeAdded, result.Outcome)
	require.NoError(t, result.Err())
	require.NotNil(t, result.Line)
	assert.Equal(t, "line-1", result.Line.ID)
	assert.Equal(t, int64(900), result.Line.UnitPrice)
	assert.Equal(t, CartStateSingleSeller, CartStateOf(result.Cart))
	assert.Equal(t, "s1", result.Cart.SellerID())
	assert.Equal(t, cartNow, result.Cart.UpdatedAt)
}

func TestCartGuardSameSellerAppends(t *testing.T) {
	guard := newTestGuard()
	first := guard.AddItem(domain.CartSession{CustomerID: "c1"}, sellerItem("a", "s1", 100), openSeller("s1"), 1)
	second := guard.AddItem(first.Cart, sellerItem("b", "s1", 200), openSeller("s1"), 1)

	require.Equal(t, AddOutcomeAdded, second.Outcome)
	require.Len(t, second.Cart.Items, 2)
	require.Len(t, first.Cart.Items, 1, "input cart must not be modified")
	for _, line := range second.Cart.Items {
		assert.Equal(t, "s1", line.Seller.ID)
	}
}

func TestCartGuardDuplicateRedirectsToExistingLine(t *testing.T) {
	guard := newTestGuard()
	first := guard.AddItem(domain.CartSession{CustomerID: "c1"}, sellerItem("a", "s1", 100), openSeller("s1"), 1)
	again := guard.AddItem(first.Cart, sellerItem("a", "s1", 100), openSeller("s1"), 3)

	require.Equal(t, AddOutcomeAlreadyInCart, again.Outcome)
	require.NoError(t, again.Err())
	require.NotNil(t, again.ExistingLine)
	assert.Equal(t, first.Line.ID, again.ExistingLine.ID)
	assert.Len(t, again.Cart.Items, 1)
}

func TestCartGuardOtherSellerIsPending(t *testing.T) {
	guard := newTestGuard()
	first := guard.AddItem(domain.CartSession{CustomerID: "c1"}, sellerItem("a", "s1", 100), openSeller("s1"), 1)
	conflict := guard.AddItem(first.Cart, sellerItem("b", "s2", 200), openSeller("s2"), 2)

	require.Equal(t, AddOutcomeConflictPending, conflict.Outcome)
	assert.True(t, errors.Is(conflict.Err(), ErrSellerConflict))
	require.NotNil(t, conflict.Pending)
	assert.Equal(t, PendingCartItem{ItemID: "b", Quantity: 2, SellerID: "s2", SellerName: "Seller s2"}, *conflict.Pending)
	assert.Equal(t, first.Cart, conflict.Cart, "conflict leaves the cart untouched")
}

func TestCartGuardChecksAvailabilityFirst(t *testing.T) {
	guard := newTestGuard()
	first := guard.AddItem(domain.CartSession{CustomerID: "c1"}, sellerItem("a", "s1", 100), openSeller("s1"), 1)

	soldOut := sellerItem("b", "s2", 100)
	soldOut.InStock = false
	result := guard.AddItem(first.Cart, soldOut, openSeller("s2"), 1)
	require.Equal(t, AddOutcomeUnavailable, result.Outcome, "unavailable wins over seller conflict")
	assert.Equal(t, UnavailableOutOfStock, result.UnavailableReason)
	assert.True(t, errors.Is(result.Err(), ErrUnavailable))

	closed := openSeller("s1")
	closed.IsOpen = false
	result = guard.AddItem(first.Cart, sellerItem("a", "s1", 100), closed, 1)
	require.Equal(t, AddOutcomeUnavailable, result.Outcome, "unavailable wins over duplicate")
	assert.Equal(t, UnavailableSellerClosed, result.UnavailableReason)

	limited := sellerItem("c", "s1", 100)
	limited.Quantity = intPtr(2)
	result = guard.AddItem(first.Cart, limited, openSeller("s1"), 3)
	assert.Equal(t, UnavailableInsufficientStock, result.UnavailableReason)

	limited.Quantity = intPtr(0)
	result = guard.AddItem(first.Cart, limited, openSeller("s1"), 1)
	assert.Equal(t, UnavailableOutOfStock, result.UnavailableReason)
}

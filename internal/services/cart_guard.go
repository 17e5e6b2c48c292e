package services

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/hanko-field/storefront/internal/domain"
)

// CartState is the seller-consistency state of a cart.
type CartState string

const (
	// CartStateEmpty is a cart with no lines and no seller.
	CartStateEmpty CartState = "empty"
	// CartStateSingleSeller is a cart whose lines all reference one seller.
	CartStateSingleSeller CartState = "single_seller"
)

// AddOutcome is the result of an add-to-cart attempt.
type AddOutcome string

const (
	// AddOutcomeAdded means a new line was appended.
	AddOutcomeAdded AddOutcome = "added"
	// AddOutcomeAlreadyInCart points at the existing line for the item.
	AddOutcomeAlreadyInCart AddOutcome = "already_in_cart"
	// AddOutcomeConflictPending holds the add back because the cart belongs to another seller.
	AddOutcomeConflictPending AddOutcome = "conflict_pending"
	// AddOutcomeUnavailable rejects an item that cannot be sold right now.
	AddOutcomeUnavailable AddOutcome = "unavailable"
	// AddOutcomeCancelled means the customer dropped the pending add.
	AddOutcomeCancelled AddOutcome = "cancelled"
)

// Unavailability reasons reported with AddOutcomeUnavailable.
const (
	UnavailableOutOfStock        = "out_of_stock"
	UnavailableInsufficientStock = "insufficient_stock"
	UnavailableSellerClosed      = "seller_closed"
)

// PendingCartItem is the add held back by a seller conflict until the customer decides.
type PendingCartItem struct {
	ItemID     string
	Quantity   int
	SellerID   string
	SellerName string
}

// AddToCartResult describes what an add did, or why it did not happen.
type AddToCartResult struct {
	Outcome           AddOutcome
	Cart              domain.CartSession
	Line              *domain.CartLineItem
	ExistingLine      *domain.CartLineItem
	Pending           *PendingCartItem
	UnavailableReason string
}

// Err maps blocking outcomes onto the error taxonomy. Added, duplicate and cancelled outcomes return nil.
func (r AddToCartResult) Err() error {
	switch r.Outcome {
	case AddOutcomeConflictPending:
		return ErrSellerConflict
	case AddOutcomeUnavailable:
		return fmt.Errorf("%w: %s", ErrUnavailable, r.UnavailableReason)
	default:
		return nil
	}
}

// CartStateOf reports the seller-consistency state of the cart.
func CartStateOf(cart domain.CartSession) CartState {
	if cart.IsEmpty() {
		return CartStateEmpty
	}
	return CartStateSingleSeller
}

// CartGuard enforces that every line of a cart references the same seller.
// It never appends to or clears a cart on conflict; resolution is driven by the caller.
type CartGuard struct {
	now   func() time.Time
	newID func() string
}

// NewCartGuard constructs a guard using the given clock and line id generator.
func NewCartGuard(clock func() time.Time, idGen func() string) CartGuard {
	if clock == nil {
		clock = time.Now
	}
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	return CartGuard{now: func() time.Time { return clock().UTC() }, newID: idGen}
}

// AddItem evaluates an add against the cart. Availability is checked first, then duplicates,
// then the seller invariant. The input cart is never modified.
func (g CartGuard) AddItem(cart domain.CartSession, item domain.Item, seller domain.Seller, quantity int) AddToCartResult {
	if reason := unavailableReason(item, seller, quantity); reason != "" {
		return AddToCartResult{Outcome: AddOutcomeUnavailable, Cart: cart, UnavailableReason: reason}
	}

	if existing, ok := cart.LineForItem(item.ID); ok {
		return AddToCartResult{Outcome: AddOutcomeAlreadyInCart, Cart: cart, ExistingLine: &existing}
	}

	switch CartStateOf(cart) {
	case CartStateEmpty:
		snapshot := seller.Snapshot()
		next := domain.CartSession{CustomerID: cart.CustomerID, Seller: &snapshot}
		return g.appendLine(next, item, snapshot, quantity)
	default:
		if cart.SellerID() != seller.ID {
			return AddToCartResult{
				Outcome: AddOutcomeConflictPending,
				Cart:    cart,
				Pending: &PendingCartItem{
					ItemID:     item.ID,
					Quantity:   quantity,
					SellerID:   seller.ID,
					SellerName: seller.Name,
				},
			}
		}
		snapshot := seller.Snapshot()
		if cart.Seller != nil {
			snapshot = *cart.Seller
		}
		return g.appendLine(cloneCart(cart), item, snapshot, quantity)
	}
}

func (g CartGuard) appendLine(cart domain.CartSession, item domain.Item, seller domain.SellerSnapshot, quantity int) AddToCartResult {
	now := g.now()
	line := domain.CartLineItem{
		ID:        g.newID(),
		ItemID:    item.ID,
		Name:      item.Name,
		Quantity:  quantity,
		UnitPrice: CurrentPrice(item),
		Seller:    seller,
		AddedAt:   now,
	}
	cart.Items = append(cart.Items, line)
	cart.UpdatedAt = now
	return AddToCartResult{Outcome: AddOutcomeAdded, Cart: cart, Line: &line}
}

func unavailableReason(item domain.Item, seller domain.Seller, quantity int) string {
	switch {
	case !seller.IsOpen:
		return UnavailableSellerClosed
	case !item.InStock:
		return UnavailableOutOfStock
	case item.Quantity != nil && *item.Quantity <= 0:
		return UnavailableOutOfStock
	case item.Quantity != nil && *item.Quantity < quantity:
		return UnavailableInsufficientStock
	}
	return ""
}

func cloneCart(cart domain.CartSession) domain.CartSession {
	out := cart
	out.Items = make([]domain.CartLineItem, len(cart.Items), len(cart.Items)+1)
	copy(out.Items, cart.Items)
	if cart.Seller != nil {
		snapshot := *cart.Seller
		out.Seller = &snapshot
	}
	return out
}

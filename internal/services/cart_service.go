package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/repositories"
)

const (
	cartMetricNamespace = "github.com/hanko-field/storefront/internal/services/cart"
	maxCartLineQuantity = 999
)

// ErrCartClearNotAcknowledged indicates the store reported a clear that left lines behind.
var ErrCartClearNotAcknowledged = errors.New("cart service: clear was not acknowledged")

// CartServiceDeps bundles constructor inputs for the cart service.
type CartServiceDeps struct {
	Carts       repositories.CartRepository
	Items       repositories.ItemRepository
	Sellers     repositories.SellerDirectory
	Offers      repositories.OfferRepository
	Meter       metric.Meter
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type cartService struct {
	carts   repositories.CartRepository
	items   repositories.ItemRepository
	sellers repositories.SellerDirectory
	offers  repositories.OfferRepository
	guard   CartGuard
	clock   func() time.Time
	logger  func(context.Context, string, map[string]any)

	outcomes metric.Int64Counter
}

// NewCartService constructs the cart service with the supplied dependencies.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Items == nil {
		return nil, errors.New("cart service: item repository is required")
	}
	if deps.Sellers == nil {
		return nil, errors.New("cart service: seller directory is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(cartMetricNamespace)
	}
	outcomes, err := meter.Int64Counter(
		"cart.add.outcomes",
		metric.WithDescription("Add-to-cart attempts by outcome"),
	)
	if err != nil {
		return nil, err
	}
	return &cartService{
		carts:    deps.Carts,
		items:    deps.Items,
		sellers:  deps.Sellers,
		offers:   deps.Offers,
		guard:    NewCartGuard(clock, idGen),
		clock:    func() time.Time { return clock().UTC() },
		logger:   logger,
		outcomes: outcomes,
	}, nil
}

func (s *cartService) GetCart(ctx context.Context, customerID string) (CartSession, error) {
	customerID, err := requireCustomer(customerID)
	if err != nil {
		return CartSession{}, err
	}
	cart, err := s.carts.Get(ctx, customerID)
	if err != nil {
		return CartSession{}, translateRepoError("get cart", err)
	}
	return cart, nil
}

func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (AddToCartResult, error) {
	customerID, err := requireCustomer(cmd.CustomerID)
	if err != nil {
		return AddToCartResult{}, err
	}
	item, seller, quantity, err := s.resolveItem(ctx, cmd.ItemID, cmd.Quantity)
	if err != nil {
		return AddToCartResult{}, err
	}
	cart, err := s.carts.Get(ctx, customerID)
	if err != nil {
		return AddToCartResult{}, translateRepoError("get cart", err)
	}

	result := s.guard.AddItem(cart, item, seller, quantity)
	s.record(ctx, result)
	switch result.Outcome {
	case AddOutcomeAdded:
		saved, err := s.carts.Save(ctx, result.Cart)
		if err != nil {
			return AddToCartResult{}, translateRepoError("save cart", err)
		}
		result.Cart = saved
	case AddOutcomeConflictPending:
		s.logger(ctx, "cart.seller_conflict", map[string]any{
			"customerId":    customerID,
			"cartSellerId":  cart.SellerID(),
			"pendingSeller": seller.ID,
			"itemId":        item.ID,
		})
	}
	return result, nil
}

// ResolveConflict applies the customer's decision on a pending seller conflict.
// Reset clears the cart, waits for the store to acknowledge an empty cart, and only then adds
// the pending item. A failed or unacknowledged clear aborts before the add. When the conflict
// no longer holds the pending item is added to the current cart without clearing it.
func (s *cartService) ResolveConflict(ctx context.Context, cmd ResolveConflictCommand) (AddToCartResult, error) {
	customerID, err := requireCustomer(cmd.CustomerID)
	if err != nil {
		return AddToCartResult{}, err
	}
	switch ConflictDecision(strings.ToLower(strings.TrimSpace(string(cmd.Decision)))) {
	case ConflictDecisionCancel:
		cart, err := s.carts.Get(ctx, customerID)
		if err != nil {
			return AddToCartResult{}, translateRepoError("get cart", err)
		}
		return AddToCartResult{Outcome: AddOutcomeCancelled, Cart: cart}, nil
	case ConflictDecisionReset:
	default:
		return AddToCartResult{}, newValidationError("decision", "must be cancel or reset")
	}

	item, seller, quantity, err := s.resolveItem(ctx, cmd.Pending.ItemID, cmd.Pending.Quantity)
	if err != nil {
		return AddToCartResult{}, err
	}
	current, err := s.carts.Get(ctx, customerID)
	if err != nil {
		return AddToCartResult{}, translateRepoError("get cart", err)
	}
	// The cart is cleared only while the conflict still holds; otherwise the pending item
	// is settled like a plain add.
	if check := s.guard.AddItem(current, item, seller, quantity); check.Outcome != AddOutcomeConflictPending {
		s.record(ctx, check)
		if check.Outcome != AddOutcomeAdded {
			return check, nil
		}
		saved, err := s.carts.Save(ctx, check.Cart)
		if err != nil {
			return AddToCartResult{}, translateRepoError("save cart", err)
		}
		check.Cart = saved
		return check, nil
	}

	ack, err := s.carts.Clear(ctx, customerID)
	if err != nil {
		s.logger(ctx, "cart.reset_clear_failed", map[string]any{"customerId": customerID, "error": err.Error()})
		return AddToCartResult{}, translateRepoError("clear cart", err)
	}
	if !ack.IsEmpty() {
		s.logger(ctx, "cart.reset_clear_unacknowledged", map[string]any{"customerId": customerID, "lines": len(ack.Items)})
		return AddToCartResult{}, fmt.Errorf("%w: %w", ErrCartClearNotAcknowledged, ErrStoreUnavailable)
	}

	result := s.guard.AddItem(ack, item, seller, quantity)
	s.record(ctx, result)
	if result.Outcome != AddOutcomeAdded {
		return result, nil
	}
	saved, err := s.carts.Save(ctx, result.Cart)
	if err != nil {
		return AddToCartResult{}, translateRepoError("save cart", err)
	}
	result.Cart = saved
	s.logger(ctx, "cart.seller_reset", map[string]any{
		"customerId": customerID,
		"sellerId":   seller.ID,
		"itemId":     item.ID,
	})
	return result, nil
}

func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (CartSession, error) {
	customerID, err := requireCustomer(cmd.CustomerID)
	if err != nil {
		return CartSession{}, err
	}
	lineID := strings.TrimSpace(cmd.LineID)
	if lineID == "" {
		return CartSession{}, newValidationError("lineId", "is required")
	}
	cart, err := s.carts.Get(ctx, customerID)
	if err != nil {
		return CartSession{}, translateRepoError("get cart", err)
	}
	next := cloneCart(cart)
	next.Items = next.Items[:0]
	found := false
	for _, line := range cart.Items {
		if line.ID == lineID {
			found = true
			continue
		}
		next.Items = append(next.Items, line)
	}
	if !found {
		return CartSession{}, fmt.Errorf("cart line %q: %w", lineID, ErrNotFound)
	}
	if next.IsEmpty() {
		next.Seller = nil
	}
	next.UpdatedAt = s.clock()
	saved, err := s.carts.Save(ctx, next)
	if err != nil {
		return CartSession{}, translateRepoError("save cart", err)
	}
	return saved, nil
}

func (s *cartService) ClearCart(ctx context.Context, customerID string) (CartSession, error) {
	customerID, err := requireCustomer(customerID)
	if err != nil {
		return CartSession{}, err
	}
	cart, err := s.carts.Clear(ctx, customerID)
	if err != nil {
		return CartSession{}, translateRepoError("clear cart", err)
	}
	return cart, nil
}

// QuoteCart prices every line at the item's current price and applies at most one offer per line:
// the redeemable offer with the greatest positive savings for the line quantity, ties going to the
// earliest start date and then the lowest id. Offers that would cost the customer more are reported
// as warnings and never applied.
func (s *cartService) QuoteCart(ctx context.Context, customerID string) (CartQuote, error) {
	customerID, err := requireCustomer(customerID)
	if err != nil {
		return CartQuote{}, err
	}
	cart, err := s.carts.Get(ctx, customerID)
	if err != nil {
		return CartQuote{}, translateRepoError("get cart", err)
	}
	now := s.clock()
	quote := CartQuote{CustomerID: customerID, SellerID: cart.SellerID(), Lines: make([]domain.CartQuoteLine, 0, len(cart.Items))}
	for _, line := range cart.Items {
		q := domain.CartQuoteLine{LineID: line.ID, ItemID: line.ItemID, Quantity: line.Quantity, UnitPrice: line.UnitPrice}
		item, err := s.items.Get(ctx, line.ItemID)
		switch {
		case err == nil:
			q.UnitPrice = CurrentPrice(item)
		case isNotFound(err):
			q.Warnings = append(q.Warnings, "item_unavailable")
		default:
			return CartQuote{}, translateRepoError("quote cart item", err)
		}
		q.Subtotal = q.UnitPrice * int64(q.Quantity)

		if s.offers != nil {
			offers, err := s.offers.List(ctx, repositories.OfferFilter{ItemID: line.ItemID})
			if err != nil {
				return CartQuote{}, translateRepoError("quote cart offers", err)
			}
			applied, savings, warnings := SelectCheckoutOffer(offers, q.UnitPrice, q.Quantity, now)
			q.AppliedOffer = applied
			q.Savings = savings
			q.Warnings = append(q.Warnings, warnings...)
		}
		q.Total = q.Subtotal - q.Savings
		quote.Subtotal += q.Subtotal
		quote.Savings += q.Savings
		quote.Lines = append(quote.Lines, q)
	}
	quote.Total = quote.Subtotal - quote.Savings
	return quote, nil
}

// SelectCheckoutOffer picks the single offer honoured for a cart line.
func SelectCheckoutOffer(offers []domain.Offer, unitPrice int64, quantity int, now time.Time) (*domain.Offer, int64, []string) {
	type candidate struct {
		offer   domain.Offer
		savings int64
	}
	var warnings []string
	candidates := make([]candidate, 0, len(offers))
	for _, offer := range offers {
		if !IsRedeemable(offer, now) {
			continue
		}
		savings := LineSavings(offer, unitPrice, quantity)
		if savings < 0 {
			warnings = append(warnings, fmt.Sprintf("offer %s: %s", offer.ID, OfferWarningNegativeSavings))
			continue
		}
		if savings == 0 {
			continue
		}
		candidates = append(candidates, candidate{offer: offer, savings: savings})
	}
	if len(candidates) == 0 {
		return nil, 0, warnings
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.savings != b.savings {
			return a.savings > b.savings
		}
		if !a.offer.StartDate.Equal(b.offer.StartDate) {
			return a.offer.StartDate.Before(b.offer.StartDate)
		}
		return a.offer.ID < b.offer.ID
	})
	best := candidates[0].offer
	return &best, candidates[0].savings, warnings
}

// resolveItem re-reads the item and its seller so a pending add never trusts client-held state.
func (s *cartService) resolveItem(ctx context.Context, itemID string, quantity int) (domain.Item, domain.Seller, int, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return domain.Item{}, domain.Seller{}, 0, newValidationError("itemId", "is required")
	}
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 || quantity > maxCartLineQuantity {
		return domain.Item{}, domain.Seller{}, 0, newValidationError("quantity", fmt.Sprintf("must be between 1 and %d", maxCartLineQuantity))
	}
	item, err := s.items.Get(ctx, itemID)
	if err != nil {
		return domain.Item{}, domain.Seller{}, 0, translateRepoError("get item", err)
	}
	seller, err := s.sellers.GetSeller(ctx, item.SellerID)
	if err != nil {
		return domain.Item{}, domain.Seller{}, 0, translateRepoError("get seller", err)
	}
	return item, seller, quantity, nil
}

func (s *cartService) record(ctx context.Context, result AddToCartResult) {
	s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(result.Outcome))))
}

func requireCustomer(customerID string) (string, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return "", newValidationError("customerId", "is required")
	}
	return customerID, nil
}

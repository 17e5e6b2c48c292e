package repositories

import (
	"context"

	domain "github.com/hanko-field/storefront/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ItemRepository persists catalog items scoped to a seller.
type ItemRepository interface {
	// ListBySeller returns every item owned by the seller in creation order.
	ListBySeller(ctx context.Context, sellerID string) ([]domain.Item, error)
	// Get returns a RepositoryError with IsNotFound when the item is absent.
	Get(ctx context.Context, itemID string) (domain.Item, error)
	Insert(ctx context.Context, item domain.Item) (domain.Item, error)
	// Update replaces the stored item and returns a RepositoryError with IsNotFound when it is absent.
	Update(ctx context.Context, item domain.Item) (domain.Item, error)
	Delete(ctx context.Context, sellerID, itemID string) error
	BulkInsert(ctx context.Context, items []domain.Item) ([]domain.Item, error)
	BulkUpdate(ctx context.Context, items []domain.Item) ([]domain.Item, error)
	// BulkDelete removes the given ids and reports the ids that were actually deleted.
	BulkDelete(ctx context.Context, sellerID string, itemIDs []string) ([]string, error)
}

// OfferFilter narrows seller offer listings.
type OfferFilter struct {
	SellerID string
	ItemID   string
	ItemIDs  []string
}

// OfferRepository persists promotional offers.
type OfferRepository interface {
	List(ctx context.Context, filter OfferFilter) ([]domain.Offer, error)
	Get(ctx context.Context, offerID string) (domain.Offer, error)
	Insert(ctx context.Context, offer domain.Offer) (domain.Offer, error)
	Update(ctx context.Context, offer domain.Offer) (domain.Offer, error)
	Delete(ctx context.Context, offerID string) error
	// ToggleActive flips IsActive atomically and returns the stored offer.
	ToggleActive(ctx context.Context, offerID string) (domain.Offer, error)
}

// SellerDirectory resolves seller profiles used for cart snapshots and availability checks.
type SellerDirectory interface {
	GetSeller(ctx context.Context, sellerID string) (domain.Seller, error)
}

// CartRepository stores the per-customer cart session.
type CartRepository interface {
	// Get returns an empty cart for customers without a stored session.
	Get(ctx context.Context, customerID string) (domain.CartSession, error)
	Save(ctx context.Context, cart domain.CartSession) (domain.CartSession, error)
	// Clear removes every line and returns the persisted state as acknowledgement.
	Clear(ctx context.Context, customerID string) (domain.CartSession, error)
}

// HealthChecker reports the reachability of a backing store.
type HealthChecker interface {
	Name() string
	Ping(ctx context.Context) error
}

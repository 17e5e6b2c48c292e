package services

import (
	"context"
	"time"

	domain "github.com/hanko-field/storefront/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Item             = domain.Item
	PricedItem       = domain.PricedItem
	CategoryGroup    = domain.CategoryGroup
	SubcategoryGroup = domain.SubcategoryGroup
	Offer            = domain.Offer
	Seller           = domain.Seller
	CartSession      = domain.CartSession
	CartLineItem     = domain.CartLineItem
	CartQuote        = domain.CartQuote
)

// CatalogService serves seller catalog reads and mutations in self or administrative mode.
type CatalogService interface {
	GetCatalog(ctx context.Context, query CatalogQuery) (CatalogView, error)
	AddItem(ctx context.Context, cmd AddItemCommand) (CatalogMutation, error)
	BulkAddItems(ctx context.Context, cmd BulkAddItemsCommand) (CatalogMutation, error)
	UpdateItem(ctx context.Context, cmd UpdateItemCommand) (CatalogMutation, error)
	SetDiscount(ctx context.Context, cmd SetDiscountCommand) (CatalogMutation, error)
	RemoveItem(ctx context.Context, cmd RemoveItemCommand) (CatalogMutation, error)
	BulkRemoveItems(ctx context.Context, cmd BulkRemoveItemsCommand) (CatalogMutation, error)
	RenameCategory(ctx context.Context, cmd RenameCategoryCommand) (CatalogMutation, error)
	RenameSubcategory(ctx context.Context, cmd RenameSubcategoryCommand) (CatalogMutation, error)
	DeleteCategory(ctx context.Context, cmd DeleteCategoryCommand) (CatalogMutation, error)
}

// OfferService manages the offer lifecycle for sellers and serves public offer listings.
type OfferService interface {
	ListSellerOffers(ctx context.Context, filter SellerOfferFilter) (OfferPage, error)
	CreateOffer(ctx context.Context, cmd UpsertOfferCommand) (OfferDetail, error)
	UpdateOffer(ctx context.Context, cmd UpsertOfferCommand) (OfferDetail, error)
	DeleteOffer(ctx context.Context, cmd OfferRefCommand) error
	ToggleStatus(ctx context.Context, cmd OfferRefCommand) (OfferDetail, error)
	ListItemOffers(ctx context.Context, itemID string) ([]OfferDetail, error)
	ListSellerPublicOffers(ctx context.Context, filter PublicOfferFilter) ([]OfferDetail, error)
}

// CartService drives the single-seller cart workflow for customers.
type CartService interface {
	GetCart(ctx context.Context, customerID string) (CartSession, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (AddToCartResult, error)
	ResolveConflict(ctx context.Context, cmd ResolveConflictCommand) (AddToCartResult, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (CartSession, error)
	ClearCart(ctx context.Context, customerID string) (CartSession, error)
	QuoteCart(ctx context.Context, customerID string) (CartQuote, error)
}

// CatalogEventPublisher emits notifications after catalog mutations are committed.
type CatalogEventPublisher interface {
	PublishCatalogEvent(ctx context.Context, event CatalogEvent) (string, error)
}

// CatalogEventType names a committed catalog mutation.
type CatalogEventType string

const (
	CatalogEventItemsAdded        CatalogEventType = "catalog.items_added"
	CatalogEventItemUpdated       CatalogEventType = "catalog.item_updated"
	CatalogEventItemsRemoved      CatalogEventType = "catalog.items_removed"
	CatalogEventCategoryRenamed   CatalogEventType = "catalog.category_renamed"
	CatalogEventSubcategoryRename CatalogEventType = "catalog.subcategory_renamed"
)

// CatalogEvent is the payload published for every committed catalog mutation.
type CatalogEvent struct {
	EventID        string           `json:"eventId"`
	Type           CatalogEventType `json:"type"`
	SellerID       string           `json:"sellerId"`
	ActorID        string           `json:"actorId"`
	Administrative bool             `json:"administrative"`
	ItemIDs        []string         `json:"itemIds,omitempty"`
	OccurredAt     time.Time        `json:"occurredAt"`
}

// CatalogQuery reads a catalog in the mode selected by OwnerID.
type CatalogQuery struct {
	Caller  CatalogCaller
	OwnerID string
}

// AddItemCommand creates one item.
type AddItemCommand struct {
	CatalogQuery
	Item Item
}

// BulkAddItemsCommand creates several items in one store call.
type BulkAddItemsCommand struct {
	CatalogQuery
	Items []Item
}

// UpdateItemCommand patches one item.
type UpdateItemCommand struct {
	CatalogQuery
	ItemID string
	Patch  ItemPatch
}

// SetDiscountCommand edits only the discount percentage.
type SetDiscountCommand struct {
	CatalogQuery
	ItemID             string
	DiscountPercentage float64
}

// RemoveItemCommand deletes one item.
type RemoveItemCommand struct {
	CatalogQuery
	ItemID string
}

// BulkRemoveItemsCommand deletes several items.
type BulkRemoveItemsCommand struct {
	CatalogQuery
	ItemIDs []string
}

// RenameCategoryCommand renames a category across all of a seller's items.
type RenameCategoryCommand struct {
	CatalogQuery
	OldName string
	NewName string
}

// RenameSubcategoryCommand renames a subcategory, optionally limited to one category.
type RenameSubcategoryCommand struct {
	CatalogQuery
	Category string
	OldName  string
	NewName  string
}

// DeleteCategoryCommand removes every item in a category.
type DeleteCategoryCommand struct {
	CatalogQuery
	Category string
}

// CatalogMutation returns the rebuilt view together with the mutation outcome.
type CatalogMutation struct {
	View    CatalogView
	Items   []Item
	Renamed int
	Removal *BulkRemoveResult
}

// OfferStatusFilter narrows seller offer listings.
type OfferStatusFilter string

const (
	OfferStatusAll      OfferStatusFilter = "all"
	OfferStatusActive   OfferStatusFilter = "active"
	OfferStatusInactive OfferStatusFilter = "inactive"
	OfferStatusExpired  OfferStatusFilter = "expired"
)

// SellerOfferFilter lists offers owned by the acting seller.
type SellerOfferFilter struct {
	SellerID string
	Status   OfferStatusFilter
	Page     int
	Limit    int
}

// PublicOfferFilter lists redeemable offers of a seller for customers.
type PublicOfferFilter struct {
	SellerID string
	Category string
	Limit    int
}

// OfferPage is a page of seller offers.
type OfferPage struct {
	Offers []OfferDetail
	Page   int
	Limit  int
	Total  int
}

// OfferDetail is an offer with its derived state evaluated against the target item's current price.
type OfferDetail struct {
	Offer      Offer
	ItemName   string
	IsExpired  bool
	Evaluation *OfferEvaluation
}

// UpsertOfferCommand creates an offer or replaces an existing one.
type UpsertOfferCommand struct {
	SellerID string
	OfferID  string
	Offer    Offer
}

// OfferRefCommand addresses one seller-owned offer.
type OfferRefCommand struct {
	SellerID string
	OfferID  string
}

// AddCartItemCommand asks to add an item to the customer's cart.
type AddCartItemCommand struct {
	CustomerID string
	ItemID     string
	Quantity   int
}

// ConflictDecision resolves a pending seller conflict.
type ConflictDecision string

const (
	ConflictDecisionCancel ConflictDecision = "cancel"
	ConflictDecisionReset  ConflictDecision = "reset"
)

// ResolveConflictCommand carries the customer's decision and the pending add.
type ResolveConflictCommand struct {
	CustomerID string
	Decision   ConflictDecision
	Pending    PendingCartItem
}

// RemoveCartItemCommand removes one cart line.
type RemoveCartItemCommand struct {
	CustomerID string
	LineID     string
}

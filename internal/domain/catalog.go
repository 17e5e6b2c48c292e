package domain

import "time"

const (
	// DefaultCategory is the placement assigned to items without a category.
	DefaultCategory = "uncategorized"
	// DefaultSubcategory is the placement assigned to items without a subcategory.
	DefaultSubcategory = "general"
)

// Item is a sellable catalog entry owned by a single seller. Prices are stored in minor units.
type Item struct {
	ID                 string
	SellerID           string
	Name               string
	Description        string
	BasePrice          int64
	Category           string
	Subcategory        string
	DiscountPercentage float64
	InStock            bool
	Quantity           *int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PricedItem annotates an item with derived pricing and offer metadata. Nothing here is persisted.
type PricedItem struct {
	Item
	CurrentPrice     int64
	DiscountAmount   int64
	IsOnDiscount     bool
	ActiveOfferCount int
}

// SubcategoryGroup lists the items placed under a single subcategory.
type SubcategoryGroup struct {
	Name  string
	Items []PricedItem
}

// CategoryGroup lists the subcategories placed under a single category.
type CategoryGroup struct {
	Name          string
	Subcategories []SubcategoryGroup
}

// Seller describes the business that owns catalog items.
type Seller struct {
	ID          string
	Name        string
	ServiceType string
	IsOpen      bool
}

// Snapshot captures the seller fields denormalised onto cart lines.
func (s Seller) Snapshot() SellerSnapshot {
	return SellerSnapshot{ID: s.ID, Name: s.Name, ServiceType: s.ServiceType}
}

// SellerSnapshot is the seller identity recorded at the time of the first cart insertion.
type SellerSnapshot struct {
	ID          string
	Name        string
	ServiceType string
}

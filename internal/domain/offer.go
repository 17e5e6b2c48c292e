package domain

import "time"

// OfferType names the promotion variant carried by an offer.
type OfferType string

const (
	// OfferTypeBulkPrice sells a fixed number of units for a fixed total.
	OfferTypeBulkPrice OfferType = "bulk-price"
	// OfferTypeBuyXGetYFree grants free units for every batch purchased.
	OfferTypeBuyXGetYFree OfferType = "buy-x-get-y-free"
)

// OfferTerms is the closed set of type-specific offer payloads.
type OfferTerms interface {
	OfferType() OfferType
	sealedOfferTerms()
}

// BulkPriceTerms describes "buy PurchaseQuantity units for DiscountedPrice".
type BulkPriceTerms struct {
	PurchaseQuantity int
	DiscountedPrice  int64
}

// OfferType implements OfferTerms.
func (BulkPriceTerms) OfferType() OfferType { return OfferTypeBulkPrice }

func (BulkPriceTerms) sealedOfferTerms() {}

// BuyXGetYFreeTerms describes "buy BuyQuantity units, receive FreeQuantity more at no charge".
type BuyXGetYFreeTerms struct {
	BuyQuantity  int
	FreeQuantity int
}

// OfferType implements OfferTerms.
func (BuyXGetYFreeTerms) OfferType() OfferType { return OfferTypeBuyXGetYFree }

func (BuyXGetYFreeTerms) sealedOfferTerms() {}

// Offer is a promotion attached to a single catalog item.
type Offer struct {
	ID          string
	SellerID    string
	ItemID      string
	Title       string
	Description string
	Terms       OfferTerms
	StartDate   time.Time
	EndDate     *time.Time
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Type reports the offer variant, or an empty string when no terms are attached.
func (o Offer) Type() OfferType {
	if o.Terms == nil {
		return ""
	}
	return o.Terms.OfferType()
}

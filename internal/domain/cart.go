package domain

import "time"

// CartSession is the single-seller basket owned by one customer.
type CartSession struct {
	CustomerID string
	Seller     *SellerSnapshot
	Items      []CartLineItem
	UpdatedAt  time.Time
}

// IsEmpty reports whether the cart has no lines.
func (c CartSession) IsEmpty() bool {
	return len(c.Items) == 0
}

// SellerID returns the seller every line references, or an empty string for an empty cart.
func (c CartSession) SellerID() string {
	if c.Seller != nil && c.Seller.ID != "" {
		return c.Seller.ID
	}
	if len(c.Items) > 0 {
		return c.Items[0].Seller.ID
	}
	return ""
}

// LineForItem returns the line referencing itemID when present.
func (c CartSession) LineForItem(itemID string) (CartLineItem, bool) {
	for _, line := range c.Items {
		if line.ItemID == itemID {
			return line, true
		}
	}
	return CartLineItem{}, false
}

// CartLineItem references one catalog item with a seller snapshot.
type CartLineItem struct {
	ID        string
	ItemID    string
	Name      string
	Quantity  int
	UnitPrice int64
	Seller    SellerSnapshot
	AddedAt   time.Time
}

// CartQuote prices a cart at checkout time.
type CartQuote struct {
	CustomerID string
	SellerID   string
	Lines      []CartQuoteLine
	Subtotal   int64
	Savings    int64
	Total      int64
}

// CartQuoteLine is one priced cart line with the applied offer, if any.
type CartQuoteLine struct {
	LineID       string
	ItemID       string
	Quantity     int
	UnitPrice    int64
	Subtotal     int64
	Savings      int64
	Total        int64
	AppliedOffer *Offer
	Warnings     []string
}

package handlers

import (
	"fmt"
	"strings"
	"time"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/services"
)

type itemPayload struct {
	ID                 string  `json:"id"`
	SellerID           string  `json:"sellerId"`
	Name               string  `json:"name"`
	Description        string  `json:"description,omitempty"`
	BasePrice          int64   `json:"basePrice"`
	Category           string  `json:"category"`
	Subcategory        string  `json:"subcategory"`
	DiscountPercentage float64 `json:"discountPercentage"`
	InStock            bool    `json:"inStock"`
	Quantity           *int    `json:"quantity,omitempty"`
	CurrentPrice       int64   `json:"currentPrice"`
	DiscountAmount     int64   `json:"discountAmount"`
	IsOnDiscount       bool    `json:"isOnDiscount"`
	ActiveOfferCount   int     `json:"activeOfferCount"`
	CreatedAt          string  `json:"createdAt,omitempty"`
	UpdatedAt          string  `json:"updatedAt,omitempty"`
}

type subcategoryPayload struct {
	Name  string        `json:"name"`
	Items []itemPayload `json:"items"`
}

type categoryPayload struct {
	Name          string               `json:"name"`
	Subcategories []subcategoryPayload `json:"subcategories"`
}

type catalogPayload struct {
	Mode       string            `json:"mode"`
	SellerID   string            `json:"sellerId"`
	Items      []itemPayload     `json:"items,omitempty"`
	Categories []categoryPayload `json:"categories,omitempty"`
}

type removalPayload struct {
	DeletedCount   int      `json:"deletedCount"`
	RequestedCount int      `json:"requestedCount"`
	DeletedIDs     []string `json:"deletedIds"`
	MissingIDs     []string `json:"missingIds"`
	Partial        bool     `json:"partial"`
}

type mutationPayload struct {
	Catalog catalogPayload  `json:"catalog"`
	Items   []itemPayload   `json:"items,omitempty"`
	Renamed *int            `json:"renamed,omitempty"`
	Removal *removalPayload `json:"removal,omitempty"`
}

func buildItemPayload(item domain.PricedItem) itemPayload {
	return itemPayload{
		ID:                 item.ID,
		SellerID:           item.SellerID,
		Name:               item.Name,
		Description:        item.Description,
		BasePrice:          item.BasePrice,
		Category:           item.Category,
		Subcategory:        item.Subcategory,
		DiscountPercentage: item.DiscountPercentage,
		InStock:            item.InStock,
		Quantity:           item.Quantity,
		CurrentPrice:       item.CurrentPrice,
		DiscountAmount:     item.DiscountAmount,
		IsOnDiscount:       item.IsOnDiscount,
		ActiveOfferCount:   item.ActiveOfferCount,
		CreatedAt:          formatTime(item.CreatedAt),
		UpdatedAt:          formatTime(item.UpdatedAt),
	}
}

func buildItemPayloads(items []domain.PricedItem) []itemPayload {
	out := make([]itemPayload, 0, len(items))
	for _, item := range items {
		out = append(out, buildItemPayload(item))
	}
	return out
}

func buildCatalogPayload(view services.CatalogView) catalogPayload {
	payload := catalogPayload{Mode: string(view.Mode), SellerID: view.SellerID}
	if view.Mode == services.CatalogViewGrouped {
		payload.Categories = make([]categoryPayload, 0, len(view.Groups))
		for _, group := range view.Groups {
			cat := categoryPayload{Name: group.Name, Subcategories: make([]subcategoryPayload, 0, len(group.Subcategories))}
			for _, sub := range group.Subcategories {
				cat.Subcategories = append(cat.Subcategories, subcategoryPayload{Name: sub.Name, Items: buildItemPayloads(sub.Items)})
			}
			payload.Categories = append(payload.Categories, cat)
		}
		return payload
	}
	payload.Items = buildItemPayloads(view.Items)
	return payload
}

func buildMutationPayload(mutation services.CatalogMutation) mutationPayload {
	payload := mutationPayload{Catalog: buildCatalogPayload(mutation.View)}
	if len(mutation.Items) > 0 {
		payload.Items = make([]itemPayload, 0, len(mutation.Items))
		for _, item := range mutation.Items {
			payload.Items = append(payload.Items, buildItemPayload(services.PriceItem(item)))
		}
	}
	if mutation.Removal != nil {
		payload.Removal = &removalPayload{
			DeletedCount:   mutation.Removal.Deleted,
			RequestedCount: mutation.Removal.Requested,
			DeletedIDs:     nonNilStrings(mutation.Removal.DeletedIDs),
			MissingIDs:     nonNilStrings(mutation.Removal.MissingIDs),
			Partial:        mutation.Removal.Partial != nil,
		}
	}
	return payload
}

// itemRequest is the body of item create and update calls. Absent fields leave the item unchanged on update.
type itemRequest struct {
	Name               *string  `json:"name"`
	Description        *string  `json:"description"`
	BasePrice          *int64   `json:"basePrice"`
	Category           *string  `json:"category"`
	Subcategory        *string  `json:"subcategory"`
	DiscountPercentage *float64 `json:"discountPercentage"`
	InStock            *bool    `json:"inStock"`
	Quantity           *int     `json:"quantity"`
	ClearQuantity      bool     `json:"clearQuantity"`
}

func (r itemRequest) toItem() domain.Item {
	item := domain.Item{InStock: true}
	if r.Name != nil {
		item.Name = *r.Name
	}
	if r.Description != nil {
		item.Description = *r.Description
	}
	if r.BasePrice != nil {
		item.BasePrice = *r.BasePrice
	}
	if r.Category != nil {
		item.Category = *r.Category
	}
	if r.Subcategory != nil {
		item.Subcategory = *r.Subcategory
	}
	if r.DiscountPercentage != nil {
		item.DiscountPercentage = *r.DiscountPercentage
	}
	if r.InStock != nil {
		item.InStock = *r.InStock
	}
	if r.Quantity != nil && !r.ClearQuantity {
		q := *r.Quantity
		item.Quantity = &q
	}
	return item
}

func (r itemRequest) toPatch() services.ItemPatch {
	return services.ItemPatch{
		Name:               r.Name,
		Description:        r.Description,
		BasePrice:          r.BasePrice,
		Category:           r.Category,
		Subcategory:        r.Subcategory,
		DiscountPercentage: r.DiscountPercentage,
		InStock:            r.InStock,
		Quantity:           r.Quantity,
		ClearQuantity:      r.ClearQuantity,
	}
}

type evaluationPayload struct {
	Units              int      `json:"units"`
	RegularPrice       int64    `json:"regularPrice"`
	OfferPrice         int64    `json:"offerPrice"`
	Savings            int64    `json:"savings"`
	EffectiveUnitPrice int64    `json:"effectiveUnitPrice"`
	Warnings           []string `json:"warnings,omitempty"`
}

type offerPayload struct {
	ID               string             `json:"id"`
	SellerID         string             `json:"sellerId"`
	ItemID           string             `json:"itemId"`
	ItemName         string             `json:"itemName,omitempty"`
	Title            string             `json:"title"`
	Description      string             `json:"description,omitempty"`
	OfferType        string             `json:"offerType"`
	PurchaseQuantity int                `json:"purchaseQuantity,omitempty"`
	DiscountedPrice  int64              `json:"discountedPrice,omitempty"`
	BuyQuantity      int                `json:"buyQuantity,omitempty"`
	FreeQuantity     int                `json:"freeQuantity,omitempty"`
	StartDate        string             `json:"startDate"`
	EndDate          string             `json:"endDate,omitempty"`
	IsActive         bool               `json:"isActive"`
	IsExpired        bool               `json:"isExpired"`
	Evaluation       *evaluationPayload `json:"evaluation,omitempty"`
	CreatedAt        string             `json:"createdAt,omitempty"`
	UpdatedAt        string             `json:"updatedAt,omitempty"`
}

func buildOfferPayload(detail services.OfferDetail) offerPayload {
	offer := detail.Offer
	payload := offerPayload{
		ID:          offer.ID,
		SellerID:    offer.SellerID,
		ItemID:      offer.ItemID,
		ItemName:    detail.ItemName,
		Title:       offer.Title,
		Description: offer.Description,
		OfferType:   string(offer.Type()),
		StartDate:   formatTime(offer.StartDate),
		IsActive:    offer.IsActive,
		IsExpired:   detail.IsExpired,
		CreatedAt:   formatTime(offer.CreatedAt),
		UpdatedAt:   formatTime(offer.UpdatedAt),
	}
	if offer.EndDate != nil {
		payload.EndDate = formatTime(*offer.EndDate)
	}
	switch terms := offer.Terms.(type) {
	case domain.BulkPriceTerms:
		payload.PurchaseQuantity = terms.PurchaseQuantity
		payload.DiscountedPrice = terms.DiscountedPrice
	case domain.BuyXGetYFreeTerms:
		payload.BuyQuantity = terms.BuyQuantity
		payload.FreeQuantity = terms.FreeQuantity
	}
	if eval := detail.Evaluation; eval != nil {
		payload.Evaluation = &evaluationPayload{
			Units:              eval.Units,
			RegularPrice:       eval.RegularPrice,
			OfferPrice:         eval.OfferPrice,
			Savings:            eval.Savings,
			EffectiveUnitPrice: eval.EffectiveUnitPrice,
		}
		for _, w := range eval.Warnings {
			payload.Evaluation.Warnings = append(payload.Evaluation.Warnings, string(w))
		}
	}
	return payload
}

func buildOfferPayloads(details []services.OfferDetail) []offerPayload {
	out := make([]offerPayload, 0, len(details))
	for _, d := range details {
		out = append(out, buildOfferPayload(d))
	}
	return out
}

type offerRequest struct {
	ItemID           string     `json:"itemId"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	OfferType        string     `json:"offerType"`
	PurchaseQuantity int        `json:"purchaseQuantity"`
	DiscountedPrice  int64      `json:"discountedPrice"`
	BuyQuantity      int        `json:"buyQuantity"`
	FreeQuantity     int        `json:"freeQuantity"`
	StartDate        *time.Time `json:"startDate"`
	EndDate          *time.Time `json:"endDate"`
}

// toOffer builds the offer with the terms variant named by offerType. Fields of other variants are ignored.
func (r offerRequest) toOffer() (domain.Offer, error) {
	offer := domain.Offer{ItemID: r.ItemID, Title: r.Title, Description: r.Description}
	switch domain.OfferType(strings.ToLower(strings.TrimSpace(r.OfferType))) {
	case domain.OfferTypeBulkPrice:
		offer.Terms = domain.BulkPriceTerms{PurchaseQuantity: r.PurchaseQuantity, DiscountedPrice: r.DiscountedPrice}
	case domain.OfferTypeBuyXGetYFree:
		offer.Terms = domain.BuyXGetYFreeTerms{BuyQuantity: r.BuyQuantity, FreeQuantity: r.FreeQuantity}
	case "":
		return domain.Offer{}, fmt.Errorf("offerType is required")
	default:
		return domain.Offer{}, fmt.Errorf("offerType %q is not supported", r.OfferType)
	}
	if r.StartDate != nil {
		offer.StartDate = r.StartDate.UTC()
	}
	if r.EndDate != nil {
		end := r.EndDate.UTC()
		offer.EndDate = &end
	}
	return offer, nil
}

type sellerPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ServiceType string `json:"serviceType,omitempty"`
}

type cartLinePayload struct {
	ID        string        `json:"id"`
	ItemID    string        `json:"itemId"`
	Name      string        `json:"name"`
	Quantity  int           `json:"quantity"`
	UnitPrice int64         `json:"unitPrice"`
	Seller    sellerPayload `json:"seller"`
	AddedAt   string        `json:"addedAt,omitempty"`
}

type cartPayload struct {
	State     string            `json:"state"`
	Seller    *sellerPayload    `json:"seller,omitempty"`
	Items     []cartLinePayload `json:"items"`
	UpdatedAt string            `json:"updatedAt,omitempty"`
}

func buildCartLinePayload(line domain.CartLineItem) cartLinePayload {
	return cartLinePayload{
		ID:        line.ID,
		ItemID:    line.ItemID,
		Name:      line.Name,
		Quantity:  line.Quantity,
		UnitPrice: line.UnitPrice,
		Seller:    sellerPayload{ID: line.Seller.ID, Name: line.Seller.Name, ServiceType: line.Seller.ServiceType},
		AddedAt:   formatTime(line.AddedAt),
	}
}

func buildCartPayload(cart domain.CartSession) cartPayload {
	payload := cartPayload{
		State:     string(services.CartStateOf(cart)),
		Items:     make([]cartLinePayload, 0, len(cart.Items)),
		UpdatedAt: formatTime(cart.UpdatedAt),
	}
	if cart.Seller != nil {
		payload.Seller = &sellerPayload{ID: cart.Seller.ID, Name: cart.Seller.Name, ServiceType: cart.Seller.ServiceType}
	}
	for _, line := range cart.Items {
		payload.Items = append(payload.Items, buildCartLinePayload(line))
	}
	return payload
}

type pendingPayload struct {
	ItemID     string `json:"itemId"`
	Quantity   int    `json:"quantity"`
	SellerID   string `json:"sellerId,omitempty"`
	SellerName string `json:"sellerName,omitempty"`
}

type addToCartPayload struct {
	Outcome        string           `json:"outcome"`
	Cart           cartPayload      `json:"cart"`
	Line           *cartLinePayload `json:"line,omitempty"`
	ExistingLineID string           `json:"existingLineId,omitempty"`
}

type quoteLinePayload struct {
	LineID       string        `json:"lineId"`
	ItemID       string        `json:"itemId"`
	Quantity     int           `json:"quantity"`
	UnitPrice    int64         `json:"unitPrice"`
	Subtotal     int64         `json:"subtotal"`
	Savings      int64         `json:"savings"`
	Total        int64         `json:"total"`
	AppliedOffer *offerPayload `json:"appliedOffer,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
}

type quotePayload struct {
	SellerID string             `json:"sellerId,omitempty"`
	Lines    []quoteLinePayload `json:"lines"`
	Subtotal int64              `json:"subtotal"`
	Savings  int64              `json:"savings"`
	Total    int64              `json:"total"`
}

func buildQuotePayload(quote domain.CartQuote) quotePayload {
	payload := quotePayload{
		SellerID: quote.SellerID,
		Lines:    make([]quoteLinePayload, 0, len(quote.Lines)),
		Subtotal: quote.Subtotal,
		Savings:  quote.Savings,
		Total:    quote.Total,
	}
	for _, line := range quote.Lines {
		lp := quoteLinePayload{
			LineID:    line.LineID,
			ItemID:    line.ItemID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal,
			Savings:   line.Savings,
			Total:     line.Total,
			Warnings:  line.Warnings,
		}
		if line.AppliedOffer != nil {
			offer := buildOfferPayload(services.OfferDetail{Offer: *line.AppliedOffer})
			lp.AppliedOffer = &offer
		}
		payload.Lines = append(payload.Lines, lp)
	}
	return payload
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

package services

import (
	"math"

	"github.com/shopspring/decimal"

	domain "github.com/hanko-field/storefront/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// DiscountAmount returns the discount in minor units, rounded half away from zero.
func DiscountAmount(item domain.Item) int64 {
	return discountAmount(item.BasePrice, item.DiscountPercentage)
}

// CurrentPrice returns the price a customer pays before offers. It always equals
// BasePrice minus DiscountAmount so the two never drift apart through rounding.
func CurrentPrice(item domain.Item) int64 {
	return currentPrice(item.BasePrice, item.DiscountPercentage)
}

// IsOnDiscount reports whether a non-zero discount is applied.
func IsOnDiscount(item domain.Item) bool {
	return hasDiscount(item.DiscountPercentage) && DiscountAmount(item) > 0
}

// PriceItem annotates an item with its derived prices.
func PriceItem(item domain.Item) domain.PricedItem {
	return domain.PricedItem{
		Item:           item,
		CurrentPrice:   CurrentPrice(item),
		DiscountAmount: DiscountAmount(item),
		IsOnDiscount:   IsOnDiscount(item),
	}
}

// PriceItems annotates every item, preserving order.
func PriceItems(items []domain.Item) []domain.PricedItem {
	out := make([]domain.PricedItem, 0, len(items))
	for _, item := range items {
		out = append(out, PriceItem(item))
	}
	return out
}

// ValidateDiscount rejects non-finite or out-of-range percentages and any discount that leaves
// nothing to pay. It must run on discount edits and on base price edits of discounted items.
func ValidateDiscount(discount float64, basePrice int64) error {
	if math.IsNaN(discount) || math.IsInf(discount, 0) {
		return newDiscountError("must be a finite number")
	}
	if discount < 0 || discount > 100 {
		return newDiscountError("must be between 0 and 100")
	}
	if basePrice < 0 {
		return newValidationError("basePrice", "must not be negative")
	}
	if hasDiscount(discount) && currentPrice(basePrice, discount) <= 0 {
		return newDiscountError("would reduce the price to zero or below")
	}
	return nil
}

// ValidateBasePrice checks a base price edit against the item's existing discount.
func ValidateBasePrice(basePrice int64, discount float64) error {
	if basePrice < 0 {
		return newValidationError("basePrice", "must not be negative")
	}
	if !hasDiscount(discount) {
		return nil
	}
	return ValidateDiscount(discount, basePrice)
}

func hasDiscount(discount float64) bool {
	return discount > 0 && !math.IsNaN(discount) && !math.IsInf(discount, 0)
}

func discountAmount(basePrice int64, discount float64) int64 {
	if !hasDiscount(discount) || basePrice <= 0 {
		return 0
	}
	if discount > 100 {
		discount = 100
	}
	return decimal.NewFromInt(basePrice).
		Mul(decimal.NewFromFloat(discount)).
		Div(hundred).
		Round(0).
		IntPart()
}

func currentPrice(basePrice int64, discount float64) int64 {
	if !hasDiscount(discount) {
		return basePrice
	}
	return basePrice - discountAmount(basePrice, discount)
}

package services

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/hanko-field/storefront/internal/domain"
)

// OfferWarning flags a legal but suspicious evaluation result.
type OfferWarning string

// OfferWarningNegativeSavings marks a bulk offer that costs more than buying the units individually.
const OfferWarningNegativeSavings OfferWarning = "negative_savings"

// OfferEvaluation captures the customer-facing economics of an offer at a given unit price.
type OfferEvaluation struct {
	Type               domain.OfferType
	Units              int
	RegularPrice       int64
	OfferPrice         int64
	Savings            int64
	EffectiveUnitPrice int64
	Warnings           []OfferWarning
}

// ValidateOffer checks the offer in field order and reports the first violation.
func ValidateOffer(offer domain.Offer) error {
	if strings.TrimSpace(offer.ItemID) == "" {
		return newValidationError("itemId", "is required")
	}
	if strings.TrimSpace(offer.Title) == "" {
		return newValidationError("title", "is required")
	}
	switch terms := offer.Terms.(type) {
	case domain.BulkPriceTerms:
		if terms.PurchaseQuantity < 2 {
			return newValidationError("purchaseQuantity", "must be at least 2")
		}
		if terms.DiscountedPrice <= 0 {
			return newValidationError("discountedPrice", "must be greater than zero")
		}
	case domain.BuyXGetYFreeTerms:
		if terms.BuyQuantity < 1 {
			return newValidationError("buyQuantity", "must be at least 1")
		}
		if terms.FreeQuantity < 1 {
			return newValidationError("freeQuantity", "must be at least 1")
		}
	case nil:
		return newValidationError("offerType", "is required")
	default:
		return newValidationError("offerType", "is not supported")
	}
	if offer.StartDate.IsZero() {
		return newValidationError("startDate", "is required")
	}
	if offer.EndDate != nil && !offer.EndDate.After(offer.StartDate) {
		return newValidationError("endDate", "must be after startDate")
	}
	return nil
}

// EvaluateSavings computes what the offer is worth against the item's unit price.
func EvaluateSavings(offer domain.Offer, unitPrice int64) (OfferEvaluation, error) {
	if unitPrice < 0 {
		return OfferEvaluation{}, newValidationError("unitPrice", "must not be negative")
	}
	switch terms := offer.Terms.(type) {
	case domain.BulkPriceTerms:
		if terms.PurchaseQuantity <= 0 {
			return OfferEvaluation{}, newValidationError("purchaseQuantity", "must be at least 2")
		}
		regular := unitPrice * int64(terms.PurchaseQuantity)
		eval := OfferEvaluation{
			Type:               domain.OfferTypeBulkPrice,
			Units:              terms.PurchaseQuantity,
			RegularPrice:       regular,
			OfferPrice:         terms.DiscountedPrice,
			Savings:            regular - terms.DiscountedPrice,
			EffectiveUnitPrice: divideRounded(terms.DiscountedPrice, int64(terms.PurchaseQuantity)),
		}
		if eval.Savings < 0 {
			eval.Warnings = append(eval.Warnings, OfferWarningNegativeSavings)
		}
		return eval, nil
	case domain.BuyXGetYFreeTerms:
		if terms.BuyQuantity <= 0 || terms.FreeQuantity <= 0 {
			return OfferEvaluation{}, newValidationError("buyQuantity", "buy and free quantities must be at least 1")
		}
		units := terms.BuyQuantity + terms.FreeQuantity
		paid := unitPrice * int64(terms.BuyQuantity)
		return OfferEvaluation{
			Type:               domain.OfferTypeBuyXGetYFree,
			Units:              units,
			RegularPrice:       unitPrice * int64(units),
			OfferPrice:         paid,
			Savings:            unitPrice * int64(terms.FreeQuantity),
			EffectiveUnitPrice: divideRounded(paid, int64(units)),
		}, nil
	case nil:
		return OfferEvaluation{}, newValidationError("offerType", "is required")
	default:
		return OfferEvaluation{}, newValidationError("offerType", "is not supported")
	}
}

// LineSavings returns the savings the offer yields for a cart line of the given quantity.
// Only complete bundles qualify; the result is negative for a bulk offer priced above the regular total.
func LineSavings(offer domain.Offer, unitPrice int64, quantity int) int64 {
	if quantity <= 0 || unitPrice < 0 {
		return 0
	}
	switch terms := offer.Terms.(type) {
	case domain.BulkPriceTerms:
		if terms.PurchaseQuantity <= 0 {
			return 0
		}
		bundles := int64(quantity / terms.PurchaseQuantity)
		return bundles * (unitPrice*int64(terms.PurchaseQuantity) - terms.DiscountedPrice)
	case domain.BuyXGetYFreeTerms:
		group := terms.BuyQuantity + terms.FreeQuantity
		if terms.BuyQuantity <= 0 || terms.FreeQuantity <= 0 {
			return 0
		}
		free := int64(quantity/group) * int64(terms.FreeQuantity)
		return free * unitPrice
	default:
		return 0
	}
}

// IsExpired reports whether the offer's end date lies before now. Active state is not consulted.
func IsExpired(offer domain.Offer, now time.Time) bool {
	return offer.EndDate != nil && offer.EndDate.Before(now)
}

// HasStarted reports whether the offer's start date has been reached.
func HasStarted(offer domain.Offer, now time.Time) bool {
	return !offer.StartDate.After(now)
}

// IsRedeemable reports whether the offer may be honoured at checkout.
func IsRedeemable(offer domain.Offer, now time.Time) bool {
	return offer.IsActive && HasStarted(offer, now) && !IsExpired(offer, now)
}

func divideRounded(numerator, denominator int64) int64 {
	if denominator == 0 {
		return 0
	}
	return decimal.NewFromInt(numerator).
		Div(decimal.NewFromInt(denominator)).
		Round(0).
		IntPart()
}

package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/repositories"
)

const (
	defaultOfferPageSize = 20
	maxOfferPageSize     = 100
	maxOfferTitleLength  = 120
	maxOfferDescLength   = 1000
)

// OfferServiceDeps bundles constructor inputs for the offer service.
type OfferServiceDeps struct {
	Offers      repositories.OfferRepository
	Items       repositories.ItemRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type offerService struct {
	offers repositories.OfferRepository
	items  repositories.ItemRepository
	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
	policy *bluemonday.Policy
}

// NewOfferService constructs the offer service with the supplied dependencies.
func NewOfferService(deps OfferServiceDeps) (OfferService, error) {
	if deps.Offers == nil {
		return nil, errors.New("offer service: offer repository is required")
	}
	if deps.Items == nil {
		return nil, errors.New("offer service: item repository is required")
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
	return &offerService{
		offers: deps.Offers,
		items:  deps.Items,
		clock:  func() time.Time { return clock().UTC() },
		newID:  idGen,
		logger: logger,
		policy: bluemonday.StrictPolicy(),
	}, nil
}

func (s *offerService) ListSellerOffers(ctx context.Context, filter SellerOfferFilter) (OfferPage, error) {
	sellerID := strings.TrimSpace(filter.SellerID)
	if sellerID == "" {
		return OfferPage{}, fmt.Errorf("list offers: %w", ErrForbidden)
	}
	status, err := parseOfferStatus(filter.Status)
	if err != nil {
		return OfferPage{}, err
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	limit := clampLimit(filter.Limit)

	offers, err := s.offers.List(ctx, repositories.OfferFilter{SellerID: sellerID})
	if err != nil {
		return OfferPage{}, translateRepoError("list offers", err)
	}
	items, err := s.sellerItems(ctx, sellerID)
	if err != nil {
		return OfferPage{}, err
	}

	now := s.clock()
	matched := make([]OfferDetail, 0, len(offers))
	for _, offer := range offers {
		if !matchesStatus(offer, status, now) {
			continue
		}
		item, ok := items[offer.ItemID]
		matched = append(matched, s.detail(offer, item, ok, now))
	}

	result := OfferPage{Page: page, Limit: limit, Total: len(matched), Offers: []OfferDetail{}}
	// Comparing page counts first keeps (page-1)*limit from overflowing.
	if len(matched) > 0 && page-1 <= (len(matched)-1)/limit {
		start := (page - 1) * limit
		end := start + limit
		if end > len(matched) {
			end = len(matched)
		}
		result.Offers = matched[start:end]
	}
	return result, nil
}

func (s *offerService) CreateOffer(ctx context.Context, cmd UpsertOfferCommand) (OfferDetail, error) {
	sellerID := strings.TrimSpace(cmd.SellerID)
	if sellerID == "" {
		return OfferDetail{}, fmt.Errorf("create offer: %w", ErrForbidden)
	}
	now := s.clock()
	offer := s.sanitize(cmd.Offer)
	if offer.StartDate.IsZero() {
		offer.StartDate = now
	}
	offer.IsActive = true
	if err := ValidateOffer(offer); err != nil {
		return OfferDetail{}, err
	}
	item, err := s.ownedItem(ctx, sellerID, offer.ItemID)
	if err != nil {
		return OfferDetail{}, err
	}

	offer.ID = s.newID()
	offer.SellerID = sellerID
	offer.CreatedAt = now
	offer.UpdatedAt = now
	saved, err := s.offers.Insert(ctx, offer)
	if err != nil {
		return OfferDetail{}, translateRepoError("create offer", err)
	}
	s.logger(ctx, "offer.created", map[string]any{
		"offerId":  saved.ID,
		"sellerId": sellerID,
		"itemId":   saved.ItemID,
		"type":     string(saved.Type()),
	})
	return s.detail(saved, item, true, now), nil
}

// UpdateOffer replaces the editable fields and re-validates as if the offer were new.
// Terms are replaced wholesale so a type switch never inherits fields from the old variant.
func (s *offerService) UpdateOffer(ctx context.Context, cmd UpsertOfferCommand) (OfferDetail, error) {
	existing, err := s.ownedOffer(ctx, cmd.SellerID, cmd.OfferID)
	if err != nil {
		return OfferDetail{}, err
	}
	now := s.clock()
	offer := s.sanitize(cmd.Offer)
	if offer.StartDate.IsZero() {
		offer.StartDate = existing.StartDate
	}
	offer.ID = existing.ID
	offer.SellerID = existing.SellerID
	offer.IsActive = existing.IsActive
	offer.CreatedAt = existing.CreatedAt
	offer.UpdatedAt = now
	if err := ValidateOffer(offer); err != nil {
		return OfferDetail{}, err
	}
	item, err := s.ownedItem(ctx, existing.SellerID, offer.ItemID)
	if err != nil {
		return OfferDetail{}, err
	}
	saved, err := s.offers.Update(ctx, offer)
	if err != nil {
		return OfferDetail{}, translateRepoError("update offer", err)
	}
	return s.detail(saved, item, true, now), nil
}

func (s *offerService) DeleteOffer(ctx context.Context, cmd OfferRefCommand) error {
	offer, err := s.ownedOffer(ctx, cmd.SellerID, cmd.OfferID)
	if err != nil {
		return err
	}
	if err := s.offers.Delete(ctx, offer.ID); err != nil {
		return translateRepoError("delete offer", err)
	}
	s.logger(ctx, "offer.deleted", map[string]any{"offerId": offer.ID, "sellerId": offer.SellerID})
	return nil
}

func (s *offerService) ToggleStatus(ctx context.Context, cmd OfferRefCommand) (OfferDetail, error) {
	offer, err := s.ownedOffer(ctx, cmd.SellerID, cmd.OfferID)
	if err != nil {
		return OfferDetail{}, err
	}
	toggled, err := s.offers.ToggleActive(ctx, offer.ID)
	if err != nil {
		return OfferDetail{}, translateRepoError("toggle offer", err)
	}
	item, itemErr := s.items.Get(ctx, toggled.ItemID)
	return s.detail(toggled, item, itemErr == nil, s.clock()), nil
}

func (s *offerService) ListItemOffers(ctx context.Context, itemID string) ([]OfferDetail, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, newValidationError("itemId", "is required")
	}
	item, err := s.items.Get(ctx, itemID)
	if err != nil {
		return nil, translateRepoError("list item offers", err)
	}
	offers, err := s.offers.List(ctx, repositories.OfferFilter{ItemID: itemID})
	if err != nil {
		return nil, translateRepoError("list item offers", err)
	}
	now := s.clock()
	out := make([]OfferDetail, 0, len(offers))
	for _, offer := range offers {
		if !IsRedeemable(offer, now) {
			continue
		}
		out = append(out, s.detail(offer, item, true, now))
	}
	return out, nil
}

func (s *offerService) ListSellerPublicOffers(ctx context.Context, filter PublicOfferFilter) ([]OfferDetail, error) {
	sellerID := strings.TrimSpace(filter.SellerID)
	if sellerID == "" {
		return nil, newValidationError("sellerId", "is required")
	}
	category := ""
	if strings.TrimSpace(filter.Category) != "" {
		category, _ = NormalizePlacement(filter.Category, "")
	}
	limit := clampLimit(filter.Limit)

	items, err := s.sellerItems(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	offers, err := s.offers.List(ctx, repositories.OfferFilter{SellerID: sellerID})
	if err != nil {
		return nil, translateRepoError("list seller offers", err)
	}
	now := s.clock()
	out := make([]OfferDetail, 0, limit)
	for _, offer := range offers {
		if len(out) >= limit {
			break
		}
		if !IsRedeemable(offer, now) {
			continue
		}
		item, ok := items[offer.ItemID]
		if !ok {
			continue
		}
		if category != "" && item.Category != category {
			continue
		}
		out = append(out, s.detail(offer, item, true, now))
	}
	return out, nil
}

func (s *offerService) detail(offer domain.Offer, item domain.Item, hasItem bool, now time.Time) OfferDetail {
	d := OfferDetail{Offer: offer, IsExpired: IsExpired(offer, now)}
	if !hasItem {
		return d
	}
	d.ItemName = item.Name
	if eval, err := EvaluateSavings(offer, CurrentPrice(item)); err == nil {
		d.Evaluation = &eval
	}
	return d
}

func (s *offerService) sanitize(offer domain.Offer) domain.Offer {
	offer.ItemID = strings.TrimSpace(offer.ItemID)
	offer.Title = truncate(s.plainText(offer.Title), maxOfferTitleLength)
	offer.Description = truncate(s.plainText(offer.Description), maxOfferDescLength)
	return offer
}

func (s *offerService) plainText(value string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(value)))
}

func (s *offerService) ownedOffer(ctx context.Context, sellerID, offerID string) (domain.Offer, error) {
	sellerID = strings.TrimSpace(sellerID)
	offerID = strings.TrimSpace(offerID)
	if sellerID == "" {
		return domain.Offer{}, fmt.Errorf("offer: %w", ErrForbidden)
	}
	if offerID == "" {
		return domain.Offer{}, newValidationError("id", "is required")
	}
	offer, err := s.offers.Get(ctx, offerID)
	if err != nil {
		return domain.Offer{}, translateRepoError("get offer", err)
	}
	if offer.SellerID != sellerID {
		return domain.Offer{}, fmt.Errorf("offer %q: %w", offerID, ErrNotFound)
	}
	return offer, nil
}

func (s *offerService) ownedItem(ctx context.Context, sellerID, itemID string) (domain.Item, error) {
	item, err := s.items.Get(ctx, itemID)
	if err != nil {
		return domain.Item{}, translateRepoError("get offer item", err)
	}
	if item.SellerID != sellerID {
		return domain.Item{}, fmt.Errorf("item %q: %w", itemID, ErrNotFound)
	}
	return item, nil
}

func (s *offerService) sellerItems(ctx context.Context, sellerID string) (map[string]domain.Item, error) {
	items, err := s.items.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, translateRepoError("list seller items", err)
	}
	out := make(map[string]domain.Item, len(items))
	for _, item := range items {
		out[item.ID] = NormalizeItemPlacement(item)
	}
	return out, nil
}

func parseOfferStatus(status OfferStatusFilter) (OfferStatusFilter, error) {
	switch OfferStatusFilter(strings.ToLower(strings.TrimSpace(string(status)))) {
	case "", OfferStatusAll:
		return OfferStatusAll, nil
	case OfferStatusActive:
		return OfferStatusActive, nil
	case OfferStatusInactive:
		return OfferStatusInactive, nil
	case OfferStatusExpired:
		return OfferStatusExpired, nil
	default:
		return "", newValidationError("status", "must be one of all, active, inactive, expired")
	}
}

func matchesStatus(offer domain.Offer, status OfferStatusFilter, now time.Time) bool {
	switch status {
	case OfferStatusActive:
		return offer.IsActive && !IsExpired(offer, now)
	case OfferStatusInactive:
		return !offer.IsActive
	case OfferStatusExpired:
		return IsExpired(offer, now)
	default:
		return true
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultOfferPageSize
	}
	if limit > maxOfferPageSize {
		return maxOfferPageSize
	}
	return limit
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}

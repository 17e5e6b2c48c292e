package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/hanko-field/storefront/internal/domain"
)

var offerNow = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func newTestOfferService(t *testing.T, items *memoryItemRepository, offers *memoryOfferRepository) OfferService {
	t.Helper()
	svc, err := NewOfferService(OfferServiceDeps{
		Offers:      offers,
		Items:       items,
		Clock:       func() time.Time { return offerNow },
		IDGenerator: sequentialIDs("offer"),
	})
	require.NoError(t, err)
	return svc
}

func storedOffer(id, sellerID, itemID string, terms domain.OfferTerms) domain.Offer {
	return domain.Offer{
		ID:        id,
		SellerID:  sellerID,
		ItemID:    itemID,
		Title:     "offer " + id,
		Terms:     terms,
		StartDate: offerNow.Add(-24 * time.Hour),
		IsActive:  true,
	}
}

func TestNewOfferServiceRequiresRepositories(t *testing.T) {
	_, err := NewOfferService(OfferServiceDeps{Items: newMemoryItemRepository()})
	require.Error(t, err)
	_, err = NewOfferService(OfferServiceDeps{Offers: newMemoryOfferRepository()})
	require.Error(t, err)
}

func TestOfferServiceCreateOffer(t *testing.T) {
	item := seedItem("item-1", "Drinks", "Hot")
	item.BasePrice = 100
	items := newMemoryItemRepository(item)
	offers := newMemoryOfferRepository()
	svc := newTestOfferService(t, items, offers)

	detail, err := svc.CreateOffer(context.Background(), UpsertOfferCommand{
		SellerID: "seller-1",
		Offer: domain.Offer{
			ItemID:      " item-1 ",
			Title:       "<b>Three</b> for 240",
			Description: "Tom &amp; Jerry <script>alert(1)</script>",
			Terms:       domain.BulkPriceTerms{PurchaseQuantity: 3, DiscountedPrice: 240},
		},
	})
	require.NoError(t, err)

	offer := detail.Offer
	assert.Equal(t, "offer-1", offer.ID)
	assert.Equal(t, "seller-1", offer.SellerID)
	assert.Equal(t, "item-1", offer.ItemID)
	assert.Equal(t, "Three for 240", offer.Title)
	assert.Equal(t, "Tom & Jerry", offer.Description)
	assert.True(t, offer.IsActive)
	assert.Equal(t, offerNow, offer.StartDate)
	assert.Equal(t, "item item-1", detail.ItemName)
	require.NotNil(t, detail.Evaluation)
	assert.Equal(t, int64(60), detail.Evaluation.Savings)

	stored, err := offers.Get(context.Background(), "offer-1")
	require.NoError(t, err)
	assert.Equal(t, offer, stored)
}

func TestOfferServiceCreateRejectsForeignItem(t *testing.T) {
	foreign := seedItem("item-9", "Drinks", "Hot")
	foreign.SellerID = "seller-2"
	svc := newTestOfferService(t, newMemoryItemRepository(foreign), newMemoryOfferRepository())

	_, err := svc.CreateOffer(context.Background(), UpsertOfferCommand{
		SellerID: "seller-1",
		Offer: domain.Offer{
			ItemID: "item-9",
			Title:  "nope",
			Terms:  domain.BuyXGetYFreeTerms{BuyQuantity: 1, FreeQuantity: 1},
		},
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOfferServiceCreateValidates(t *testing.T) {
	items := newMemoryItemRepository(seedItem("item-1", "Drinks", "Hot"))
	svc := newTestOfferService(t, items, newMemoryOfferRepository())

	_, err := svc.CreateOffer(context.Background(), UpsertOfferCommand{
		SellerID: "seller-1",
		Offer: domain.Offer{
			ItemID: "item-1",
			Title:  "<i></i>",
			Terms:  domain.BulkPriceTerms{PurchaseQuantity: 2, DiscountedPrice: 10},
		},
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestOfferServiceUpdateSwitchesVariant(t *testing.T) {
	items := newMemoryItemRepository(seedItem("item-1", "Drinks", "Hot"))
	existing := storedOffer("o1", "seller-1", "item-1", domain.BulkPriceTerms{PurchaseQuantity: 3, DiscountedPrice: 2400})
	existing.IsActive = false
	existing.CreatedAt = offerNow.Add(-48 * time.Hour)
	offers := newMemoryOfferRepository(existing)
	svc := newTestOfferService(t, items, offers)

	detail, err := svc.UpdateOffer(context.Background(), UpsertOfferCommand{
		SellerID: "seller-1",
		OfferID:  "o1",
		Offer: domain.Offer{
			ItemID: "item-1",
			Title:  "two plus one",
			Terms:  domain.BuyXGetYFreeTerms{BuyQuantity: 2, FreeQuantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OfferTypeBuyXGetYFree, detail.Offer.Type())
	assert.Equal(t, domain.BuyXGetYFreeTerms{BuyQuantity: 2, FreeQuantity: 1}, detail.Offer.Terms)
	assert.False(t, detail.Offer.IsActive, "update keeps the active flag")
	assert.Equal(t, existing.CreatedAt, detail.Offer.CreatedAt)
	assert.Equal(t, existing.StartDate, detail.Offer.StartDate)
	assert.Equal(t, offerNow, detail.Offer.UpdatedAt)

	_, err = svc.UpdateOffer(context.Background(), UpsertOfferCommand{
		SellerID: "seller-2",
		OfferID:  "o1",
		Offer:    existing,
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOfferServiceToggleAndDelete(t *testing.T) {
	items := newMemoryItemRepository(seedItem("item-1", "Drinks", "Hot"))
	offers := newMemoryOfferRepository(storedOffer("o1", "seller-1", "item-1", domain.BuyXGetYFreeTerms{BuyQuantity: 1, FreeQuantity: 1}))
	svc := newTestOfferService(t, items, offers)
	ref := OfferRefCommand{SellerID: "seller-1", OfferID: "o1"}

	detail, err := svc.ToggleStatus(context.Background(), ref)
	require.NoError(t, err)
	assert.False(t, detail.Offer.IsActive)

	detail, err = svc.ToggleStatus(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, detail.Offer.IsActive)

	require.ErrorIs(t, svc.DeleteOffer(context.Background(), OfferRefCommand{SellerID: "seller-2", OfferID: "o1"}), ErrNotFound)
	require.NoError(t, svc.DeleteOffer(context.Background(), ref))
	require.ErrorIs(t, svc.DeleteOffer(context.Background(), ref), ErrNotFound)
}

func TestOfferServiceListSellerOffersFiltersAndPages(t *testing.T) {
	items := newMemoryItemRepository(seedItem("item-1", "Drinks", "Hot"))
	ended := offerNow.Add(-time.Hour)
	inactive := storedOffer("o2", "seller-1", "item-1", domain.BuyXGetYFreeTerms{BuyQuantity: 1, FreeQuantity: 1})
	inactive.IsActive = false
	expired := storedOffer("o3", "seller-1", "item-1", domain.BuyXGetYFreeTerms{BuyQuantity: 1, FreeQuantity: 1})
	expired.EndDate = &ended
	offers := newMemoryOfferRepository(
		storedOffer("o1", "seller-1", "item-1", domain.BulkPriceTerms{PurchaseQuantity: 2, DiscountedPrice: 1800}),
		inactive,
		expired,
		storedOffer("o4", "seller-2", "item-x", domain.BulkPriceTerms{PurchaseQuantity: 2, DiscountedPrice: 1}),
	)
	svc := newTestOfferService(t, items, offers)

	cases := []struct {
		status OfferStatusFilter
		want   []string
	}{
		{OfferStatusAll, []string{"o1", "o2", "o3"}},
		{OfferStatusActive, []string{"o1"}},
		{OfferStatusInactive, []string{"o2"}},
		{OfferStatusExpired, []string{"o3"}},
	}
	for _, tc := range cases {
		page, err := svc.ListSellerOffers(context.Background(), SellerOfferFilter{SellerID: "seller-1", Status: tc.status})
		require.NoError(t, err)
		assert.Equal(t, tc.want, offerIDs(page.Offers), "status %s", tc.status)
		assert.Equal(t, len(tc.want), page.Total)
	}

	page, err := svc.ListSellerOffers(context.Background(), SellerOfferFilter{SellerID: "seller-1", Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"o3"}, offerIDs(page.Offers))
	assert.Equal(t, 3, page.Total)
	assert.True(t, page.Offers[0].IsExpired)

	page, err = svc.ListSellerOffers(context.Background(), SellerOfferFilter{SellerID: "seller-1", Page: 3, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"o3"}, offerIDs(page.Offers))

	for _, n := range []int{4, math.MaxInt} {
		page, err = svc.ListSellerOffers(context.Background(), SellerOfferFilter{SellerID: "seller-1", Page: n, Limit: 100})
		require.NoError(t, err)
		assert.Empty(t, page.Offers, "page %d", n)
		assert.NotNil(t, page.Offers)
		assert.Equal(t, 3, page.Total)
	}

	_, err = svc.ListSellerOffers(context.Background(), SellerOfferFilter{SellerID: "seller-1", Status: "bogus"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestOfferServicePublicListingsOnlyShowRedeemable(t *testing.T) {
	items := newMemoryItemRepository(seedItem("item-1", "Drinks", "Hot"), seedItem("item-2", "Mains", "Rice"))
	inactive := storedOffer("o2", "seller-1", "item-1", domain.BuyXGetYFreeTerms{BuyQuantity: 1, FreeQuantity: 1})
	inactive.IsActive = false
	future := storedOffer("o3", "seller-1", "item-1", domain.BuyXGetYFreeTerms{BuyQuantity: 1, FreeQuantity: 1})
	future.StartDate = offerNow.Add(time.Hour)
	offers := newMemoryOfferRepository(
		storedOffer("o1", "seller-1", "item-1", domain.BulkPriceTerms{PurchaseQuantity: 2, DiscountedPrice: 1800}),
		inactive,
		future,
		storedOffer("o4", "seller-1", "item-2", domain.BulkPriceTerms{PurchaseQuantity: 2, DiscountedPrice: 1800}),
	)
	svc := newTestOfferService(t, items, offers)

	itemOffers, err := svc.ListItemOffers(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, offerIDs(itemOffers))

	all, err := svc.ListSellerPublicOffers(context.Background(), PublicOfferFilter{SellerID: "seller-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"o1", "o4"}, offerIDs(all))

	mains, err := svc.ListSellerPublicOffers(context.Background(), PublicOfferFilter{SellerID: "seller-1", Category: " Mains "})
	require.NoError(t, err)
	assert.Equal(t, []string{"o4"}, offerIDs(mains))

	_, err = svc.ListItemOffers(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func offerIDs(details []OfferDetail) []string {
	ids := make([]string, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.Offer.ID)
	}
	return ids
}

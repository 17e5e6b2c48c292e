package firestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/hanko-field/storefront/internal/domain"
)

func TestOfferDocumentCarriesTypeDiscriminator(t *testing.T) {
	start := time.Date(2025, 5, 1, 9, 0, 0, 0, time.FixedZone("JST", 9*3600))
	doc, err := newOfferDocument(domain.Offer{
		ID:        "o-1",
		ItemID:    "item-1",
		Terms:     domain.BuyXGetYFreeTerms{BuyQuantity: 2, FreeQuantity: 1},
		StartDate: start,
	})
	require.NoError(t, err)
	assert.Equal(t, "buy-x-get-y-free", doc.Type)
	assert.Equal(t, int64(2), doc.Terms.BuyQuantity)
	assert.Zero(t, doc.Terms.PurchaseQuantity)
	assert.Equal(t, time.UTC, doc.StartDate.Location())

	offer, err := doc.toDomain("o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BuyXGetYFreeTerms{BuyQuantity: 2, FreeQuantity: 1}, offer.Terms)
	assert.True(t, start.Equal(offer.StartDate))
}

func TestOfferDocumentRejectsUnknownVariants(t *testing.T) {
	_, err := newOfferDocument(domain.Offer{ID: "o-1"})
	assert.Error(t, err)

	_, err = offerDocument{Type: "percent-off"}.toDomain("o-2")
	assert.ErrorContains(t, err, "percent-off")
}

func TestItemDocumentKeepsUnlimitedQuantityNil(t *testing.T) {
	item := domain.Item{ID: "a", SellerID: "s", Name: "Tea", BasePrice: 500, InStock: true}
	assert.Nil(t, newItemDocument(item).toDomain("a").Quantity)

	qty := 3
	item.Quantity = &qty
	got := newItemDocument(item).toDomain("a")
	require.NotNil(t, got.Quantity)
	assert.Equal(t, 3, *got.Quantity)
}

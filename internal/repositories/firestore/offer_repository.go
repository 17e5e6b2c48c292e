package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/storefront/internal/domain"
	pfirestore "github.com/hanko-field/storefront/internal/platform/firestore"
	"github.com/hanko-field/storefront/internal/repositories"
)

const (
	defaultOffersCollection = "offers"
	// Firestore caps "in" filters at 30 values.
	maxInFilterValues = 30
)

// OfferRepository stores offers with a type discriminator and flattened terms.
type OfferRepository struct {
	provider *pfirestore.Provider
	offers   *pfirestore.Collection[offerDocument]
}

var _ repositories.OfferRepository = (*OfferRepository)(nil)

// NewOfferRepository binds the repository to collection, defaulting to "offers".
func NewOfferRepository(provider *pfirestore.Provider, collection string) (*OfferRepository, error) {
	if provider == nil {
		return nil, errors.New("offer repository requires firestore provider")
	}
	if strings.TrimSpace(collection) == "" {
		collection = defaultOffersCollection
	}
	return &OfferRepository{provider: provider, offers: pfirestore.NewCollection[offerDocument](provider, collection)}, nil
}

// List returns matching offers ordered by creation time then id.
func (r *OfferRepository) List(ctx context.Context, filter repositories.OfferFilter) ([]domain.Offer, error) {
	base := func(q firestore.Query) firestore.Query {
		if filter.SellerID != "" {
			q = q.Where("sellerId", "==", filter.SellerID)
		}
		if filter.ItemID != "" {
			q = q.Where("itemId", "==", filter.ItemID)
		}
		return q
	}

	var docs []pfirestore.Document[offerDocument]
	if len(filter.ItemIDs) == 0 {
		found, err := r.offers.Query(ctx, base)
		if err != nil {
			return nil, err
		}
		docs = found
	} else {
		for start := 0; start < len(filter.ItemIDs); start += maxInFilterValues {
			end := min(start+maxInFilterValues, len(filter.ItemIDs))
			chunk := filter.ItemIDs[start:end]
			found, err := r.offers.Query(ctx, func(q firestore.Query) firestore.Query {
				return base(q).Where("itemId", "in", chunk)
			})
			if err != nil {
				return nil, err
			}
			docs = append(docs, found...)
		}
	}

	offers := make([]domain.Offer, 0, len(docs))
	for _, doc := range docs {
		offer, err := doc.Data.toDomain(doc.ID)
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}
	sort.SliceStable(offers, func(i, j int) bool {
		if !offers[i].CreatedAt.Equal(offers[j].CreatedAt) {
			return offers[i].CreatedAt.Before(offers[j].CreatedAt)
		}
		return offers[i].ID < offers[j].ID
	})
	return offers, nil
}

func (r *OfferRepository) Get(ctx context.Context, offerID string) (domain.Offer, error) {
	doc, err := r.offers.Get(ctx, offerID)
	if err != nil {
		return domain.Offer{}, err
	}
	return doc.Data.toDomain(doc.ID)
}

func (r *OfferRepository) Insert(ctx context.Context, offer domain.Offer) (domain.Offer, error) {
	doc, err := newOfferDocument(offer)
	if err != nil {
		return domain.Offer{}, err
	}
	var ref *firestore.DocumentRef
	if strings.TrimSpace(offer.ID) == "" {
		ref, err = r.offers.NewDoc(ctx)
	} else {
		ref, err = r.offers.Doc(ctx, offer.ID)
	}
	if err != nil {
		return domain.Offer{}, err
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return domain.Offer{}, pfirestore.WrapError("offers.insert", err)
	}
	offer.ID = ref.ID
	return offer, nil
}

// Update replaces the stored offer. The document must already exist.
func (r *OfferRepository) Update(ctx context.Context, offer domain.Offer) (domain.Offer, error) {
	doc, err := newOfferDocument(offer)
	if err != nil {
		return domain.Offer{}, err
	}
	ref, err := r.offers.Doc(ctx, offer.ID)
	if err != nil {
		return domain.Offer{}, err
	}
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			return err
		}
		return tx.Set(ref, doc)
	})
	if err != nil {
		return domain.Offer{}, err
	}
	return offer, nil
}

func (r *OfferRepository) Delete(ctx context.Context, offerID string) error {
	ref, err := r.offers.Doc(ctx, offerID)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		return pfirestore.WrapError("offers.delete", err)
	}
	return nil
}

// ToggleActive flips isActive inside a transaction so concurrent toggles serialise.
func (r *OfferRepository) ToggleActive(ctx context.Context, offerID string) (domain.Offer, error) {
	ref, err := r.offers.Doc(ctx, offerID)
	if err != nil {
		return domain.Offer{}, err
	}
	var toggled domain.Offer
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		decoded, err := pfirestore.Decode[offerDocument](snap)
		if err != nil {
			return err
		}
		doc := decoded.Data
		doc.IsActive = !doc.IsActive
		doc.UpdatedAt = time.Now().UTC()
		offer, err := doc.toDomain(ref.ID)
		if err != nil {
			return err
		}
		toggled = offer
		return tx.Update(ref, []firestore.Update{
			{Path: "isActive", Value: doc.IsActive},
			{Path: "updatedAt", Value: doc.UpdatedAt},
		})
	})
	if err != nil {
		return domain.Offer{}, err
	}
	return toggled, nil
}

type offerDocument struct {
	SellerID    string     `firestore:"sellerId"`
	ItemID      string     `firestore:"itemId"`
	Title       string     `firestore:"title"`
	Description string     `firestore:"description,omitempty"`
	Type        string     `firestore:"type"`
	Terms       offerTerms `firestore:"terms"`
	StartDate   time.Time  `firestore:"startDate"`
	EndDate     *time.Time `firestore:"endDate"`
	IsActive    bool       `firestore:"isActive"`
	CreatedAt   time.Time  `firestore:"createdAt"`
	UpdatedAt   time.Time  `firestore:"updatedAt"`
}

type offerTerms struct {
	PurchaseQuantity int64 `firestore:"purchaseQuantity,omitempty"`
	DiscountedPrice  int64 `firestore:"discountedPrice,omitempty"`
	BuyQuantity      int64 `firestore:"buyQuantity,omitempty"`
	FreeQuantity     int64 `firestore:"freeQuantity,omitempty"`
}

func newOfferDocument(offer domain.Offer) (offerDocument, error) {
	doc := offerDocument{
		SellerID:    offer.SellerID,
		ItemID:      offer.ItemID,
		Title:       offer.Title,
		Description: offer.Description,
		StartDate:   offer.StartDate.UTC(),
		IsActive:    offer.IsActive,
		CreatedAt:   offer.CreatedAt.UTC(),
		UpdatedAt:   offer.UpdatedAt.UTC(),
	}
	if offer.EndDate != nil {
		end := offer.EndDate.UTC()
		doc.EndDate = &end
	}
	switch terms := offer.Terms.(type) {
	case domain.BulkPriceTerms:
		doc.Type = string(domain.OfferTypeBulkPrice)
		doc.Terms = offerTerms{PurchaseQuantity: int64(terms.PurchaseQuantity), DiscountedPrice: terms.DiscountedPrice}
	case domain.BuyXGetYFreeTerms:
		doc.Type = string(domain.OfferTypeBuyXGetYFree)
		doc.Terms = offerTerms{BuyQuantity: int64(terms.BuyQuantity), FreeQuantity: int64(terms.FreeQuantity)}
	default:
		return offerDocument{}, fmt.Errorf("offer %s: unsupported terms %T", offer.ID, offer.Terms)
	}
	return doc, nil
}

func (d offerDocument) toDomain(id string) (domain.Offer, error) {
	offer := domain.Offer{
		ID:          id,
		SellerID:    d.SellerID,
		ItemID:      d.ItemID,
		Title:       d.Title,
		Description: d.Description,
		StartDate:   d.StartDate.UTC(),
		IsActive:    d.IsActive,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	if d.EndDate != nil {
		end := d.EndDate.UTC()
		offer.EndDate = &end
	}
	switch domain.OfferType(d.Type) {
	case domain.OfferTypeBulkPrice:
		offer.Terms = domain.BulkPriceTerms{PurchaseQuantity: int(d.Terms.PurchaseQuantity), DiscountedPrice: d.Terms.DiscountedPrice}
	case domain.OfferTypeBuyXGetYFree:
		offer.Terms = domain.BuyXGetYFreeTerms{BuyQuantity: int(d.Terms.BuyQuantity), FreeQuantity: int(d.Terms.FreeQuantity)}
	default:
		return domain.Offer{}, fmt.Errorf("offer %s: unknown type %q", id, d.Type)
	}
	return offer, nil
}

package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/hanko-field/storefront/internal/domain"
	pfirestore "github.com/hanko-field/storefront/internal/platform/firestore"
	"github.com/hanko-field/storefront/internal/repositories"
)

const defaultSellersCollection = "sellers"

// SellerDirectory reads seller profiles maintained by the onboarding service.
type SellerDirectory struct {
	sellers *pfirestore.Collection[sellerDocument]
}

var _ repositories.SellerDirectory = (*SellerDirectory)(nil)

// NewSellerDirectory binds the directory to collection, defaulting to "sellers".
func NewSellerDirectory(provider *pfirestore.Provider, collection string) (*SellerDirectory, error) {
	if provider == nil {
		return nil, errors.New("seller directory requires firestore provider")
	}
	if strings.TrimSpace(collection) == "" {
		collection = defaultSellersCollection
	}
	return &SellerDirectory{sellers: pfirestore.NewCollection[sellerDocument](provider, collection)}, nil
}

func (d *SellerDirectory) GetSeller(ctx context.Context, sellerID string) (domain.Seller, error) {
	doc, err := d.sellers.Get(ctx, sellerID)
	if err != nil {
		return domain.Seller{}, err
	}
	return domain.Seller{
		ID:          doc.ID,
		Name:        doc.Data.Name,
		ServiceType: doc.Data.ServiceType,
		IsOpen:      doc.Data.IsOpen,
	}, nil
}

type sellerDocument struct {
	Name        string `firestore:"name"`
	ServiceType string `firestore:"serviceType"`
	IsOpen      bool   `firestore:"isOpen"`
}

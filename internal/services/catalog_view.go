package services

import (
	"fmt"
	"strings"

	domain "github.com/hanko-field/storefront/internal/domain"
)

// CatalogViewMode selects the projection returned to a caller.
type CatalogViewMode string

const (
	// CatalogViewFlat is the self-service projection: a flat list of the caller's own items.
	CatalogViewFlat CatalogViewMode = "flat"
	// CatalogViewGrouped is the administrative projection of another seller's catalog.
	CatalogViewGrouped CatalogViewMode = "grouped"
)

// CatalogCaller describes the authenticated actor.
type CatalogCaller struct {
	UserID   string
	SellerID string
	IsAdmin  bool
}

// CatalogScope is the resolved target of a catalog request.
type CatalogScope struct {
	Mode           CatalogViewMode
	SellerID       string
	Administrative bool
}

// CatalogView is the projection returned to callers. Both modes share the PricedItem representation.
type CatalogView struct {
	Mode     CatalogViewMode
	SellerID string
	Items    []domain.PricedItem
	Groups   []domain.CategoryGroup
}

// SelectCatalogView resolves the target seller and projection. A non-empty ownerID selects
// administrative mode and requires the admin role; the owner is never taken from the caller.
func SelectCatalogView(caller CatalogCaller, ownerID string) (CatalogScope, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID != "" {
		if !caller.IsAdmin {
			return CatalogScope{}, fmt.Errorf("catalog for owner %q: %w", ownerID, ErrForbidden)
		}
		return CatalogScope{Mode: CatalogViewGrouped, SellerID: ownerID, Administrative: true}, nil
	}
	sellerID := strings.TrimSpace(caller.SellerID)
	if sellerID == "" {
		return CatalogScope{}, fmt.Errorf("caller has no seller account: %w", ErrForbidden)
	}
	return CatalogScope{Mode: CatalogViewFlat, SellerID: sellerID}, nil
}

// ProjectCatalog renders the reconciler state in the projection the scope asks for.
func ProjectCatalog(scope CatalogScope, reconciler *CatalogReconciler) CatalogView {
	view := CatalogView{Mode: scope.Mode, SellerID: scope.SellerID}
	switch scope.Mode {
	case CatalogViewGrouped:
		view.Groups = reconciler.Groups()
	default:
		view.Mode = CatalogViewFlat
		view.Items = reconciler.Items()
	}
	return view
}

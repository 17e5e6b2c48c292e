package services

import (
	"errors"
	"testing"
)

func TestSelectCatalogView(t *testing.T) {
	t.Run("self service uses the caller's seller", func(t *testing.T) {
		scope, err := SelectCatalogView(CatalogCaller{UserID: "u1", SellerID: "s1"}, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if scope.Mode != CatalogViewFlat || scope.SellerID != "s1" || scope.Administrative {
			t.Fatalf("unexpected scope %#v", scope)
		}
	})

	t.Run("owner id selects grouped admin view", func(t *testing.T) {
		scope, err := SelectCatalogView(CatalogCaller{UserID: "admin", SellerID: "s1", IsAdmin: true}, " s2 ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if scope.Mode != CatalogViewGrouped || scope.SellerID != "s2" || !scope.Administrative {
			t.Fatalf("unexpected scope %#v", scope)
		}
	})

	t.Run("owner id without admin role is forbidden", func(t *testing.T) {
		_, err := SelectCatalogView(CatalogCaller{UserID: "u1", SellerID: "s1"}, "s2")
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("caller without seller account is forbidden", func(t *testing.T) {
		_, err := SelectCatalogView(CatalogCaller{UserID: "u1"}, "")
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})
}

func TestProjectCatalogSharesPricedItems(t *testing.T) {
	repo := newMemoryItemRepository(seedItem("a", "Drinks", "Hot"))
	rec := newTestReconciler(t, repo)

	flat := ProjectCatalog(CatalogScope{Mode: CatalogViewFlat, SellerID: "seller-1"}, rec)
	if len(flat.Items) != 1 || flat.Groups != nil {
		t.Fatalf("flat view should carry items only: %#v", flat)
	}

	grouped := ProjectCatalog(CatalogScope{Mode: CatalogViewGrouped, SellerID: "seller-1", Administrative: true}, rec)
	if grouped.Items != nil || len(grouped.Groups) != 1 {
		t.Fatalf("grouped view should carry groups only: %#v", grouped)
	}
	if got := grouped.Groups[0].Subcategories[0].Items[0]; got != flat.Items[0] {
		t.Fatalf("projections disagree: %#v vs %#v", got, flat.Items[0])
	}
}

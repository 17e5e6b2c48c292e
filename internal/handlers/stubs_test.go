package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/storefront/internal/platform/auth"
	"github.com/hanko-field/storefront/internal/services"
)

type stubCatalogService struct {
	getFunc        func(context.Context, services.CatalogQuery) (services.CatalogView, error)
	addFunc        func(context.Context, services.AddItemCommand) (services.CatalogMutation, error)
	bulkAddFunc    func(context.Context, services.BulkAddItemsCommand) (services.CatalogMutation, error)
	updateFunc     func(context.Context, services.UpdateItemCommand) (services.CatalogMutation, error)
	discountFunc   func(context.Context, services.SetDiscountCommand) (services.CatalogMutation, error)
	removeFunc     func(context.Context, services.RemoveItemCommand) (services.CatalogMutation, error)
	bulkRemoveFunc func(context.Context, services.BulkRemoveItemsCommand) (services.CatalogMutation, error)
	renameCatFunc  func(context.Context, services.RenameCategoryCommand) (services.CatalogMutation, error)
	renameSubFunc  func(context.Context, services.RenameSubcategoryCommand) (services.CatalogMutation, error)
	deleteCatFunc  func(context.Context, services.DeleteCategoryCommand) (services.CatalogMutation, error)
}

func (s *stubCatalogService) GetCatalog(ctx context.Context, q services.CatalogQuery) (services.CatalogView, error) {
	return s.getFunc(ctx, q)
}

func (s *stubCatalogService) AddItem(ctx context.Context, cmd services.AddItemCommand) (services.CatalogMutation, error) {
	return s.addFunc(ctx, cmd)
}

func (s *stubCatalogService) BulkAddItems(ctx context.Context, cmd services.BulkAddItemsCommand) (services.CatalogMutation, error) {
	return s.bulkAddFunc(ctx, cmd)
}

func (s *stubCatalogService) UpdateItem(ctx context.Context, cmd services.UpdateItemCommand) (services.CatalogMutation, error) {
	return s.updateFunc(ctx, cmd)
}

func (s *stubCatalogService) SetDiscount(ctx context.Context, cmd services.SetDiscountCommand) (services.CatalogMutation, error) {
	return s.discountFunc(ctx, cmd)
}

func (s *stubCatalogService) RemoveItem(ctx context.Context, cmd services.RemoveItemCommand) (services.CatalogMutation, error) {
	return s.removeFunc(ctx, cmd)
}

func (s *stubCatalogService) BulkRemoveItems(ctx context.Context, cmd services.BulkRemoveItemsCommand) (services.CatalogMutation, error) {
	return s.bulkRemoveFunc(ctx, cmd)
}

func (s *stubCatalogService) RenameCategory(ctx context.Context, cmd services.RenameCategoryCommand) (services.CatalogMutation, error) {
	return s.renameCatFunc(ctx, cmd)
}

func (s *stubCatalogService) RenameSubcategory(ctx context.Context, cmd services.RenameSubcategoryCommand) (services.CatalogMutation, error) {
	return s.renameSubFunc(ctx, cmd)
}

func (s *stubCatalogService) DeleteCategory(ctx context.Context, cmd services.DeleteCategoryCommand) (services.CatalogMutation, error) {
	return s.deleteCatFunc(ctx, cmd)
}

type stubOfferService struct {
	listSellerFunc func(context.Context, services.SellerOfferFilter) (services.OfferPage, error)
	createFunc     func(context.Context, services.UpsertOfferCommand) (services.OfferDetail, error)
	updateFunc     func(context.Context, services.UpsertOfferCommand) (services.OfferDetail, error)
	deleteFunc     func(context.Context, services.OfferRefCommand) error
	toggleFunc     func(context.Context, services.OfferRefCommand) (services.OfferDetail, error)
	listItemFunc   func(context.Context, string) ([]services.OfferDetail, error)
	listPublicFunc func(context.Context, services.PublicOfferFilter) ([]services.OfferDetail, error)
}

func (s *stubOfferService) ListSellerOffers(ctx context.Context, f services.SellerOfferFilter) (services.OfferPage, error) {
	return s.listSellerFunc(ctx, f)
}

func (s *stubOfferService) CreateOffer(ctx context.Context, cmd services.UpsertOfferCommand) (services.OfferDetail, error) {
	return s.createFunc(ctx, cmd)
}

func (s *stubOfferService) UpdateOffer(ctx context.Context, cmd services.UpsertOfferCommand) (services.OfferDetail, error) {
	return s.updateFunc(ctx, cmd)
}

func (s *stubOfferService) DeleteOffer(ctx context.Context, cmd services.OfferRefCommand) error {
	return s.deleteFunc(ctx, cmd)
}

func (s *stubOfferService) ToggleStatus(ctx context.Context, cmd services.OfferRefCommand) (services.OfferDetail, error) {
	return s.toggleFunc(ctx, cmd)
}

func (s *stubOfferService) ListItemOffers(ctx context.Context, itemID string) ([]services.OfferDetail, error) {
	return s.listItemFunc(ctx, itemID)
}

func (s *stubOfferService) ListSellerPublicOffers(ctx context.Context, f services.PublicOfferFilter) ([]services.OfferDetail, error) {
	return s.listPublicFunc(ctx, f)
}

type stubCartService struct {
	getFunc     func(context.Context, string) (services.CartSession, error)
	addFunc     func(context.Context, services.AddCartItemCommand) (services.AddToCartResult, error)
	resolveFunc func(context.Context, services.ResolveConflictCommand) (services.AddToCartResult, error)
	removeFunc  func(context.Context, services.RemoveCartItemCommand) (services.CartSession, error)
	clearFunc   func(context.Context, string) (services.CartSession, error)
	quoteFunc   func(context.Context, string) (services.CartQuote, error)
}

func (s *stubCartService) GetCart(ctx context.Context, customerID string) (services.CartSession, error) {
	return s.getFunc(ctx, customerID)
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.AddCartItemCommand) (services.AddToCartResult, error) {
	return s.addFunc(ctx, cmd)
}

func (s *stubCartService) ResolveConflict(ctx context.Context, cmd services.ResolveConflictCommand) (services.AddToCartResult, error) {
	return s.resolveFunc(ctx, cmd)
}

func (s *stubCartService) RemoveItem(ctx context.Context, cmd services.RemoveCartItemCommand) (services.CartSession, error) {
	return s.removeFunc(ctx, cmd)
}

func (s *stubCartService) ClearCart(ctx context.Context, customerID string) (services.CartSession, error) {
	return s.clearFunc(ctx, customerID)
}

func (s *stubCartService) QuoteCart(ctx context.Context, customerID string) (services.CartQuote, error) {
	return s.quoteFunc(ctx, customerID)
}

// serveAs dispatches a request through router with identity injected, bypassing token verification.
func serveAs(t *testing.T, router chi.Router, identity *auth.Identity, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if identity != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return payload
}

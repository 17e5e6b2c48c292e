package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/storefront/internal/platform/auth"
	"github.com/hanko-field/storefront/internal/platform/httpx"
	"github.com/hanko-field/storefront/internal/services"
)

const defaultMaxBulkItems = 500

// CatalogHandlers exposes the seller catalog. The ownerId query parameter switches to administrative mode.
type CatalogHandlers struct {
	authn        *auth.Authenticator
	catalog      services.CatalogService
	maxBulkItems int
	mutationMW   []func(http.Handler) http.Handler
}

// CatalogOption customises catalog handlers.
type CatalogOption func(*CatalogHandlers)

// WithMaxBulkItems bounds bulk add and bulk remove requests.
func WithMaxBulkItems(n int) CatalogOption {
	return func(h *CatalogHandlers) {
		if n > 0 {
			h.maxBulkItems = n
		}
	}
}

// WithCatalogMutationMiddleware wraps the create endpoints, e.g. with idempotency replay.
func WithCatalogMutationMiddleware(mw ...func(http.Handler) http.Handler) CatalogOption {
	return func(h *CatalogHandlers) {
		h.mutationMW = append(h.mutationMW, mw...)
	}
}

// NewCatalogHandlers constructs catalog handlers guarded by Firebase authentication.
func NewCatalogHandlers(authn *auth.Authenticator, catalog services.CatalogService, opts ...CatalogOption) *CatalogHandlers {
	h := &CatalogHandlers{authn: authn, catalog: catalog, maxBulkItems: defaultMaxBulkItems}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /catalog endpoints.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleSeller, auth.RoleAdmin))
	}
	r.Get("/", h.getCatalog)
	r.Group(func(create chi.Router) {
		create.Use(h.mutationMW...)
		create.Post("/", h.addItem)
		create.Post("/bulk", h.bulkAddItems)
	})
	r.Delete("/bulk", h.bulkRemoveItems)
	r.Put("/category/rename", h.renameCategory)
	r.Put("/subcategory/rename", h.renameSubcategory)
	r.Delete("/category", h.deleteCategory)
	r.Put("/{itemID}", h.updateItem)
	r.Patch("/{itemID}/discount", h.setDiscount)
	r.Delete("/{itemID}", h.removeItem)
}

func (h *CatalogHandlers) query(w http.ResponseWriter, r *http.Request) (services.CatalogQuery, bool) {
	ctx := r.Context()
	if h.catalog == nil {
		unavailable(ctx, w, "catalog")
		return services.CatalogQuery{}, false
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return services.CatalogQuery{}, false
	}
	return services.CatalogQuery{
		Caller: services.CatalogCaller{
			UserID:   identity.UID,
			SellerID: identity.SellerID,
			IsAdmin:  identity.IsAdmin(),
		},
		OwnerID: strings.TrimSpace(r.URL.Query().Get("ownerId")),
	}, true
}

func (h *CatalogHandlers) getCatalog(w http.ResponseWriter, r *http.Request) {
	query, ok := h.query(w, r)
	if !ok {
		return
	}
	view, err := h.catalog.GetCatalog(r.Context(), query)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCatalogPayload(view))
}

func (h *CatalogHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	query, ok := h.query(w, r)
	if !ok {
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(r.Context(), w, err.Error())
		return
	}
	h.respond(w, r, http.StatusCreated, func() (services.CatalogMutation, error) {
		return h.catalog.AddItem(r.Context(), services.AddItemCommand{CatalogQuery: query, Item: req.toItem()})
	})
}

func (h *CatalogHandlers) bulkAddItems(w http.ResponseWriter, r *http.Request) {
	query, ok := h.query(w, r)
	if !ok {
		return
	}
	var req struct {
		Items []itemRequest `json:"items"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(r.Context(), w, err.Error())
		return
	}
	if len(req.Items) == 0 {
		writeBadRequest(r.Context(), w, "items must not be empty")
		return
	}
	if len(req.Items) > h.maxBulkItems {
		writeBadRequest(r.Context(), w, fmt.Sprintf("at most %d items per request", h.maxBulkItems))
		return
	}
	items := make([]services.Item, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, item.toItem())
	}
	h.respond(w, r, http.StatusCreated, func() (services.CatalogMutation, error) {
		return h.catalog.BulkAddItems(r.Context(), services.BulkAddItemsCommand{CatalogQuery: query, Items: items})
	})
}

func (h *CatalogHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	query, ok := h.query(w, r)
	if !ok {
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(r.Context(), w, err.Error())
		return
	}
	itemID := chi.URLParam(r, "itemID")
	h.respond(w, r, http.StatusOK, func() (services.CatalogMutation, error) {
		return h.catalog.UpdateItem(r.Context(), services.UpdateItemCommand{CatalogQuery: query, ItemID: itemID, Patch: req.toPatch()})
	})
}

func (h *CatalogHandlers) setDiscount(w http.ResponseWriter, r *http.Request) {
	query, ok := h.query(w, r)
	if !ok {
		return
	}
	var req struct {
		DiscountPercentage *float64 `json:"discountPercentage"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(r.Context(), w, err.Error())
		return
	}
	if req.DiscountPercentage == nil {
		writeBadRequest(r.Context(), w, "discountPercentage is required")
		return
	}
	itemID := chi.URLParam(r, "itemID")
	h.respond(w, r, http.StatusOK, func() (services.CatalogMutation, error) {
		return h.catalog.SetDiscount(r.Context(), services.SetDiscountCommand{CatalogQuery: query, ItemID: itemID, DiscountPercentage: *req.DiscountPercentage})
	})
}

func (h *CatalogHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	query, ok := h.query(w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "itemID")
	h.respond(w, r, http.StatusOK, func() (services.CatalogMutation, error) {
		return h.catalog.RemoveItem(r.Context(), services.RemoveItemCommand{CatalogQuery: query, ItemID: itemID})
	})
}

func (h *CatalogHandlers) bulkRemoveItems(w http.ResponseWriter, r *http.Request) {
	query, ok := h.query(w, r)
	if !ok {
		return
	}
	var req struct {
		ItemIDs []string `json:"itemIds"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(r.Context(), w, err.Error())
		return
	}
	if len(req.ItemIDs) > h.maxBulkItems {
		writeBadRequest(r.Context(), w, fmt.Sprintf("at most %d items per request", h.maxBulkItems))
		return
	}
	h.respond(w, r, http.StatusOK, func() (services.CatalogMutation, error) {
		return h.catalog.BulkRemoveItems(r.Context(), services.BulkRemoveItemsCommand{CatalogQuery: query, ItemIDs: req.ItemIDs})
	})
}

func (h *CatalogHandlers) renameCategory(w http.ResponseWriter, r *http.Request) {
	query, ok := h.query(w, r)
	if !ok {
		return
	}
	var req struct {
		OldName string `json:"oldName"`
		NewName string `json:"newName"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(r.Context(), w, err.Error())
		return
	}
	h.respondRenamed(w, r, func() (services.CatalogMutation, error) {
		return h.catalog.RenameCategory(r.Context(), services.RenameCategoryCommand{CatalogQuery: query, OldName: req.OldName, NewName: req.NewName})
	})
}

func (h *CatalogHandlers) renameSubcategory(w http.ResponseWriter, r *http.Request) {
	query, ok := h.query(w, r)
	if !ok {
		return
	}
	var req struct {
		Category string `json:"category"`
		OldName  string `json:"oldName"`
		NewName  string `json:"newName"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(r.Context(), w, err.Error())
		return
	}
	h.respondRenamed(w, r, func() (services.CatalogMutation, error) {
		return h.catalog.RenameSubcategory(r.Context(), services.RenameSubcategoryCommand{
			CatalogQuery: query,
			Category:     req.Category,
			OldName:      req.OldName,
			NewName:      req.NewName,
		})
	})
}

func (h *CatalogHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	query, ok := h.query(w, r)
	if !ok {
		return
	}
	var req struct {
		Category string `json:"category"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(r.Context(), w, err.Error())
		return
	}
	h.respond(w, r, http.StatusOK, func() (services.CatalogMutation, error) {
		return h.catalog.DeleteCategory(r.Context(), services.DeleteCategoryCommand{CatalogQuery: query, Category: req.Category})
	})
}

func (h *CatalogHandlers) respond(w http.ResponseWriter, r *http.Request, status int, run func() (services.CatalogMutation, error)) {
	mutation, err := run()
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(w, status, buildMutationPayload(mutation))
}

func (h *CatalogHandlers) respondRenamed(w http.ResponseWriter, r *http.Request, run func() (services.CatalogMutation, error)) {
	mutation, err := run()
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	payload := buildMutationPayload(mutation)
	renamed := mutation.Renamed
	payload.Renamed = &renamed
	httpx.WriteJSON(w, http.StatusOK, payload)
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/storefront/internal/platform/auth"
	"github.com/hanko-field/storefront/internal/platform/httpx"
	"github.com/hanko-field/storefront/internal/services"
)

// CartHandlers exposes the authenticated customer's single-seller cart.
type CartHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
}

// NewCartHandlers constructs handlers enforcing Firebase authentication before invoking the cart service.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService) *CartHandlers {
	return &CartHandlers{authn: authn, carts: carts}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Get("/quote", h.quoteCart)
	r.Post("/items", h.addItem)
	r.Delete("/items/{lineID}", h.removeItem)
	r.Post("/conflict", h.resolveConflict)
}

func (h *CartHandlers) customer(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()
	if h.carts == nil {
		unavailable(ctx, w, "cart")
		return "", false
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return "", false
	}
	return identity.UID, true
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	cart, err := h.carts.GetCart(r.Context(), customerID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"cart": buildCartPayload(cart)})
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	cart, err := h.carts.ClearCart(r.Context(), customerID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"cart": buildCartPayload(cart)})
}

func (h *CartHandlers) quoteCart(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	quote, err := h.carts.QuoteCart(r.Context(), customerID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"quote": buildQuotePayload(quote)})
}

type addItemRequest struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(r.Context(), w, err.Error())
		return
	}
	if strings.TrimSpace(req.ItemID) == "" {
		writeBadRequest(r.Context(), w, "itemId is required")
		return
	}
	result, err := h.carts.AddItem(r.Context(), services.AddCartItemCommand{
		CustomerID: customerID,
		ItemID:     req.ItemID,
		Quantity:   req.Quantity,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeAddResult(w, r, result)
}

func (h *CartHandlers) resolveConflict(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	var req struct {
		Decision string         `json:"decision"`
		Pending  addItemRequest `json:"pending"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(r.Context(), w, err.Error())
		return
	}
	decision := services.ConflictDecision(strings.ToLower(strings.TrimSpace(req.Decision)))
	if decision == services.ConflictDecisionReset && strings.TrimSpace(req.Pending.ItemID) == "" {
		writeBadRequest(r.Context(), w, "pending.itemId is required")
		return
	}
	result, err := h.carts.ResolveConflict(r.Context(), services.ResolveConflictCommand{
		CustomerID: customerID,
		Decision:   decision,
		Pending:    services.PendingCartItem{ItemID: req.Pending.ItemID, Quantity: req.Pending.Quantity},
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeAddResult(w, r, result)
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	cart, err := h.carts.RemoveItem(r.Context(), services.RemoveCartItemCommand{
		CustomerID: customerID,
		LineID:     chi.URLParam(r, "lineID"),
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"cart": buildCartPayload(cart)})
}

// writeAddResult renders blocking outcomes as 409 with enough context for the client to decide.
func writeAddResult(w http.ResponseWriter, r *http.Request, result services.AddToCartResult) {
	ctx := r.Context()
	cart := buildCartPayload(result.Cart)
	switch result.Outcome {
	case services.AddOutcomeConflictPending:
		details := map[string]any{"cart": cart}
		if p := result.Pending; p != nil {
			details["pending"] = pendingPayload{ItemID: p.ItemID, Quantity: p.Quantity, SellerID: p.SellerID, SellerName: p.SellerName}
		}
		httpx.WriteError(ctx, w, httpx.NewError("seller_conflict", "cart holds items from another seller", http.StatusConflict).WithDetails(details))
		return
	case services.AddOutcomeUnavailable:
		httpx.WriteError(ctx, w, httpx.NewError("item_unavailable", "item is not available", http.StatusConflict).
			WithDetails(map[string]any{"reason": result.UnavailableReason, "cart": cart}))
		return
	}

	payload := addToCartPayload{Outcome: string(result.Outcome), Cart: cart}
	if result.Line != nil {
		line := buildCartLinePayload(*result.Line)
		payload.Line = &line
	}
	if result.ExistingLine != nil {
		payload.ExistingLineID = result.ExistingLine.ID
	}
	httpx.WriteJSON(w, http.StatusOK, payload)
}

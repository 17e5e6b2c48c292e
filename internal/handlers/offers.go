package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/storefront/internal/platform/auth"
	"github.com/hanko-field/storefront/internal/platform/httpx"
	"github.com/hanko-field/storefront/internal/platform/pagination"
	"github.com/hanko-field/storefront/internal/services"
)

// OfferHandlers exposes seller offer management and the public offer listings.
type OfferHandlers struct {
	authn      *auth.Authenticator
	offers     services.OfferService
	mutationMW []func(http.Handler) http.Handler
	public     rateLimiter
}

// OfferOption customises offer handlers.
type OfferOption func(*OfferHandlers)

// WithOfferMutationMiddleware wraps offer creation, e.g. with idempotency replay.
func WithOfferMutationMiddleware(mw ...func(http.Handler) http.Handler) OfferOption {
	return func(h *OfferHandlers) {
		h.mutationMW = append(h.mutationMW, mw...)
	}
}

// WithPublicRateLimit caps unauthenticated listing calls per client address.
func WithPublicRateLimit(perMinute, burst int) OfferOption {
	return func(h *OfferHandlers) {
		h.public = newKeyedRateLimiter(perMinute, burst, nil)
	}
}

// NewOfferHandlers constructs offer handlers.
func NewOfferHandlers(authn *auth.Authenticator, offers services.OfferService, opts ...OfferOption) *OfferHandlers {
	h := &OfferHandlers{authn: authn, offers: offers}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires /offers. Public listings are served without authentication.
func (h *OfferHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/public", func(public chi.Router) {
		public.Use(rateLimitByClientIP(h.public))
		public.Get("/item/{itemID}", h.listItemOffers)
		public.Get("/business/{sellerID}", h.listSellerPublicOffers)
	})

	r.Route("/business", func(seller chi.Router) {
		if h.authn != nil {
			seller.Use(h.authn.RequireFirebaseAuth(auth.RoleSeller))
		}
		seller.Get("/", h.listSellerOffers)
		seller.With(h.mutationMW...).Post("/", h.createOffer)
		seller.Put("/{offerID}", h.updateOffer)
		seller.Delete("/{offerID}", h.deleteOffer)
		seller.Patch("/{offerID}/status", h.toggleStatus)
	})
}

func (h *OfferHandlers) sellerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()
	if h.offers == nil {
		unavailable(ctx, w, "offer")
		return "", false
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return "", false
	}
	if strings.TrimSpace(identity.SellerID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "caller has no seller account", http.StatusForbidden))
		return "", false
	}
	return identity.SellerID, true
}

func (h *OfferHandlers) listSellerOffers(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := h.sellerID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	params, err := pagination.FromRequest(r, pagination.Options{})
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	status := services.OfferStatusFilter(strings.TrimSpace(r.URL.Query().Get("status")))
	page, err := h.offers.ListSellerOffers(ctx, services.SellerOfferFilter{
		SellerID: sellerID,
		Status:   status,
		Page:     params.Page,
		Limit:    params.Limit,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"offers": buildOfferPayloads(page.Offers),
		"page":   page.Page,
		"limit":  page.Limit,
		"total":  page.Total,
	})
}

func (h *OfferHandlers) createOffer(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := h.sellerID(w, r)
	if !ok {
		return
	}
	offer, ok := decodeOffer(w, r)
	if !ok {
		return
	}
	detail, err := h.offers.CreateOffer(r.Context(), services.UpsertOfferCommand{SellerID: sellerID, Offer: offer})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"offer": buildOfferPayload(detail)})
}

func (h *OfferHandlers) updateOffer(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := h.sellerID(w, r)
	if !ok {
		return
	}
	offer, ok := decodeOffer(w, r)
	if !ok {
		return
	}
	detail, err := h.offers.UpdateOffer(r.Context(), services.UpsertOfferCommand{
		SellerID: sellerID,
		OfferID:  chi.URLParam(r, "offerID"),
		Offer:    offer,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"offer": buildOfferPayload(detail)})
}

func (h *OfferHandlers) deleteOffer(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := h.sellerID(w, r)
	if !ok {
		return
	}
	if err := h.offers.DeleteOffer(r.Context(), services.OfferRefCommand{SellerID: sellerID, OfferID: chi.URLParam(r, "offerID")}); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OfferHandlers) toggleStatus(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := h.sellerID(w, r)
	if !ok {
		return
	}
	detail, err := h.offers.ToggleStatus(r.Context(), services.OfferRefCommand{SellerID: sellerID, OfferID: chi.URLParam(r, "offerID")})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"offer": buildOfferPayload(detail)})
}

func (h *OfferHandlers) listItemOffers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.offers == nil {
		unavailable(ctx, w, "offer")
		return
	}
	details, err := h.offers.ListItemOffers(ctx, chi.URLParam(r, "itemID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"offers": buildOfferPayloads(details)})
}

func (h *OfferHandlers) listSellerPublicOffers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.offers == nil {
		unavailable(ctx, w, "offer")
		return
	}
	params, err := pagination.FromRequest(r, pagination.Options{})
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	details, err := h.offers.ListSellerPublicOffers(ctx, services.PublicOfferFilter{
		SellerID: chi.URLParam(r, "sellerID"),
		Category: r.URL.Query().Get("category"),
		Limit:    params.Limit,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"offers": buildOfferPayloads(details)})
}

func decodeOffer(w http.ResponseWriter, r *http.Request) (services.Offer, bool) {
	var req offerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(r.Context(), w, err.Error())
		return services.Offer{}, false
	}
	offer, err := req.toOffer()
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest).
			WithDetails(map[string]any{"field": "offerType"}))
		return services.Offer{}, false
	}
	return offer, true
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hanko-field/storefront/internal/platform/auth"
	"github.com/hanko-field/storefront/internal/platform/httpx"
	"github.com/hanko-field/storefront/internal/platform/requestctx"
	"github.com/hanko-field/storefront/internal/services"
)

// writeServiceError maps the service error taxonomy onto HTTP responses.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var validation *services.ValidationError
	switch {
	case errors.Is(err, services.ErrInvalidDiscount) && errors.As(err, &validation):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_discount", validation.Error(), http.StatusUnprocessableEntity).
			WithDetails(map[string]any{"field": validation.Field, "reason": validation.Reason}))
	case errors.As(err, &validation):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", validation.Error(), http.StatusBadRequest).
			WithDetails(map[string]any{"field": validation.Field, "reason": validation.Reason}))
	case errors.Is(err, services.ErrAuthExpired), errors.Is(err, auth.ErrTokenExpired):
		httpx.WriteError(ctx, w, httpx.NewError("token_expired", "authentication expired", http.StatusUnauthorized))
	case errors.Is(err, services.ErrForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "caller may not access this resource", http.StatusForbidden))
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "resource not found", http.StatusNotFound))
	case errors.Is(err, services.ErrSellerConflict):
		httpx.WriteError(ctx, w, httpx.NewError("seller_conflict", "cart holds items from another seller", http.StatusConflict))
	case errors.Is(err, services.ErrUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("item_unavailable", "item is not available", http.StatusConflict))
	case errors.Is(err, services.ErrStoreUnavailable):
		requestctx.Logger(ctx).Warn("store unavailable", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("store_unavailable", "storage temporarily unavailable", http.StatusServiceUnavailable))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		httpx.WriteError(ctx, w, httpx.NewError("request_timeout", "request did not complete in time", http.StatusServiceUnavailable))
	default:
		requestctx.Logger(ctx).Error("unhandled service error", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
	}
}

func writeBadRequest(ctx context.Context, w http.ResponseWriter, message string) {
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", message, http.StatusBadRequest))
}

// requireIdentity returns the authenticated caller or writes 401.
func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func unavailable(ctx context.Context, w http.ResponseWriter, name string) {
	httpx.WriteError(ctx, w, httpx.NewError(name+"_service_unavailable", name+" service is unavailable", http.StatusServiceUnavailable))
}

package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hanko-field/storefront/internal/repositories"
)

var (
	// ErrValidation marks input rejected before any store round trip.
	ErrValidation = errors.New("storefront: validation failed")
	// ErrInvalidDiscount marks a discount percentage that is out of range or drives the price to zero.
	ErrInvalidDiscount = errors.New("pricing: invalid discount")
	// ErrUnavailable marks an out-of-stock item or a closed seller.
	ErrUnavailable = errors.New("cart: item unavailable")
	// ErrSellerConflict marks an add that would mix sellers in one cart.
	ErrSellerConflict = errors.New("cart: seller conflict")
	// ErrNotFound marks a stale or unknown identifier.
	ErrNotFound = errors.New("storefront: not found")
	// ErrForbidden marks a caller without access to the requested seller scope.
	ErrForbidden = errors.New("storefront: forbidden")
	// ErrAuthExpired marks a caller whose credentials expired mid-session.
	ErrAuthExpired = errors.New("storefront: authentication expired")
	// ErrStoreUnavailable marks a transient failure of the backing store.
	ErrStoreUnavailable = errors.New("storefront: store unavailable")
	// ErrPartialBulkFailure marks a bulk delete that removed fewer records than requested.
	ErrPartialBulkFailure = errors.New("catalog: partial bulk failure")
)

// ValidationError names the first field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
	kind   error
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func newDiscountError(reason string) *ValidationError {
	return &ValidationError{Field: "discountPercentage", Reason: reason, kind: ErrInvalidDiscount}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Is matches ErrValidation and the specific validation kind.
func (e *ValidationError) Is(target error) bool {
	if e == nil {
		return false
	}
	if target == ErrValidation {
		return true
	}
	return e.kind != nil && target == e.kind
}

// PartialBulkFailureError reports the discrepancy between requested and applied deletions.
type PartialBulkFailureError struct {
	Requested  int
	Deleted    int
	MissingIDs []string
}

// Error implements the error interface.
func (e *PartialBulkFailureError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("bulk delete removed %d of %d items (missing: %s)", e.Deleted, e.Requested, strings.Join(e.MissingIDs, ", "))
}

// Is matches ErrPartialBulkFailure.
func (e *PartialBulkFailureError) Is(target error) bool {
	return target == ErrPartialBulkFailure
}

// translateRepoError maps repository failures onto the service taxonomy while keeping the original error chain.
func translateRepoError(op string, err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

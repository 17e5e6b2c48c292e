package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/repositories"
)

// ItemPatch carries the fields to change on an item. Nil fields are left untouched.
type ItemPatch struct {
	Name               *string
	Description        *string
	BasePrice          *int64
	Category           *string
	Subcategory        *string
	DiscountPercentage *float64
	InStock            *bool
	Quantity           *int
	ClearQuantity      bool
}

// BulkRemoveResult reports how many of the requested records were actually deleted.
type BulkRemoveResult struct {
	Requested  int
	Deleted    int
	DeletedIDs []string
	MissingIDs []string
	// Partial is set when Deleted < Requested. It is informational and never returned as an error.
	Partial *PartialBulkFailureError
}

// CatalogReconcilerDeps wires the collaborators of a CatalogReconciler.
type CatalogReconcilerDeps struct {
	Items       repositories.ItemRepository
	SellerID    string
	Clock       func() time.Time
	IDGenerator func() string
	// Annotate decorates priced items before grouping, e.g. with offer counts.
	Annotate func(domain.PricedItem) domain.PricedItem
}

// CatalogReconciler owns one seller's flat item snapshot for the lifetime of a request.
// Every successful mutation writes through to the store, replaces the snapshot, and rebuilds
// the grouped view from scratch. Failed mutations leave both untouched.
type CatalogReconciler struct {
	items    repositories.ItemRepository
	sellerID string
	now      func() time.Time
	newID    func() string
	annotate func(domain.PricedItem) domain.PricedItem

	snapshot []domain.Item
	priced   []domain.PricedItem
	groups   []domain.CategoryGroup
}

// NewCatalogReconciler constructs a reconciler bound to a single seller.
func NewCatalogReconciler(deps CatalogReconcilerDeps) (*CatalogReconciler, error) {
	if deps.Items == nil {
		return nil, errors.New("catalog reconciler: item repository is required")
	}
	sellerID := strings.TrimSpace(deps.SellerID)
	if sellerID == "" {
		return nil, errors.New("catalog reconciler: seller id is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	annotate := deps.Annotate
	if annotate == nil {
		annotate = func(item domain.PricedItem) domain.PricedItem { return item }
	}
	r := &CatalogReconciler{
		items:    deps.Items,
		sellerID: sellerID,
		now:      func() time.Time { return clock().UTC() },
		newID:    idGen,
		annotate: annotate,
	}
	r.replace(nil)
	return r, nil
}

// SellerID returns the seller this reconciler operates on.
func (r *CatalogReconciler) SellerID() string { return r.sellerID }

// Items returns the priced flat collection in store order.
func (r *CatalogReconciler) Items() []domain.PricedItem {
	out := make([]domain.PricedItem, len(r.priced))
	copy(out, r.priced)
	return out
}

// Groups returns the grouped view derived from the current snapshot.
func (r *CatalogReconciler) Groups() []domain.CategoryGroup {
	out := make([]domain.CategoryGroup, len(r.groups))
	copy(out, r.groups)
	return out
}

// Load replaces the snapshot with the store's current state.
func (r *CatalogReconciler) Load(ctx context.Context) error {
	items, err := r.items.ListBySeller(ctx, r.sellerID)
	if err != nil {
		return translateRepoError("load catalog", err)
	}
	normalized := make([]domain.Item, 0, len(items))
	for _, item := range items {
		normalized = append(normalized, NormalizeItemPlacement(item))
	}
	r.replace(normalized)
	return nil
}

// Add validates and inserts a single item.
func (r *CatalogReconciler) Add(ctx context.Context, item domain.Item) (domain.Item, error) {
	prepared, err := r.prepareNew(item)
	if err != nil {
		return domain.Item{}, err
	}
	saved, err := r.items.Insert(ctx, prepared)
	if err != nil {
		return domain.Item{}, translateRepoError("add item", err)
	}
	r.replace(append(r.cloneSnapshot(), NormalizeItemPlacement(saved)))
	return saved, nil
}

// BulkAdd validates every item before inserting them in a single store call.
func (r *CatalogReconciler) BulkAdd(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	if len(items) == 0 {
		return nil, newValidationError("items", "must contain at least one item")
	}
	prepared := make([]domain.Item, 0, len(items))
	for i, item := range items {
		p, err := r.prepareNew(item)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				verr.Field = fmt.Sprintf("items[%d].%s", i, verr.Field)
			}
			return nil, err
		}
		prepared = append(prepared, p)
	}
	saved, err := r.items.BulkInsert(ctx, prepared)
	if err != nil {
		return nil, translateRepoError("bulk add items", err)
	}
	next := r.cloneSnapshot()
	for _, item := range saved {
		next = append(next, NormalizeItemPlacement(item))
	}
	r.replace(next)
	return saved, nil
}

// Update applies a patch to one item. A stale id refreshes the snapshot before the error is returned.
func (r *CatalogReconciler) Update(ctx context.Context, itemID string, patch ItemPatch) (domain.Item, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return domain.Item{}, newValidationError("id", "is required")
	}
	idx := r.indexOf(itemID)
	if idx < 0 {
		r.refresh(ctx)
		idx = r.indexOf(itemID)
	}
	if idx < 0 {
		return domain.Item{}, r.staleID("update item", itemID)
	}
	current := r.snapshot[idx]
	updated, err := applyItemPatch(current, patch)
	if err != nil {
		return domain.Item{}, err
	}
	updated.UpdatedAt = r.now()

	saved, err := r.items.Update(ctx, updated)
	if err != nil {
		if isNotFound(err) {
			r.refresh(ctx)
		}
		return domain.Item{}, translateRepoError("update item", err)
	}

	next := r.cloneSnapshot()
	next[idx] = NormalizeItemPlacement(saved)
	r.replace(next)
	return saved, nil
}

// SetDiscount validates and stores a new discount percentage for one item.
func (r *CatalogReconciler) SetDiscount(ctx context.Context, itemID string, discount float64) (domain.Item, error) {
	return r.Update(ctx, itemID, ItemPatch{DiscountPercentage: &discount})
}

// Remove deletes one item.
func (r *CatalogReconciler) Remove(ctx context.Context, itemID string) error {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return newValidationError("id", "is required")
	}
	if err := r.items.Delete(ctx, r.sellerID, itemID); err != nil {
		if isNotFound(err) {
			r.refresh(ctx)
		}
		return translateRepoError("remove item", err)
	}
	r.replace(r.without(map[string]struct{}{itemID: {}}))
	return nil
}

// BulkRemove deletes the given ids and reports the precise number actually removed.
// Ids the store did not delete are reported as missing rather than failing the call.
func (r *CatalogReconciler) BulkRemove(ctx context.Context, itemIDs []string) (BulkRemoveResult, error) {
	requested := uniqueIDs(itemIDs)
	if len(requested) == 0 {
		return BulkRemoveResult{}, newValidationError("itemIds", "must contain at least one id")
	}
	deleted, err := r.items.BulkDelete(ctx, r.sellerID, requested)
	if err != nil {
		return BulkRemoveResult{}, translateRepoError("bulk remove items", err)
	}

	deletedSet := make(map[string]struct{}, len(deleted))
	for _, id := range deleted {
		deletedSet[id] = struct{}{}
	}
	result := BulkRemoveResult{Requested: len(requested)}
	for _, id := range requested {
		if _, ok := deletedSet[id]; ok {
			result.DeletedIDs = append(result.DeletedIDs, id)
			continue
		}
		result.MissingIDs = append(result.MissingIDs, id)
	}
	result.Deleted = len(result.DeletedIDs)
	if result.Deleted < result.Requested {
		result.Partial = &PartialBulkFailureError{
			Requested:  result.Requested,
			Deleted:    result.Deleted,
			MissingIDs: append([]string(nil), result.MissingIDs...),
		}
	}

	// Only confirmed deletions leave the snapshot. A missing id may still exist in
	// the store after a failed write, so a partial result reloads from the store.
	r.replace(r.without(deletedSet))
	if result.Partial != nil {
		r.refresh(ctx)
	}
	return result, nil
}

// RenameCategory moves every item in oldName to newName and returns the number of items rewritten.
func (r *CatalogReconciler) RenameCategory(ctx context.Context, oldName, newName string) (int, error) {
	from, to, err := renamePair(oldName, newName, domain.DefaultCategory)
	if err != nil {
		return 0, err
	}
	return r.rename(ctx, "rename category", func(item domain.Item) (domain.Item, bool) {
		if item.Category != from {
			return item, false
		}
		item.Category = to
		return item, true
	}, from == to)
}

// RenameSubcategory renames a subcategory, optionally limited to one category.
func (r *CatalogReconciler) RenameSubcategory(ctx context.Context, category, oldName, newName string) (int, error) {
	from, to, err := renamePair(oldName, newName, domain.DefaultSubcategory)
	if err != nil {
		return 0, err
	}
	scope := ""
	if strings.TrimSpace(category) != "" {
		scope, _ = NormalizePlacement(category, "")
	}
	return r.rename(ctx, "rename subcategory", func(item domain.Item) (domain.Item, bool) {
		if scope != "" && item.Category != scope {
			return item, false
		}
		if item.Subcategory != from {
			return item, false
		}
		item.Subcategory = to
		return item, true
	}, from == to)
}

// DeleteCategory removes every item placed under the category through BulkRemove.
func (r *CatalogReconciler) DeleteCategory(ctx context.Context, name string) (BulkRemoveResult, error) {
	if strings.TrimSpace(name) == "" {
		return BulkRemoveResult{}, newValidationError("category", "is required")
	}
	category, _ := NormalizePlacement(name, "")
	ids := r.idsWhere(func(item domain.Item) bool { return item.Category == category })
	if len(ids) == 0 {
		r.refresh(ctx)
		ids = r.idsWhere(func(item domain.Item) bool { return item.Category == category })
	}
	if len(ids) == 0 {
		return BulkRemoveResult{}, fmt.Errorf("delete category %q: %w", category, ErrNotFound)
	}
	return r.BulkRemove(ctx, ids)
}

func (r *CatalogReconciler) rename(ctx context.Context, op string, rewrite func(domain.Item) (domain.Item, bool), noop bool) (int, error) {
	collect := func() ([]domain.Item, []int) {
		var changed []domain.Item
		var positions []int
		for i, item := range r.snapshot {
			if next, ok := rewrite(item); ok {
				next.UpdatedAt = r.now()
				changed = append(changed, next)
				positions = append(positions, i)
			}
		}
		return changed, positions
	}

	changed, positions := collect()
	if len(changed) == 0 {
		r.refresh(ctx)
		changed, positions = collect()
	}
	if len(changed) == 0 {
		return 0, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if noop {
		return 0, nil
	}

	saved, err := r.items.BulkUpdate(ctx, changed)
	if err != nil {
		if isNotFound(err) {
			r.refresh(ctx)
		}
		return 0, translateRepoError(op, err)
	}
	next := r.cloneSnapshot()
	for i, pos := range positions {
		item := changed[i]
		if i < len(saved) && saved[i].ID == item.ID {
			item = saved[i]
		}
		next[pos] = NormalizeItemPlacement(item)
	}
	r.replace(next)
	return len(changed), nil
}

func (r *CatalogReconciler) prepareNew(item domain.Item) (domain.Item, error) {
	if strings.TrimSpace(item.Name) == "" {
		return domain.Item{}, newValidationError("name", "is required")
	}
	if item.Quantity != nil && *item.Quantity < 0 {
		return domain.Item{}, newValidationError("quantity", "must not be negative")
	}
	if err := ValidateDiscount(item.DiscountPercentage, item.BasePrice); err != nil {
		return domain.Item{}, err
	}
	item = NormalizeItemPlacement(item)
	item.Name = strings.TrimSpace(item.Name)
	item.ID = r.newID()
	item.SellerID = r.sellerID
	now := r.now()
	item.CreatedAt = now
	item.UpdatedAt = now
	return item, nil
}

func applyItemPatch(item domain.Item, patch ItemPatch) (domain.Item, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return domain.Item{}, newValidationError("name", "is required")
		}
		item.Name = name
	}
	if patch.Description != nil {
		item.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		item.Category = *patch.Category
	}
	if patch.Subcategory != nil {
		item.Subcategory = *patch.Subcategory
	}
	if patch.InStock != nil {
		item.InStock = *patch.InStock
	}
	if patch.ClearQuantity {
		item.Quantity = nil
	} else if patch.Quantity != nil {
		if *patch.Quantity < 0 {
			return domain.Item{}, newValidationError("quantity", "must not be negative")
		}
		q := *patch.Quantity
		item.Quantity = &q
	}

	switch {
	case patch.DiscountPercentage != nil:
		base := item.BasePrice
		if patch.BasePrice != nil {
			base = *patch.BasePrice
		}
		if err := ValidateDiscount(*patch.DiscountPercentage, base); err != nil {
			return domain.Item{}, err
		}
		item.BasePrice = base
		item.DiscountPercentage = *patch.DiscountPercentage
	case patch.BasePrice != nil:
		if err := ValidateBasePrice(*patch.BasePrice, item.DiscountPercentage); err != nil {
			return domain.Item{}, err
		}
		item.BasePrice = *patch.BasePrice
	}
	return NormalizeItemPlacement(item), nil
}

func renamePair(oldName, newName, fallback string) (string, string, error) {
	if strings.TrimSpace(oldName) == "" {
		return "", "", newValidationError("oldName", "is required")
	}
	if strings.TrimSpace(newName) == "" {
		return "", "", newValidationError("newName", "is required")
	}
	return normalizeName(oldName, fallback), normalizeName(newName, fallback), nil
}

func (r *CatalogReconciler) staleID(op, itemID string) error {
	return fmt.Errorf("%s %q: %w", op, itemID, ErrNotFound)
}

// refresh reloads the snapshot after a stale id. A failed reload keeps the previous snapshot.
func (r *CatalogReconciler) refresh(ctx context.Context) {
	_ = r.Load(ctx)
}

func (r *CatalogReconciler) replace(items []domain.Item) {
	if items == nil {
		items = []domain.Item{}
	}
	priced := make([]domain.PricedItem, 0, len(items))
	for _, item := range items {
		priced = append(priced, r.annotate(PriceItem(item)))
	}
	r.snapshot = items
	r.priced = priced
	r.groups = GroupCatalog(priced)
}

func (r *CatalogReconciler) cloneSnapshot() []domain.Item {
	out := make([]domain.Item, len(r.snapshot), len(r.snapshot)+1)
	copy(out, r.snapshot)
	return out
}

func (r *CatalogReconciler) without(ids map[string]struct{}) []domain.Item {
	out := make([]domain.Item, 0, len(r.snapshot))
	for _, item := range r.snapshot {
		if _, drop := ids[item.ID]; drop {
			continue
		}
		out = append(out, item)
	}
	return out
}

func (r *CatalogReconciler) indexOf(itemID string) int {
	for i, item := range r.snapshot {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

func (r *CatalogReconciler) idsWhere(match func(domain.Item) bool) []string {
	var ids []string
	for _, item := range r.snapshot {
		if match(item) {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

package services

import (
	"strings"

	"golang.org/x/text/cases"

	domain "github.com/hanko-field/storefront/internal/domain"
)

// NormalizePlacement trims category and subcategory names and maps blanks and any spelling
// of the default names onto the canonical defaults. Other names keep their casing.
func NormalizePlacement(category, subcategory string) (string, string) {
	return normalizeName(category, domain.DefaultCategory), normalizeName(subcategory, domain.DefaultSubcategory)
}

// NormalizeItemPlacement applies NormalizePlacement to an item.
func NormalizeItemPlacement(item domain.Item) domain.Item {
	item.Category, item.Subcategory = NormalizePlacement(item.Category, item.Subcategory)
	return item
}

func normalizeName(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	// cases.Caser is stateful; a fresh instance keeps this safe for concurrent use.
	fold := cases.Fold()
	if fold.String(trimmed) == fold.String(fallback) {
		return fallback
	}
	return trimmed
}

// GroupCatalog rebuilds the category/subcategory hierarchy from the full flat item set.
// Categories and subcategories keep first-seen order, except the default category which is
// always moved to the front. Empty groups are never produced.
func GroupCatalog(items []domain.PricedItem) []domain.CategoryGroup {
	if len(items) == 0 {
		return []domain.CategoryGroup{}
	}

	type categoryBucket struct {
		name     string
		subOrder []string
		subs     map[string][]domain.PricedItem
	}

	order := make([]string, 0)
	buckets := make(map[string]*categoryBucket)
	for _, item := range items {
		category, subcategory := NormalizePlacement(item.Category, item.Subcategory)
		item.Category = category
		item.Subcategory = subcategory

		bucket, ok := buckets[category]
		if !ok {
			bucket = &categoryBucket{name: category, subs: make(map[string][]domain.PricedItem)}
			buckets[category] = bucket
			order = append(order, category)
		}
		if _, ok := bucket.subs[subcategory]; !ok {
			bucket.subOrder = append(bucket.subOrder, subcategory)
		}
		bucket.subs[subcategory] = append(bucket.subs[subcategory], item)
	}

	groups := make([]domain.CategoryGroup, 0, len(order))
	for _, name := range order {
		bucket := buckets[name]
		group := domain.CategoryGroup{
			Name:          bucket.name,
			Subcategories: make([]domain.SubcategoryGroup, 0, len(bucket.subOrder)),
		}
		for _, sub := range bucket.subOrder {
			group.Subcategories = append(group.Subcategories, domain.SubcategoryGroup{
				Name:  sub,
				Items: bucket.subs[sub],
			})
		}
		groups = append(groups, group)
	}

	for i, group := range groups {
		if group.Name != domain.DefaultCategory {
			continue
		}
		if i > 0 {
			copy(groups[1:i+1], groups[0:i])
			groups[0] = group
		}
		break
	}
	return groups
}

// FlattenCatalog walks the hierarchy in order and returns the items it contains.
func FlattenCatalog(groups []domain.CategoryGroup) []domain.PricedItem {
	out := make([]domain.PricedItem, 0)
	for _, group := range groups {
		for _, sub := range group.Subcategories {
			out = append(out, sub.Items...)
		}
	}
	return out
}

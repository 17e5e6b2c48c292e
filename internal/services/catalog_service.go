package services

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/repositories"
)

const catalogMetricNamespace = "github.com/hanko-field/storefront/internal/services/catalog"

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Items       repositories.ItemRepository
	Offers      repositories.OfferRepository
	Events      CatalogEventPublisher
	Meter       metric.Meter
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type catalogService struct {
	items  repositories.ItemRepository
	offers repositories.OfferRepository
	events CatalogEventPublisher
	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)

	partialDeletes metric.Int64Counter
}

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Items == nil {
		return nil, errors.New("catalog service: item repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(catalogMetricNamespace)
	}
	partialDeletes, err := meter.Int64Counter(
		"catalog.bulk_delete.partial",
		metric.WithDescription("Bulk deletes that removed fewer items than requested"),
	)
	if err != nil {
		return nil, err
	}
	return &catalogService{
		items:          deps.Items,
		offers:         deps.Offers,
		events:         deps.Events,
		clock:          func() time.Time { return clock().UTC() },
		newID:          idGen,
		logger:         logger,
		partialDeletes: partialDeletes,
	}, nil
}

func (s *catalogService) GetCatalog(ctx context.Context, query CatalogQuery) (CatalogView, error) {
	scope, rec, err := s.open(ctx, query)
	if err != nil {
		return CatalogView{}, err
	}
	return ProjectCatalog(scope, rec), nil
}

func (s *catalogService) AddItem(ctx context.Context, cmd AddItemCommand) (CatalogMutation, error) {
	scope, rec, err := s.open(ctx, cmd.CatalogQuery)
	if err != nil {
		return CatalogMutation{}, err
	}
	item, err := rec.Add(ctx, cmd.Item)
	if err != nil {
		return CatalogMutation{}, err
	}
	s.publish(ctx, cmd.CatalogQuery, scope, CatalogEventItemsAdded, []string{item.ID})
	return CatalogMutation{View: ProjectCatalog(scope, rec), Items: []Item{item}}, nil
}

func (s *catalogService) BulkAddItems(ctx context.Context, cmd BulkAddItemsCommand) (CatalogMutation, error) {
	scope, rec, err := s.open(ctx, cmd.CatalogQuery)
	if err != nil {
		return CatalogMutation{}, err
	}
	items, err := rec.BulkAdd(ctx, cmd.Items)
	if err != nil {
		return CatalogMutation{}, err
	}
	s.publish(ctx, cmd.CatalogQuery, scope, CatalogEventItemsAdded, itemIDs(items))
	return CatalogMutation{View: ProjectCatalog(scope, rec), Items: items}, nil
}

func (s *catalogService) UpdateItem(ctx context.Context, cmd UpdateItemCommand) (CatalogMutation, error) {
	scope, rec, err := s.open(ctx, cmd.CatalogQuery)
	if err != nil {
		return CatalogMutation{}, err
	}
	item, err := rec.Update(ctx, cmd.ItemID, cmd.Patch)
	if err != nil {
		s.logStale(ctx, scope, cmd.ItemID, err)
		return CatalogMutation{}, err
	}
	s.publish(ctx, cmd.CatalogQuery, scope, CatalogEventItemUpdated, []string{item.ID})
	return CatalogMutation{View: ProjectCatalog(scope, rec), Items: []Item{item}}, nil
}

func (s *catalogService) SetDiscount(ctx context.Context, cmd SetDiscountCommand) (CatalogMutation, error) {
	scope, rec, err := s.open(ctx, cmd.CatalogQuery)
	if err != nil {
		return CatalogMutation{}, err
	}
	item, err := rec.SetDiscount(ctx, cmd.ItemID, cmd.DiscountPercentage)
	if err != nil {
		s.logStale(ctx, scope, cmd.ItemID, err)
		return CatalogMutation{}, err
	}
	s.publish(ctx, cmd.CatalogQuery, scope, CatalogEventItemUpdated, []string{item.ID})
	return CatalogMutation{View: ProjectCatalog(scope, rec), Items: []Item{item}}, nil
}

func (s *catalogService) RemoveItem(ctx context.Context, cmd RemoveItemCommand) (CatalogMutation, error) {
	scope, rec, err := s.open(ctx, cmd.CatalogQuery)
	if err != nil {
		return CatalogMutation{}, err
	}
	if err := rec.Remove(ctx, cmd.ItemID); err != nil {
		s.logStale(ctx, scope, cmd.ItemID, err)
		return CatalogMutation{}, err
	}
	s.publish(ctx, cmd.CatalogQuery, scope, CatalogEventItemsRemoved, []string{cmd.ItemID})
	return CatalogMutation{View: ProjectCatalog(scope, rec)}, nil
}

func (s *catalogService) BulkRemoveItems(ctx context.Context, cmd BulkRemoveItemsCommand) (CatalogMutation, error) {
	scope, rec, err := s.open(ctx, cmd.CatalogQuery)
	if err != nil {
		return CatalogMutation{}, err
	}
	result, err := rec.BulkRemove(ctx, cmd.ItemIDs)
	if err != nil {
		return CatalogMutation{}, err
	}
	s.afterRemoval(ctx, cmd.CatalogQuery, scope, result)
	return CatalogMutation{View: ProjectCatalog(scope, rec), Removal: &result}, nil
}

func (s *catalogService) RenameCategory(ctx context.Context, cmd RenameCategoryCommand) (CatalogMutation, error) {
	scope, rec, err := s.open(ctx, cmd.CatalogQuery)
	if err != nil {
		return CatalogMutation{}, err
	}
	count, err := rec.RenameCategory(ctx, cmd.OldName, cmd.NewName)
	if err != nil {
		return CatalogMutation{}, err
	}
	if count > 0 {
		s.publish(ctx, cmd.CatalogQuery, scope, CatalogEventCategoryRenamed, nil)
	}
	return CatalogMutation{View: ProjectCatalog(scope, rec), Renamed: count}, nil
}

func (s *catalogService) RenameSubcategory(ctx context.Context, cmd RenameSubcategoryCommand) (CatalogMutation, error) {
	scope, rec, err := s.open(ctx, cmd.CatalogQuery)
	if err != nil {
		return CatalogMutation{}, err
	}
	count, err := rec.RenameSubcategory(ctx, cmd.Category, cmd.OldName, cmd.NewName)
	if err != nil {
		return CatalogMutation{}, err
	}
	if count > 0 {
		s.publish(ctx, cmd.CatalogQuery, scope, CatalogEventSubcategoryRename, nil)
	}
	return CatalogMutation{View: ProjectCatalog(scope, rec), Renamed: count}, nil
}

func (s *catalogService) DeleteCategory(ctx context.Context, cmd DeleteCategoryCommand) (CatalogMutation, error) {
	scope, rec, err := s.open(ctx, cmd.CatalogQuery)
	if err != nil {
		return CatalogMutation{}, err
	}
	result, err := rec.DeleteCategory(ctx, cmd.Category)
	if err != nil {
		return CatalogMutation{}, err
	}
	s.afterRemoval(ctx, cmd.CatalogQuery, scope, result)
	return CatalogMutation{View: ProjectCatalog(scope, rec), Removal: &result}, nil
}

// open resolves the caller's scope and loads a fresh reconciler for it.
func (s *catalogService) open(ctx context.Context, query CatalogQuery) (CatalogScope, *CatalogReconciler, error) {
	scope, err := SelectCatalogView(query.Caller, query.OwnerID)
	if err != nil {
		return CatalogScope{}, nil, err
	}
	rec, err := NewCatalogReconciler(CatalogReconcilerDeps{
		Items:       s.items,
		SellerID:    scope.SellerID,
		Clock:       s.clock,
		IDGenerator: s.newID,
		Annotate:    s.offerBadges(ctx, scope.SellerID),
	})
	if err != nil {
		return CatalogScope{}, nil, err
	}
	if err := rec.Load(ctx); err != nil {
		return CatalogScope{}, nil, err
	}
	return scope, rec, nil
}

// offerBadges counts redeemable offers per item. Offer lookups never fail a catalog request.
func (s *catalogService) offerBadges(ctx context.Context, sellerID string) func(domain.PricedItem) domain.PricedItem {
	if s.offers == nil {
		return nil
	}
	offers, err := s.offers.List(ctx, repositories.OfferFilter{SellerID: sellerID})
	if err != nil {
		s.logger(ctx, "catalog.offer_badges_failed", map[string]any{
			"sellerId": sellerID,
			"error":    err.Error(),
		})
		return nil
	}
	now := s.clock()
	counts := make(map[string]int)
	for _, offer := range offers {
		if IsRedeemable(offer, now) {
			counts[offer.ItemID]++
		}
	}
	return func(item domain.PricedItem) domain.PricedItem {
		item.ActiveOfferCount = counts[item.ID]
		return item
	}
}

func (s *catalogService) afterRemoval(ctx context.Context, query CatalogQuery, scope CatalogScope, result BulkRemoveResult) {
	if result.Partial != nil {
		s.partialDeletes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("administrative", scope.Administrative)))
		s.logger(ctx, "catalog.bulk_delete_partial", map[string]any{
			"sellerId":   scope.SellerID,
			"requested":  result.Requested,
			"deleted":    result.Deleted,
			"missingIds": result.MissingIDs,
		})
	}
	if result.Deleted > 0 {
		s.publish(ctx, query, scope, CatalogEventItemsRemoved, result.DeletedIDs)
	}
}

// publish runs after the store committed; a failed notification is logged and never surfaced.
func (s *catalogService) publish(ctx context.Context, query CatalogQuery, scope CatalogScope, eventType CatalogEventType, ids []string) {
	if s.events == nil {
		return
	}
	event := CatalogEvent{
		EventID:        s.newID(),
		Type:           eventType,
		SellerID:       scope.SellerID,
		ActorID:        query.Caller.UserID,
		Administrative: scope.Administrative,
		ItemIDs:        ids,
		OccurredAt:     s.clock(),
	}
	if _, err := s.events.PublishCatalogEvent(ctx, event); err != nil {
		s.logger(ctx, "catalog.event_publish_failed", map[string]any{
			"sellerId": scope.SellerID,
			"type":     string(eventType),
			"error":    err.Error(),
		})
	}
}

func (s *catalogService) logStale(ctx context.Context, scope CatalogScope, itemID string, err error) {
	if !errors.Is(err, ErrNotFound) {
		return
	}
	s.logger(ctx, "catalog.stale_item", map[string]any{
		"sellerId": scope.SellerID,
		"itemId":   itemID,
	})
}

func itemIDs(items []Item) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

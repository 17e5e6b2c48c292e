package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/storefront/internal/domain"
	pfirestore "github.com/hanko-field/storefront/internal/platform/firestore"
	"github.com/hanko-field/storefront/internal/repositories"
)

const defaultItemsCollection = "items"

// ItemRepository stores catalog items, one document per item.
type ItemRepository struct {
	provider *pfirestore.Provider
	items    *pfirestore.Collection[itemDocument]
}

var _ repositories.ItemRepository = (*ItemRepository)(nil)

// NewItemRepository binds the repository to collection, defaulting to "items".
func NewItemRepository(provider *pfirestore.Provider, collection string) (*ItemRepository, error) {
	if provider == nil {
		return nil, errors.New("item repository requires firestore provider")
	}
	if strings.TrimSpace(collection) == "" {
		collection = defaultItemsCollection
	}
	return &ItemRepository{provider: provider, items: pfirestore.NewCollection[itemDocument](provider, collection)}, nil
}

func (r *ItemRepository) ListBySeller(ctx context.Context, sellerID string) ([]domain.Item, error) {
	docs, err := r.items.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("sellerId", "==", sellerID).OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	items := make([]domain.Item, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(doc.ID))
	}
	return items, nil
}

func (r *ItemRepository) Get(ctx context.Context, itemID string) (domain.Item, error) {
	doc, err := r.items.Get(ctx, itemID)
	if err != nil {
		return domain.Item{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *ItemRepository) Insert(ctx context.Context, item domain.Item) (domain.Item, error) {
	ref, err := r.refFor(ctx, item.ID)
	if err != nil {
		return domain.Item{}, err
	}
	item.ID = ref.ID
	if _, err := ref.Create(ctx, newItemDocument(item)); err != nil {
		return domain.Item{}, pfirestore.WrapError("items.insert", err)
	}
	return item, nil
}

func (r *ItemRepository) Update(ctx context.Context, item domain.Item) (domain.Item, error) {
	ref, err := r.items.Doc(ctx, item.ID)
	if err != nil {
		return domain.Item{}, err
	}
	if _, err := ref.Update(ctx, newItemDocument(item).updates()); err != nil {
		return domain.Item{}, pfirestore.WrapError("items.update", err)
	}
	return item, nil
}

// Delete removes the item only when sellerID owns it; other sellers' items read as missing.
func (r *ItemRepository) Delete(ctx context.Context, sellerID, itemID string) error {
	ref, err := r.items.Doc(ctx, itemID)
	if err != nil {
		return err
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		owner, err := snap.DataAt("sellerId")
		if err != nil || owner != sellerID {
			return pfirestore.NotFound("items.delete", itemID)
		}
		return tx.Delete(ref)
	})
}

// BulkInsert writes every item in one transaction so a failure stores none of them.
func (r *ItemRepository) BulkInsert(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	out := make([]domain.Item, len(items))
	refs := make([]*firestore.DocumentRef, len(items))
	for i, item := range items {
		ref, err := r.refFor(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		refs[i] = ref
		item.ID = ref.ID
		out[i] = item
	}
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for i, ref := range refs {
			if err := tx.Create(ref, newItemDocument(out[i])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BulkUpdate replaces every item in one transaction. A missing item aborts the whole batch.
func (r *ItemRepository) BulkUpdate(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	refs := make([]*firestore.DocumentRef, len(items))
	for i, item := range items {
		ref, err := r.items.Doc(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		refs[i] = ref
	}
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for i, ref := range refs {
			if err := tx.Update(ref, newItemDocument(items[i]).updates()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// BulkDelete removes the seller's items through a BulkWriter and reports the ids whose delete succeeded.
// Ids that are absent or owned by another seller are skipped and left out of the result.
func (r *ItemRepository) BulkDelete(ctx context.Context, sellerID string, itemIDs []string) ([]string, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	refs := make([]*firestore.DocumentRef, 0, len(itemIDs))
	for _, id := range itemIDs {
		ref, err := r.items.Doc(ctx, id)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	snaps, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("items.bulk_delete", err)
	}

	writer := client.BulkWriter(ctx)
	type pending struct {
		id  string
		job *firestore.BulkWriterJob
	}
	jobs := make([]pending, 0, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		owner, err := snap.DataAt("sellerId")
		if err != nil || owner != sellerID {
			continue
		}
		job, err := writer.Delete(snap.Ref, firestore.Exists)
		if err != nil {
			writer.End()
			return nil, pfirestore.WrapError("items.bulk_delete", err)
		}
		jobs = append(jobs, pending{id: snap.Ref.ID, job: job})
	}
	writer.End()

	deleted := make([]string, 0, len(jobs))
	var lastErr error
	for _, p := range jobs {
		if _, err := p.job.Results(); err != nil {
			lastErr = err
			continue
		}
		deleted = append(deleted, p.id)
	}
	if len(deleted) == 0 && lastErr != nil {
		return nil, pfirestore.WrapError("items.bulk_delete", lastErr)
	}
	sort.Strings(deleted)
	return deleted, nil
}

func (r *ItemRepository) refFor(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return r.items.NewDoc(ctx)
	}
	return r.items.Doc(ctx, id)
}

type itemDocument struct {
	SellerID           string    `firestore:"sellerId"`
	Name               string    `firestore:"name"`
	Description        string    `firestore:"description,omitempty"`
	BasePrice          int64     `firestore:"basePrice"`
	Category           string    `firestore:"category"`
	Subcategory        string    `firestore:"subcategory"`
	DiscountPercentage float64   `firestore:"discountPercentage"`
	InStock            bool      `firestore:"inStock"`
	Quantity           *int64    `firestore:"quantity"`
	CreatedAt          time.Time `firestore:"createdAt"`
	UpdatedAt          time.Time `firestore:"updatedAt"`
}

func newItemDocument(item domain.Item) itemDocument {
	doc := itemDocument{
		SellerID:           item.SellerID,
		Name:               item.Name,
		Description:        item.Description,
		BasePrice:          item.BasePrice,
		Category:           item.Category,
		Subcategory:        item.Subcategory,
		DiscountPercentage: item.DiscountPercentage,
		InStock:            item.InStock,
		CreatedAt:          item.CreatedAt.UTC(),
		UpdatedAt:          item.UpdatedAt.UTC(),
	}
	if item.Quantity != nil {
		q := int64(*item.Quantity)
		doc.Quantity = &q
	}
	return doc
}

func (d itemDocument) updates() []firestore.Update {
	return []firestore.Update{
		{Path: "sellerId", Value: d.SellerID},
		{Path: "name", Value: d.Name},
		{Path: "description", Value: d.Description},
		{Path: "basePrice", Value: d.BasePrice},
		{Path: "category", Value: d.Category},
		{Path: "subcategory", Value: d.Subcategory},
		{Path: "discountPercentage", Value: d.DiscountPercentage},
		{Path: "inStock", Value: d.InStock},
		{Path: "quantity", Value: d.Quantity},
		{Path: "updatedAt", Value: d.UpdatedAt},
	}
}

func (d itemDocument) toDomain(id string) domain.Item {
	item := domain.Item{
		ID:                 id,
		SellerID:           d.SellerID,
		Name:               d.Name,
		Description:        d.Description,
		BasePrice:          d.BasePrice,
		Category:           d.Category,
		Subcategory:        d.Subcategory,
		DiscountPercentage: d.DiscountPercentage,
		InStock:            d.InStock,
		CreatedAt:          d.CreatedAt.UTC(),
		UpdatedAt:          d.UpdatedAt.UTC(),
	}
	if d.Quantity != nil {
		q := int(*d.Quantity)
		item.Quantity = &q
	}
	return item
}

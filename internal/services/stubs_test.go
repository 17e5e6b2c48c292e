package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/repositories"
)

type stubRepoError struct {
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string       { return e.err.Error() }
func (e *stubRepoError) Unwrap() error       { return e.err }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

func notFoundErr(what string) error {
	return &stubRepoError{err: fmt.Errorf("%s not found", what), notFound: true}
}

func unavailableErr() error {
	return &stubRepoError{err: errors.New("backend unavailable"), unavailable: true}
}

var _ repositories.RepositoryError = (*stubRepoError)(nil)

// memoryItemRepository keeps items in insertion order and exposes failure hooks.
type memoryItemRepository struct {
	mu    sync.Mutex
	order []string
	items map[string]domain.Item

	listCalls   int
	failList    error
	failUpdate  error
	failDelete  error
	failBulkDel error
	failInsert  error
	// keepOnBulkDelete lists ids whose bulk delete silently fails.
	keepOnBulkDelete map[string]bool
}

var _ repositories.ItemRepository = (*memoryItemRepository)(nil)

func newMemoryItemRepository(items ...domain.Item) *memoryItemRepository {
	repo := &memoryItemRepository{items: make(map[string]domain.Item)}
	for _, item := range items {
		repo.order = append(repo.order, item.ID)
		repo.items[item.ID] = item
	}
	return repo
}

func (r *memoryItemRepository) ListBySeller(_ context.Context, sellerID string) ([]domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.failList != nil {
		return nil, r.failList
	}
	out := make([]domain.Item, 0)
	for _, id := range r.order {
		item, ok := r.items[id]
		if ok && item.SellerID == sellerID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *memoryItemRepository) Get(_ context.Context, itemID string) (domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemID]
	if !ok {
		return domain.Item{}, notFoundErr("item")
	}
	return item, nil
}

func (r *memoryItemRepository) Insert(_ context.Context, item domain.Item) (domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failInsert != nil {
		return domain.Item{}, r.failInsert
	}
	r.order = append(r.order, item.ID)
	r.items[item.ID] = item
	return item, nil
}

func (r *memoryItemRepository) Update(_ context.Context, item domain.Item) (domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil {
		return domain.Item{}, r.failUpdate
	}
	if _, ok := r.items[item.ID]; !ok {
		return domain.Item{}, notFoundErr("item")
	}
	r.items[item.ID] = item
	return item, nil
}

func (r *memoryItemRepository) Delete(_ context.Context, sellerID, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failDelete != nil {
		return r.failDelete
	}
	item, ok := r.items[itemID]
	if !ok || item.SellerID != sellerID {
		return notFoundErr("item")
	}
	delete(r.items, itemID)
	return nil
}

func (r *memoryItemRepository) BulkInsert(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	out := make([]domain.Item, 0, len(items))
	for _, item := range items {
		saved, err := r.Insert(ctx, item)
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	return out, nil
}

func (r *memoryItemRepository) BulkUpdate(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	out := make([]domain.Item, 0, len(items))
	for _, item := range items {
		saved, err := r.Update(ctx, item)
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	return out, nil
}

func (r *memoryItemRepository) BulkDelete(_ context.Context, sellerID string, itemIDs []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failBulkDel != nil {
		return nil, r.failBulkDel
	}
	var deleted []string
	for _, id := range itemIDs {
		item, ok := r.items[id]
		if !ok || item.SellerID != sellerID || r.keepOnBulkDelete[id] {
			continue
		}
		delete(r.items, id)
		deleted = append(deleted, id)
	}
	return deleted, nil
}

// remove deletes an item behind the reconciler's back to simulate a concurrent edit.
func (r *memoryItemRepository) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
}

type memoryOfferRepository struct {
	mu     sync.Mutex
	offers map[string]domain.Offer
}

var _ repositories.OfferRepository = (*memoryOfferRepository)(nil)

func newMemoryOfferRepository(offers ...domain.Offer) *memoryOfferRepository {
	repo := &memoryOfferRepository{offers: make(map[string]domain.Offer)}
	for _, offer := range offers {
		repo.offers[offer.ID] = offer
	}
	return repo
}

func (r *memoryOfferRepository) List(_ context.Context, filter repositories.OfferFilter) ([]domain.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Offer, 0)
	for _, offer := range r.offers {
		if filter.SellerID != "" && offer.SellerID != filter.SellerID {
			continue
		}
		if filter.ItemID != "" && offer.ItemID != filter.ItemID {
			continue
		}
		out = append(out, offer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryOfferRepository) Get(_ context.Context, offerID string) (domain.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	offer, ok := r.offers[offerID]
	if !ok {
		return domain.Offer{}, notFoundErr("offer")
	}
	return offer, nil
}

func (r *memoryOfferRepository) Insert(_ context.Context, offer domain.Offer) (domain.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers[offer.ID] = offer
	return offer, nil
}

func (r *memoryOfferRepository) Update(_ context.Context, offer domain.Offer) (domain.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.offers[offer.ID]; !ok {
		return domain.Offer{}, notFoundErr("offer")
	}
	r.offers[offer.ID] = offer
	return offer, nil
}

func (r *memoryOfferRepository) Delete(_ context.Context, offerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.offers[offerID]; !ok {
		return notFoundErr("offer")
	}
	delete(r.offers, offerID)
	return nil
}

func (r *memoryOfferRepository) ToggleActive(_ context.Context, offerID string) (domain.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	offer, ok := r.offers[offerID]
	if !ok {
		return domain.Offer{}, notFoundErr("offer")
	}
	offer.IsActive = !offer.IsActive
	r.offers[offerID] = offer
	return offer, nil
}

type stubSellerDirectory struct {
	sellers map[string]domain.Seller
}

func (d stubSellerDirectory) GetSeller(_ context.Context, sellerID string) (domain.Seller, error) {
	seller, ok := d.sellers[sellerID]
	if !ok {
		return domain.Seller{}, notFoundErr("seller")
	}
	return seller, nil
}

type stubCartRepository struct {
	carts     map[string]domain.CartSession
	clearFunc func(ctx context.Context, customerID string) (domain.CartSession, error)
	saveCalls int
	calls     []string
}

var _ repositories.CartRepository = (*stubCartRepository)(nil)

func newStubCartRepository() *stubCartRepository {
	return &stubCartRepository{carts: make(map[string]domain.CartSession)}
}

func (r *stubCartRepository) Get(_ context.Context, customerID string) (domain.CartSession, error) {
	r.calls = append(r.calls, "get")
	cart, ok := r.carts[customerID]
	if !ok {
		return domain.CartSession{CustomerID: customerID}, nil
	}
	return cart, nil
}

func (r *stubCartRepository) Save(_ context.Context, cart domain.CartSession) (domain.CartSession, error) {
	r.calls = append(r.calls, "save")
	r.saveCalls++
	r.carts[cart.CustomerID] = cart
	return cart, nil
}

func (r *stubCartRepository) Clear(ctx context.Context, customerID string) (domain.CartSession, error) {
	r.calls = append(r.calls, "clear")
	if r.clearFunc != nil {
		return r.clearFunc(ctx, customerID)
	}
	empty := domain.CartSession{CustomerID: customerID}
	r.carts[customerID] = empty
	return empty, nil
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func intPtr(v int) *int { return &v }

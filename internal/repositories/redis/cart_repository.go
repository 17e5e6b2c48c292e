package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/config"
	"github.com/hanko-field/storefront/internal/repositories"
)

const (
	defaultKeyPrefix = "cart"
	defaultTTL       = 72 * time.Hour
)

// NewClient dials Redis from configuration and verifies the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.DialTimeout = cfg.DialTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return client, nil
}

// CartRepository keeps one JSON document per customer under "<prefix>:<customerID>" with a sliding TTL.
type CartRepository struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

var (
	_ repositories.CartRepository = (*CartRepository)(nil)
	_ repositories.HealthChecker  = (*CartRepository)(nil)
)

// NewCartRepository wraps client. Empty prefix and non-positive ttl fall back to defaults.
func NewCartRepository(client redis.Cmdable, prefix string, ttl time.Duration) (*CartRepository, error) {
	if client == nil {
		return nil, errors.New("cart repository requires redis client")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &CartRepository{client: client, prefix: prefix, ttl: ttl}, nil
}

func (r *CartRepository) Get(ctx context.Context, customerID string) (domain.CartSession, error) {
	raw, err := r.client.Get(ctx, r.key(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CartSession{CustomerID: customerID}, nil
	}
	if err != nil {
		return domain.CartSession{}, wrapError("cart.get", err)
	}
	var doc cartDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.CartSession{}, fmt.Errorf("cart.get: decode %s: %w", customerID, err)
	}
	return doc.toDomain(customerID), nil
}

// Save overwrites the session and refreshes its TTL. An empty cart deletes the key.
func (r *CartRepository) Save(ctx context.Context, cart domain.CartSession) (domain.CartSession, error) {
	if strings.TrimSpace(cart.CustomerID) == "" {
		return domain.CartSession{}, errors.New("cart.save: customer id is required")
	}
	if cart.IsEmpty() {
		if err := r.client.Del(ctx, r.key(cart.CustomerID)).Err(); err != nil {
			return domain.CartSession{}, wrapError("cart.save", err)
		}
		cart.Seller = nil
		return cart, nil
	}
	payload, err := json.Marshal(newCartDocument(cart))
	if err != nil {
		return domain.CartSession{}, fmt.Errorf("cart.save: encode: %w", err)
	}
	if err := r.client.Set(ctx, r.key(cart.CustomerID), payload, r.ttl).Err(); err != nil {
		return domain.CartSession{}, wrapError("cart.save", err)
	}
	return cart, nil
}

// Clear deletes the session and reads it back. The returned state is what the store now holds.
func (r *CartRepository) Clear(ctx context.Context, customerID string) (domain.CartSession, error) {
	if err := r.client.Del(ctx, r.key(customerID)).Err(); err != nil {
		return domain.CartSession{}, wrapError("cart.clear", err)
	}
	return r.Get(ctx, customerID)
}

// Name identifies the store in readiness reports.
func (r *CartRepository) Name() string { return "redis" }

// Ping checks the connection.
func (r *CartRepository) Ping(ctx context.Context) error {
	return wrapError("redis.ping", r.client.Ping(ctx).Err())
}

func (r *CartRepository) key(customerID string) string {
	return r.prefix + ":" + customerID
}

type cartDocument struct {
	Seller    *sellerDocument    `json:"seller,omitempty"`
	Items     []cartLineDocument `json:"items"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

type sellerDocument struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ServiceType string `json:"serviceType,omitempty"`
}

type cartLineDocument struct {
	ID        string         `json:"id"`
	ItemID    string         `json:"itemId"`
	Name      string         `json:"name"`
	Quantity  int            `json:"quantity"`
	UnitPrice int64          `json:"unitPrice"`
	Seller    sellerDocument `json:"seller"`
	AddedAt   time.Time      `json:"addedAt"`
}

func newCartDocument(cart domain.CartSession) cartDocument {
	doc := cartDocument{Items: make([]cartLineDocument, 0, len(cart.Items)), UpdatedAt: cart.UpdatedAt.UTC()}
	if cart.Seller != nil {
		s := sellerDocument(*cart.Seller)
		doc.Seller = &s
	}
	for _, line := range cart.Items {
		doc.Items = append(doc.Items, cartLineDocument{
			ID:        line.ID,
			ItemID:    line.ItemID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Seller:    sellerDocument(line.Seller),
			AddedAt:   line.AddedAt.UTC(),
		})
	}
	return doc
}

func (d cartDocument) toDomain(customerID string) domain.CartSession {
	cart := domain.CartSession{CustomerID: customerID, UpdatedAt: d.UpdatedAt.UTC()}
	if d.Seller != nil {
		s := domain.SellerSnapshot(*d.Seller)
		cart.Seller = &s
	}
	for _, line := range d.Items {
		cart.Items = append(cart.Items, domain.CartLineItem{
			ID:        line.ID,
			ItemID:    line.ItemID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Seller:    domain.SellerSnapshot(line.Seller),
			AddedAt:   line.AddedAt.UTC(),
		})
	}
	return cart
}

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/config"
	"github.com/hanko-field/storefront/internal/repositories"
)

func setupCartStore(t *testing.T) (*miniredis.Miniredis, *CartRepository) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo, err := NewCartRepository(client, "test:cart", time.Hour)
	require.NoError(t, err)
	return mr, repo
}

func sampleCart() domain.CartSession {
	seller := domain.SellerSnapshot{ID: "seller-1", Name: "Corner Cafe", ServiceType: "restaurant"}
	added := time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)
	return domain.CartSession{
		CustomerID: "cust-1",
		Seller:     &seller,
		Items: []domain.CartLineItem{
			{ID: "line-1", ItemID: "tea", Name: "Tea", Quantity: 2, UnitPrice: 450, Seller: seller, AddedAt: added},
		},
		UpdatedAt: added,
	}
}

func TestCartRepositoryGetMissingReturnsEmptyCart(t *testing.T) {
	_, repo := setupCartStore(t)

	cart, err := repo.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, "nobody", cart.CustomerID)
	assert.True(t, cart.IsEmpty())
	assert.Nil(t, cart.Seller)
}

func TestCartRepositorySaveAppliesTTLAndRoundTrips(t *testing.T) {
	mr, repo := setupCartStore(t)
	ctx := context.Background()

	_, err := repo.Save(ctx, sampleCart())
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:cart:cust-1"))
	assert.Equal(t, time.Hour, mr.TTL("test:cart:cust-1"))

	got, err := repo.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, sampleCart(), got)

	mr.FastForward(2 * time.Hour)
	expired, err := repo.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, expired.IsEmpty())
}

func TestCartRepositoryClearAcknowledgesEmptyState(t *testing.T) {
	mr, repo := setupCartStore(t)
	ctx := context.Background()
	_, err := repo.Save(ctx, sampleCart())
	require.NoError(t, err)

	ack, err := repo.Clear(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, ack.IsEmpty())
	assert.Equal(t, "cust-1", ack.CustomerID)
	assert.False(t, mr.Exists("test:cart:cust-1"))
}

func TestCartRepositorySaveEmptyDeletesKey(t *testing.T) {
	mr, repo := setupCartStore(t)
	ctx := context.Background()
	_, err := repo.Save(ctx, sampleCart())
	require.NoError(t, err)

	saved, err := repo.Save(ctx, domain.CartSession{CustomerID: "cust-1"})
	require.NoError(t, err)
	assert.Nil(t, saved.Seller)
	assert.False(t, mr.Exists("test:cart:cust-1"))
}

func TestCartRepositoryUnavailableBackend(t *testing.T) {
	mr, repo := setupCartStore(t)
	mr.Close()

	_, err := repo.Get(context.Background(), "cust-1")
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsUnavailable())
	assert.Error(t, repo.Ping(context.Background()))
}

func TestNewClientFromConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), config.RedisConfig{
		URL:          "redis://" + mr.Addr() + "/0",
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		DialTimeout:  time.Second,
	})
	require.NoError(t, err)
	defer client.Close()

	_, err = NewClient(context.Background(), config.RedisConfig{URL: "not a url"})
	assert.Error(t, err)
}

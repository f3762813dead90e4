package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidmarcano/storefront-backend/pkg/db/models"
)

type fakeStore struct {
	data map[string]string
	sets int
	dels int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	val, ok := f.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return val, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.sets++
	f.data[key] = value.(string)
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.dels++
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) CacheKey(parts ...string) string {
	return "sf:cache:" + strings.Join(parts, ":")
}

func TestProductCachePutGet(t *testing.T) {
	store := newFakeStore()
	cache := &ProductCache{store: store, ttl: time.Minute}

	product := &models.Product{
		ID:         uuid.New(),
		Name:       "Walnut Desk",
		PriceCents: 129900,
		Stock:      12,
	}

	_, ok := cache.Get(context.Background(), product.ID)
	assert.False(t, ok)

	cache.Put(context.Background(), product)
	got, ok := cache.Get(context.Background(), product.ID)
	require.True(t, ok)
	assert.Equal(t, product.ID, got.ID)
	assert.Equal(t, product.Name, got.Name)
	assert.Equal(t, product.PriceCents, got.PriceCents)
}

func TestProductCacheInvalidate(t *testing.T) {
	store := newFakeStore()
	cache := &ProductCache{store: store, ttl: time.Minute}

	product := &models.Product{ID: uuid.New(), Name: "Oak Chair"}
	cache.Put(context.Background(), product)

	cache.Invalidate(context.Background(), product.ID)
	_, ok := cache.Get(context.Background(), product.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, store.dels)
}

func TestProductCacheCorruptEntryDropped(t *testing.T) {
	store := newFakeStore()
	cache := &ProductCache{store: store, ttl: time.Minute}

	id := uuid.New()
	store.data[store.CacheKey("product", id.String())] = "{not json"

	_, ok := cache.Get(context.Background(), id)
	assert.False(t, ok)
	assert.Equal(t, 1, store.dels)
}

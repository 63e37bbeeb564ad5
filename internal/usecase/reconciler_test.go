package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msrptw/backend/internal/domain"
	"github.com/msrptw/backend/internal/infrastructure/memstore"
	"github.com/msrptw/backend/internal/infrastructure/seed"
)

func newTestStore(t *testing.T) *memstore.Store {
	t.Helper()
	s := seed.Default()
	return memstore.New(s.Taxonomy(), s.Sources)
}

// unavailableRepo fails product lookups the way a lost database connection does
type unavailableRepo struct {
	*memstore.Store
}

func (r unavailableRepo) FindProduct(ctx context.Context, externalID string, sourceID int64) (*domain.Product, error) {
	return nil, fmt.Errorf("find product: %w", domain.ErrStorageUnavailable)
}

func newProduct(externalID string) *domain.Product {
	weight := 300.0
	return &domain.Product{
		ExternalID: externalID,
		SourceID:   1,
		Name:       "紅蘿蔔",
		Origin:     domain.OriginTaiwan,
		Weight:     &weight,
		Unit:       domain.UnitGram,
		Count:      1,
	}
}

func classify(p *domain.Product, partID int64) *domain.Product {
	p.PartID = &partID
	return p
}

func TestReconciler_Dedup(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	r := NewReconciler(store, nil)

	fresh := newProduct("A1")
	got, err := r.Dedup(ctx, fresh)
	require.NoError(t, err)
	assert.Same(t, fresh, got, "unknown products are returned unchanged")

	require.NoError(t, store.SaveProduct(ctx, fresh))

	first, err := r.Dedup(ctx, newProduct("A1"))
	require.NoError(t, err)
	second, err := r.Dedup(ctx, newProduct("A1"))
	require.NoError(t, err)

	assert.Equal(t, fresh.ID, first.ID)
	assert.Equal(t, first, second)

	products, _ := store.Counts()
	assert.Equal(t, 1, products)
}

func TestReconciler_SaveProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts new product", func(t *testing.T) {
		r := NewReconciler(newTestStore(t), nil)
		saved, err := r.SaveProduct(ctx, newProduct("A1"))
		require.NoError(t, err)
		assert.True(t, saved.Persisted())
	})

	t.Run("conflict returns the stored row", func(t *testing.T) {
		store := newTestStore(t)
		r := NewReconciler(store, nil)

		winner, err := r.SaveProduct(ctx, newProduct("A1"))
		require.NoError(t, err)

		loser, err := r.SaveProduct(ctx, classify(newProduct("A1"), 22))
		require.NoError(t, err)
		assert.Equal(t, winner.ID, loser.ID)
		require.NotNil(t, loser.PartID, "an unclassified stored row takes the part")
		assert.Equal(t, int64(22), *loser.PartID)

		stored, err := store.GetProduct(ctx, winner.ID)
		require.NoError(t, err)
		assert.True(t, stored.Classified())

		products, _ := store.Counts()
		assert.Equal(t, 1, products)
	})

	t.Run("conflict keeps an existing classification", func(t *testing.T) {
		store := newTestStore(t)
		r := NewReconciler(store, nil)

		_, err := r.SaveProduct(ctx, classify(newProduct("A1"), 22))
		require.NoError(t, err)

		got, err := r.SaveProduct(ctx, classify(newProduct("A1"), 23))
		require.NoError(t, err)
		assert.Equal(t, int64(22), *got.PartID)
	})
}

func TestReconciler_UpsertPrice(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	r := NewReconciler(store, nil)

	product, err := r.SaveProduct(ctx, classify(newProduct("A1"), 22))
	require.NoError(t, err)

	morning := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC)

	require.NoError(t, r.UpsertPrice(ctx, product, &domain.Observation{Price: decimal.NewFromInt(45), Date: morning}))
	require.NoError(t, r.UpsertPrice(ctx, product, &domain.Observation{Price: decimal.NewFromInt(39), Date: evening}))

	_, observations := store.Counts()
	assert.Equal(t, 1, observations)

	got, err := store.FindObservation(ctx, product.ID, morning)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(39).Equal(got.Price))
	assert.Equal(t, "2024-03-01", got.DateKey())

	require.NoError(t, r.UpsertPrice(ctx, product, &domain.Observation{Price: decimal.NewFromInt(41), Date: morning.AddDate(0, 0, 1)}))
	_, observations = store.Counts()
	assert.Equal(t, 2, observations)

	t.Run("unsaved product is rejected", func(t *testing.T) {
		err := r.UpsertPrice(ctx, newProduct("B"), &domain.Observation{Price: decimal.NewFromInt(1), Date: morning})
		assert.True(t, errors.Is(err, domain.ErrInvalidRequest))
	})
}

func TestReconciler_Route(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	r := NewReconciler(store, nil)
	queue := NewDeferredQueue()
	category := &domain.Category{ID: 4, Name: "蔬菜"}
	today := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	observation := func() *domain.Observation {
		return &domain.Observation{Price: decimal.NewFromInt(45), Date: today}
	}

	route, err := r.Route(ctx, category, newProduct("new"), observation(), queue)
	require.NoError(t, err)
	assert.Equal(t, RouteDeferred, route)
	assert.Equal(t, 1, queue.Len())

	_, err = r.SaveProduct(ctx, newProduct("unclassified"))
	require.NoError(t, err)
	route, err = r.Route(ctx, category, newProduct("unclassified"), observation(), queue)
	require.NoError(t, err)
	assert.Equal(t, RouteIgnored, route)

	_, err = r.SaveProduct(ctx, classify(newProduct("known"), 22))
	require.NoError(t, err)
	route, err = r.Route(ctx, category, newProduct("known"), observation(), queue)
	require.NoError(t, err)
	assert.Equal(t, RoutePriced, route)

	assert.Equal(t, 1, queue.Len())
	_, observations := store.Counts()
	assert.Equal(t, 1, observations)

	t.Run("storage failure propagates", func(t *testing.T) {
		r := NewReconciler(unavailableRepo{newTestStore(t)}, nil)
		_, err := r.Route(ctx, category, newProduct("x"), observation(), NewDeferredQueue())
		assert.True(t, errors.Is(err, domain.ErrStorageUnavailable))
	})
}

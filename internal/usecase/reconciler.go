package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/msrptw/backend/internal/domain"
)

// Route is what the reconciler decided for a freshly fetched listing
type Route int

const (
	// RouteDeferred means the product is new and waits for classification
	RouteDeferred Route = iota
	// RoutePriced means the product was known and classified and its price was stored
	RoutePriced
	// RouteIgnored means the product was known but never classified
	RouteIgnored
)

// Reconciler deduplicates products and upserts their daily observations.
// Every method is a self-contained storage transaction and safe for concurrent use.
type Reconciler struct {
	repo   domain.Repository
	logger *zap.Logger
}

// NewReconciler creates a reconciler over the given repository
func NewReconciler(repo domain.Repository, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{repo: repo, logger: logger}
}

// Dedup returns the stored product with the same (external id, source) or,
// when none exists, the given product unchanged.
func (r *Reconciler) Dedup(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	externalID, sourceID := product.Key()
	stored, err := r.repo.FindProduct(ctx, externalID, sourceID)
	if errors.Is(err, domain.ErrNotFound) {
		return product, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dedup %s/%d: %w", product.ExternalID, product.SourceID, err)
	}
	return stored, nil
}

// SaveProduct persists a new product. When another writer inserted the same
// key first, the stored row is authoritative and returned instead.
func (r *Reconciler) SaveProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	err := r.repo.SaveProduct(ctx, product)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return nil, fmt.Errorf("save product %s/%d: %w", product.ExternalID, product.SourceID, err)
	}

	externalID, sourceID := product.Key()
	stored, err := r.repo.FindProduct(ctx, externalID, sourceID)
	if err != nil {
		return nil, fmt.Errorf("reload conflicting product %s/%d: %w", product.ExternalID, product.SourceID, err)
	}
	r.logger.Debug("product already stored",
		zap.String("external_id", product.ExternalID),
		zap.Int64("source_id", product.SourceID),
		zap.Int64("product_id", stored.ID))

	// A product is classified at most once; keep the stored part when it has one
	if !stored.Classified() && product.Classified() {
		stored.PartID = product.PartID
		stored.AliasID = product.AliasID
		if err := r.repo.SaveProduct(ctx, stored); err != nil {
			return nil, fmt.Errorf("classify stored product %d: %w", stored.ID, err)
		}
	}
	return stored, nil
}

// UpsertPrice stores the observation of a persisted product. A second
// observation on the same day overwrites the stored price.
func (r *Reconciler) UpsertPrice(ctx context.Context, product *domain.Product, observation *domain.Observation) error {
	if !product.Persisted() {
		return fmt.Errorf("%w: product %q is not stored", domain.ErrInvalidRequest, product.Name)
	}

	observation.ProductID = product.ID
	observation.Date = domain.Day(observation.Date)

	stored, err := r.repo.FindObservation(ctx, product.ID, observation.Date)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		observation.ID = 0
	case err != nil:
		return fmt.Errorf("find observation %d@%s: %w", product.ID, observation.DateKey(), err)
	default:
		observation.ID = stored.ID
	}

	if err := r.repo.SaveObservation(ctx, observation); err != nil {
		return fmt.Errorf("save observation %d@%s: %w", product.ID, observation.DateKey(), err)
	}
	return nil
}

// Route deduplicates a fetched listing and either prices it immediately
// (known and classified), defers it (new), or ignores it (known, unclassified).
func (r *Reconciler) Route(ctx context.Context, category *domain.Category, product *domain.Product, observation *domain.Observation, queue *DeferredQueue) (Route, error) {
	existing, err := r.Dedup(ctx, product)
	if err != nil {
		return RouteIgnored, err
	}

	if !existing.Persisted() {
		queue.Push(domain.PendingItem{Category: category, Product: existing, Observation: observation})
		return RouteDeferred, nil
	}

	if !existing.Classified() {
		return RouteIgnored, nil
	}

	if err := r.UpsertPrice(ctx, existing, observation); err != nil {
		return RouteIgnored, err
	}
	return RoutePriced, nil
}

package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/msrptw/backend/internal/domain"
)

// PriceServiceConfig holds configuration for the price service
type PriceServiceConfig struct {
	CacheTTL time.Duration
}

// PriceService serves stored taxonomy, products and price history with caching
type PriceService struct {
	reader   domain.PriceReader
	cache    domain.CacheRepository
	parser   *ListingParser
	logger   *zap.Logger
	cacheTTL time.Duration
}

// NewPriceService creates a new price service with dependencies
func NewPriceService(
	reader domain.PriceReader,
	cache domain.CacheRepository,
	logger *zap.Logger,
	config PriceServiceConfig,
) *PriceService {
	if logger == nil {
		logger = zap.NewNop()
	}

	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 10 * time.Minute
	}

	return &PriceService{
		reader:   reader,
		cache:    cache,
		parser:   NewListingParser(nil),
		logger:   logger,
		cacheTTL: cacheTTL,
	}
}

// Taxonomy returns every category with its parts and aliases
func (s *PriceService) Taxonomy(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	if s.getFromCache(ctx, "taxonomy", &categories) {
		return categories, nil
	}

	categories, err := s.reader.LoadTaxonomy(ctx)
	if err != nil {
		return nil, err
	}
	s.setInCache(ctx, "taxonomy", categories)
	return categories, nil
}

// Category looks up a category by name
func (s *PriceService) Category(ctx context.Context, name string) (*domain.Category, error) {
	categories, err := s.Taxonomy(ctx)
	if err != nil {
		return nil, err
	}
	for i := range categories {
		if categories[i].Name == name {
			return &categories[i], nil
		}
	}
	return nil, fmt.Errorf("%w: category %q", domain.ErrNotFound, name)
}

// Sources returns all retailers
func (s *PriceService) Sources(ctx context.Context) ([]domain.Source, error) {
	return s.reader.ListSources(ctx)
}

// Products returns the products matching filter
func (s *PriceService) Products(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	return s.reader.ListProducts(ctx, filter)
}

// PriceHistory returns the observations of a product between from and to, inclusive.
// Flow: validate range -> check cache -> load product and observations -> cache -> return
func (s *PriceService) PriceHistory(ctx context.Context, productID int64, from, to time.Time) ([]domain.Observation, error) {
	from, to = domain.Day(from), domain.Day(to)
	if productID <= 0 || to.Before(from) {
		return nil, domain.ErrInvalidRequest
	}

	cacheKey := fmt.Sprintf("prices:%d:%s:%s", productID, from.Format(domain.DateLayout), to.Format(domain.DateLayout))

	var observations []domain.Observation
	if s.getFromCache(ctx, cacheKey, &observations) {
		return observations, nil
	}

	if _, err := s.reader.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	observations, err := s.reader.ListObservations(ctx, productID, from, to)
	if err != nil {
		return nil, err
	}

	s.setInCache(ctx, cacheKey, observations)
	return observations, nil
}

// ExportRows returns the joined price rows between from and to for reporting
func (s *PriceService) ExportRows(ctx context.Context, from, to time.Time) ([]domain.PriceRow, error) {
	from, to = domain.Day(from), domain.Day(to)
	if to.Before(from) {
		return nil, domain.ErrInvalidRequest
	}
	return s.reader.ListPriceRows(ctx, from, to)
}

// PreviewResult is the dry-run outcome of parsing and auto-classifying one listing
type PreviewResult struct {
	Product     *domain.Product     `json:"product"`
	Observation *domain.Observation `json:"observation"`
	Part        string              `json:"part,omitempty"`
	Resolution  string              `json:"resolution"`
}

// PreviewListing parses a raw listing and runs automatic classification on it
// without storing anything.
func (s *PriceService) PreviewListing(ctx context.Context, raw *domain.RawListing, categoryName string) (*PreviewResult, error) {
	category, err := s.Category(ctx, categoryName)
	if err != nil {
		return nil, err
	}
	return PreviewListing(raw, category, s.parser, time.Now())
}

// PreviewListing is the storage-free core of PriceService.PreviewListing
func PreviewListing(raw *domain.RawListing, category *domain.Category, parser *ListingParser, now time.Time) (*PreviewResult, error) {
	if parser == nil {
		parser = NewListingParser(nil)
	}

	product, observation, err := parser.Parse(raw, 0, now)
	if err != nil {
		return nil, err
	}

	result := &PreviewResult{
		Product:     product,
		Observation: observation,
		Resolution:  ResolutionPending.String(),
	}

	part, alias := MatchPart(category, Normalize(product.Name))
	if part != nil {
		assignPart(product, part, alias)
		result.Part = part.Name
		result.Resolution = ResolutionAuto.String()
	}
	return result, nil
}

// getFromCache decodes a cached value into out. The cache stores values as
// generic JSON, so they are re-encoded into the concrete type.
func (s *PriceService) getFromCache(ctx context.Context, key string, out interface{}) bool {
	if s.cache == nil {
		return false
	}

	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return false
	}

	data, err := json.Marshal(value)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Debug("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// setInCache stores a value; failures are logged and never fail the request
func (s *PriceService) setInCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

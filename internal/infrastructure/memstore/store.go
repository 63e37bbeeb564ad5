// Package memstore is an in-memory domain.Repository and domain.PriceReader.
// It backs the "memory" storage driver and the usecase tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/msrptw/backend/internal/domain"
)

type productKey struct {
	externalID string
	sourceID   int64
}

type observationKey struct {
	productID int64
	date      string
}

// Store keeps all rows in maps guarded by one RWMutex. Values are copied on
// the way in and out so callers never share memory with the store.
type Store struct {
	mu sync.RWMutex

	taxonomy []domain.Category
	sources  []domain.Source

	products     map[int64]domain.Product
	productKeys  map[productKey]int64
	observations map[int64]domain.Observation
	obsKeys      map[observationKey]int64

	nextProductID     int64
	nextObservationID int64
}

// New creates a store holding the given taxonomy and sources. Sources are
// numbered from 1 in the order given.
func New(taxonomy []domain.Category, sources []string) *Store {
	s := &Store{
		taxonomy:     taxonomy,
		products:     make(map[int64]domain.Product),
		productKeys:  make(map[productKey]int64),
		observations: make(map[int64]domain.Observation),
		obsKeys:      make(map[observationKey]int64),
	}
	for i, name := range sources {
		s.sources = append(s.sources, domain.Source{ID: int64(i + 1), Name: name})
	}
	return s
}

// LoadTaxonomy returns a deep copy of the taxonomy
func (s *Store) LoadTaxonomy(ctx context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, len(s.taxonomy))
	for i, c := range s.taxonomy {
		categories[i] = c
		categories[i].Parts = make([]domain.Part, len(c.Parts))
		for j, p := range c.Parts {
			categories[i].Parts[j] = p
			categories[i].Parts[j].Aliases = append([]domain.Alias(nil), p.Aliases...)
		}
	}
	return categories, nil
}

// FindSource looks a retailer up by name
func (s *Store) FindSource(ctx context.Context, name string) (*domain.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, src := range s.sources {
		if src.Name == name {
			found := src
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: source %q", domain.ErrNotFound, name)
}

// ListSources returns all retailers ordered by id
func (s *Store) ListSources(ctx context.Context) ([]domain.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Source(nil), s.sources...), nil
}

// FindProduct looks a product up by its retailer key
func (s *Store) FindProduct(ctx context.Context, externalID string, sourceID int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.productKeys[productKey{externalID, sourceID}]
	if !ok {
		return nil, fmt.Errorf("%w: product %s/%d", domain.ErrNotFound, externalID, sourceID)
	}
	return copyProduct(s.products[id]), nil
}

// GetProduct looks a product up by id
func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %d", domain.ErrNotFound, id)
	}
	return copyProduct(p), nil
}

// SaveProduct inserts a new product (ID == 0) or updates a stored one.
// Inserting a key that already exists returns domain.ErrConflict.
func (s *Store) SaveProduct(ctx context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := productKey{product.ExternalID, product.SourceID}

	if product.ID != 0 {
		stored, ok := s.products[product.ID]
		if !ok {
			return fmt.Errorf("%w: product %d", domain.ErrNotFound, product.ID)
		}
		if other, taken := s.productKeys[key]; taken && other != product.ID {
			return fmt.Errorf("%w: product %s/%d", domain.ErrConflict, product.ExternalID, product.SourceID)
		}
		delete(s.productKeys, productKey{stored.ExternalID, stored.SourceID})
		s.productKeys[key] = product.ID
		s.products[product.ID] = *copyProduct(*product)
		return nil
	}

	if _, taken := s.productKeys[key]; taken {
		return fmt.Errorf("%w: product %s/%d", domain.ErrConflict, product.ExternalID, product.SourceID)
	}

	s.nextProductID++
	product.ID = s.nextProductID
	s.productKeys[key] = product.ID
	s.products[product.ID] = *copyProduct(*product)
	return nil
}

// ListProducts returns the products matching filter ordered by id
func (s *Store) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var partsInCategory map[int64]bool
	if filter.CategoryID != 0 {
		partsInCategory = make(map[int64]bool)
		for _, c := range s.taxonomy {
			if c.ID != filter.CategoryID {
				continue
			}
			for _, p := range c.Parts {
				partsInCategory[p.ID] = true
			}
		}
	}

	products := make([]domain.Product, 0)
	for _, p := range s.products {
		if filter.SourceID != 0 && p.SourceID != filter.SourceID {
			continue
		}
		if filter.Classified != nil && p.Classified() != *filter.Classified {
			continue
		}
		if partsInCategory != nil && (p.PartID == nil || !partsInCategory[*p.PartID]) {
			continue
		}
		products = append(products, *copyProduct(p))
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

// FindObservation looks up the observation of a product on the day of date
func (s *Store) FindObservation(ctx context.Context, productID int64, date time.Time) (*domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := observationKey{productID, date.Format(domain.DateLayout)}
	id, ok := s.obsKeys[key]
	if !ok {
		return nil, fmt.Errorf("%w: observation %d@%s", domain.ErrNotFound, productID, key.date)
	}
	o := s.observations[id]
	return &o, nil
}

// SaveObservation upserts by (product, day); the last write wins
func (s *Store) SaveObservation(ctx context.Context, observation *domain.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[observation.ProductID]; !ok {
		return fmt.Errorf("%w: product %d", domain.ErrNotFound, observation.ProductID)
	}

	key := observationKey{observation.ProductID, observation.DateKey()}
	if id, ok := s.obsKeys[key]; ok {
		observation.ID = id
	} else {
		s.nextObservationID++
		observation.ID = s.nextObservationID
		s.obsKeys[key] = observation.ID
	}
	s.observations[observation.ID] = *observation
	return nil
}

// ListObservations returns a product's observations from..to inclusive, oldest first
func (s *Store) ListObservations(ctx context.Context, productID int64, from, to time.Time) ([]domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo, hi := from.Format(domain.DateLayout), to.Format(domain.DateLayout)
	observations := make([]domain.Observation, 0)
	for _, o := range s.observations {
		day := o.DateKey()
		if o.ProductID == productID && day >= lo && day <= hi {
			observations = append(observations, o)
		}
	}
	sort.Slice(observations, func(i, j int) bool { return observations[i].Date.Before(observations[j].Date) })
	return observations, nil
}

// ListPriceRows joins observations with their product, part, category and source
func (s *Store) ListPriceRows(ctx context.Context, from, to time.Time) ([]domain.PriceRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type partRef struct{ category, part string }
	parts := make(map[int64]partRef)
	for _, c := range s.taxonomy {
		for _, p := range c.Parts {
			parts[p.ID] = partRef{c.Name, p.Name}
		}
	}
	sources := make(map[int64]string, len(s.sources))
	for _, src := range s.sources {
		sources[src.ID] = src.Name
	}

	lo, hi := from.Format(domain.DateLayout), to.Format(domain.DateLayout)
	rows := make([]domain.PriceRow, 0)
	for _, o := range s.observations {
		day := o.DateKey()
		if day < lo || day > hi {
			continue
		}
		p := s.products[o.ProductID]
		row := domain.PriceRow{
			Date:    o.Date,
			Source:  sources[p.SourceID],
			Product: p.Name,
			Origin:  p.Origin,
			Weight:  p.Weight,
			Unit:    p.Unit,
			Count:   p.Count,
			Price:   o.Price,
		}
		if p.PartID != nil {
			ref := parts[*p.PartID]
			row.Category, row.Part = ref.category, ref.part
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		if rows[i].Source != rows[j].Source {
			return rows[i].Source < rows[j].Source
		}
		return rows[i].Product < rows[j].Product
	})
	return rows, nil
}

// Counts reports the number of stored products and observations
func (s *Store) Counts() (products, observations int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products), len(s.observations)
}

func copyProduct(p domain.Product) *domain.Product {
	if p.PartID != nil {
		v := *p.PartID
		p.PartID = &v
	}
	if p.AliasID != nil {
		v := *p.AliasID
		p.AliasID = &v
	}
	if p.Weight != nil {
		v := *p.Weight
		p.Weight = &v
	}
	return &p
}

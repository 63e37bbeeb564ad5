package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Repository is the persistence collaborator of the ingest engine.
// Lookups return ErrNotFound when nothing matches; SaveProduct returns
// ErrConflict when a concurrent writer already inserted the same key.
type Repository interface {
	LoadTaxonomy(ctx context.Context) ([]Category, error)
	FindSource(ctx context.Context, name string) (*Source, error)
	FindProduct(ctx context.Context, externalID string, sourceID int64) (*Product, error)
	FindObservation(ctx context.Context, productID int64, date time.Time) (*Observation, error)
	SaveProduct(ctx context.Context, product *Product) error
	SaveObservation(ctx context.Context, observation *Observation) error
}

// PriceReader serves the read side of stored price history
type PriceReader interface {
	LoadTaxonomy(ctx context.Context) ([]Category, error)
	ListSources(ctx context.Context) ([]Source, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	ListObservations(ctx context.Context, productID int64, from, to time.Time) ([]Observation, error)
	ListPriceRows(ctx context.Context, from, to time.Time) ([]PriceRow, error)
}

// Fetcher retrieves listings from one retailer
type Fetcher interface {
	// Source is the retailer name the listings belong to
	Source() string
	// Selectors returns the retailer-specific selectors of a category, false if none are configured
	Selectors(category string) ([]string, bool)
	LocationsFor(ctx context.Context, selector string) ([]Location, error)
	Fetch(ctx context.Context, location Location) (*RawListing, error)
}

// ReviewPrompt is what a Reviewer is shown for an unresolved product
type ReviewPrompt struct {
	Name    string
	Origin  Origin
	Options []string
	// Suggestion is the closest option by name similarity, empty when none is close
	Suggestion string
}

// Reviewer resolves products automatic classification could not.
// The answer is the index of the chosen option as text; an empty answer skips.
type Reviewer interface {
	Prompt(ctx context.Context, prompt ReviewPrompt) (string, error)
}

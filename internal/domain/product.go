package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day format observations are keyed by
const DateLayout = "2006-01-02"

// Unit is the base unit a quantity is normalized to
type Unit string

const (
	UnitGram       Unit = "g"
	UnitMillilitre Unit = "ml"
)

// Quantity is a weight or volume expressed in its base unit
type Quantity struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// Product is the identity of one listing at one Source, unique by (ExternalID, SourceID)
type Product struct {
	ID         int64    `json:"id"`
	ExternalID string   `json:"externalId"`
	SourceID   int64    `json:"sourceId"`
	Name       string   `json:"name"`
	Origin     Origin   `json:"origin"`
	PartID     *int64   `json:"partId,omitempty"`
	AliasID    *int64   `json:"aliasId,omitempty"`
	Weight     *float64 `json:"weight,omitempty"`
	Unit       Unit     `json:"unit,omitempty"`
	Count      int      `json:"count"`
	Reference  string   `json:"reference,omitempty"`
}

// Classified reports whether a Part has been assigned
func (p *Product) Classified() bool {
	return p.PartID != nil
}

// Key is the retailer identity a product is deduplicated by
func (p *Product) Key() (externalID string, sourceID int64) {
	return p.ExternalID, p.SourceID
}

// Persisted reports whether the product has been stored
func (p *Product) Persisted() bool {
	return p.ID != 0
}

// Observation is one price record of a Product on one calendar day
type Observation struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"productId"`
	Price     decimal.Decimal `json:"price"`
	Date      time.Time       `json:"date"`
}

// DateKey returns the observation day as YYYY-MM-DD
func (o *Observation) DateKey() string {
	return o.Date.Format(DateLayout)
}

// Day truncates t to its calendar day in t's location
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// PendingItem is a new product waiting for classification after the fetch phase
type PendingItem struct {
	Category    *Category
	Product     *Product
	Observation *Observation
}

// Location is one item a fetcher can retrieve. Payload is set when the
// listing request already returned the item body.
type Location struct {
	URL     string          `json:"url"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RawListing holds the untouched text fields a fetcher extracted for one item
type RawListing struct {
	ExternalID    string `json:"externalId"`
	Name          string `json:"name" binding:"required"`
	Weight        string `json:"weight,omitempty"`
	Origin        string `json:"origin,omitempty"`
	Price         string `json:"price" binding:"required"`
	Count         string `json:"count,omitempty"`
	Reference     string `json:"reference,omitempty"`
	DefaultOrigin Origin `json:"defaultOrigin,omitempty"`
}

// ProductFilter narrows product listings
type ProductFilter struct {
	SourceID   int64
	CategoryID int64
	Classified *bool
}

// PriceRow is one joined observation used for reporting
type PriceRow struct {
	Date     time.Time       `json:"date"`
	Source   string          `json:"source"`
	Category string          `json:"category"`
	Part     string          `json:"part"`
	Product  string          `json:"product"`
	Origin   Origin          `json:"origin"`
	Weight   *float64        `json:"weight,omitempty"`
	Unit     Unit            `json:"unit,omitempty"`
	Count    int             `json:"count"`
	Price    decimal.Decimal `json:"price"`
}

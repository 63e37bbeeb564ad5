package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/msrptw/backend/internal/domain"
)

var (
	// Matches the first decimal number, thousands separators included ("$1,299.5")
	pricePattern = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

	// Everything from the first size/approximation marker onwards is not part of a name
	nameCutPattern = regexp.MustCompile(`[0-9]|約|\(`)
)

// CleanName normalizes a listing title and strips the trailing size or
// approximation text: "紅蘿蔔300g" becomes "紅蘿蔔".
func CleanName(s string) string {
	s = Normalize(s)
	if loc := nameCutPattern.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	return strings.Trim(s, "-_/,.:;|")
}

// ParsePrice extracts the first positive number of a price string
func ParsePrice(s string) (decimal.Decimal, error) {
	raw := pricePattern.FindString(Normalize(s))
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: no number in price %q", domain.ErrParse, s)
	}
	price, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: price %q: %v", domain.ErrParse, s, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive price %q", domain.ErrParse, s)
	}
	return price, nil
}

// ListingParser turns raw fetched text into a candidate product and observation
type ListingParser struct {
	origins *OriginResolver
}

// NewListingParser creates a parser; a nil resolver uses the default origin table
func NewListingParser(origins *OriginResolver) *ListingParser {
	if origins == nil {
		origins = defaultOriginResolver
	}
	return &ListingParser{origins: origins}
}

// Parse builds an unsaved Product and Observation from raw listing fields.
// All failures wrap domain.ErrParse; the listing is then dropped by the caller.
func (p *ListingParser) Parse(raw *domain.RawListing, sourceID int64, date time.Time) (*domain.Product, *domain.Observation, error) {
	if raw == nil {
		return nil, nil, fmt.Errorf("%w: empty listing", domain.ErrParse)
	}

	name := CleanName(raw.Name)
	if name == "" {
		return nil, nil, fmt.Errorf("%w: no name in %q", domain.ErrParse, raw.Name)
	}

	externalID := strings.TrimSpace(raw.ExternalID)
	if externalID == "" {
		return nil, nil, fmt.Errorf("%w: missing external id for %q", domain.ErrParse, raw.Name)
	}

	quantity, ok := extractListingWeight(raw)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no weight in %q / %q", domain.ErrParse, raw.Weight, raw.Name)
	}

	price, err := ParsePrice(raw.Price)
	if err != nil {
		return nil, nil, err
	}

	var count int
	if raw.Count != "" {
		count = ExtractCount(raw.Count)
	} else {
		count = ExtractCount(raw.Name)
	}

	weight := quantity.Value
	product := &domain.Product{
		ExternalID: externalID,
		SourceID:   sourceID,
		Name:       name,
		Origin:     p.origins.Resolve(raw.Origin, raw.DefaultOrigin),
		Weight:     &weight,
		Unit:       quantity.Unit,
		Count:      count,
		Reference:  raw.Reference,
	}

	observation := &domain.Observation{
		Price: price,
		Date:  domain.Day(date),
	}

	return product, observation, nil
}

// extractListingWeight reads the size field; a differing size in the title overrides it.
func extractListingWeight(raw *domain.RawListing) (domain.Quantity, bool) {
	fromField, fieldOK := ExtractWeight(raw.Weight)
	fromName, nameOK := ExtractWeight(raw.Name)

	switch {
	case nameOK && (!fieldOK || fromName != fromField):
		return fromName, true
	case fieldOK:
		return fromField, true
	default:
		return domain.Quantity{}, false
	}
}

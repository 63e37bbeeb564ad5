package retailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/msrptw/backend/config"
	"github.com/msrptw/backend/internal/domain"
)

// JSONFetcher reads retailer APIs whose listing response already carries the
// item bodies. Field mappings are dotted paths into each item.
type JSONFetcher struct {
	cfg       config.RetailerConfig
	client    *Client
	base      *url.URL
	idPattern *regexp.Regexp
}

// NewJSONFetcher validates the retailer configuration and builds the fetcher
func NewJSONFetcher(cfg config.RetailerConfig, client *Client) (*JSONFetcher, error) {
	if cfg.Fields["name"] == "" || cfg.Fields["price"] == "" {
		return nil, fmt.Errorf("retailer %s: name and price fields are required", cfg.Name)
	}
	if cfg.Fields["id"] == "" && cfg.IDPattern == "" {
		return nil, fmt.Errorf("retailer %s: an id field or id_pattern is required", cfg.Name)
	}

	base, idPattern, err := parseCommon(cfg)
	if err != nil {
		return nil, err
	}
	return &JSONFetcher{cfg: cfg, client: client, base: base, idPattern: idPattern}, nil
}

// Source returns the retailer name
func (f *JSONFetcher) Source() string {
	return f.cfg.Name
}

// Selectors returns the category's listing selectors
func (f *JSONFetcher) Selectors(category string) ([]string, bool) {
	return categorySelectors(f.cfg, category)
}

// LocationsFor returns one location per item of the listing response. Each
// location carries the item body so Fetch needs no second request.
func (f *JSONFetcher) LocationsFor(ctx context.Context, selector string) ([]domain.Location, error) {
	listURL := listURL(f.cfg, selector)
	body, err := f.client.Get(ctx, listURL)
	if err != nil {
		return nil, err
	}

	doc, err := decodeJSON(body)
	if err != nil {
		return nil, fmt.Errorf("decode listing %s: %w", listURL, err)
	}

	node, ok := lookup(doc, f.cfg.ItemsPath)
	if !ok {
		return nil, fmt.Errorf("listing %s: no value at %q", listURL, f.cfg.ItemsPath)
	}
	items, ok := node.([]any)
	if !ok {
		return nil, fmt.Errorf("listing %s: %q is not an array", listURL, f.cfg.ItemsPath)
	}

	page := resolveBase(f.base, listURL)
	locations := make([]domain.Location, 0, len(items))
	for i, item := range items {
		payload, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("listing %s: item %d: %w", listURL, i, err)
		}

		location := domain.Location{URL: fmt.Sprintf("%s#%d", listURL, i), Payload: payload}
		if link := stringify(lookupOr(item, f.cfg.Fields["url"])); link != "" {
			location.URL = resolve(page, link)
		}
		locations = append(locations, location)
	}
	return locations, nil
}

// Fetch reads a raw listing from the location's payload, requesting the
// location only when no payload was carried over.
func (f *JSONFetcher) Fetch(ctx context.Context, location domain.Location) (*domain.RawListing, error) {
	payload := []byte(location.Payload)
	if len(payload) == 0 {
		body, err := f.client.Get(ctx, location.URL)
		if err != nil {
			return nil, err
		}
		payload = body
	}

	item, err := decodeJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: item %s: %v", domain.ErrParse, location.URL, err)
	}

	raw := &domain.RawListing{
		Name:          f.field(item, "name"),
		Weight:        f.field(item, "weight"),
		Origin:        f.field(item, "origin"),
		Price:         f.field(item, "price"),
		Count:         f.field(item, "count"),
		Reference:     location.URL,
		DefaultOrigin: domain.Origin(f.cfg.DefaultOrigin),
	}

	raw.ExternalID = f.field(item, "id")
	if raw.ExternalID == "" {
		raw.ExternalID = matchID(f.idPattern, location.URL)
	}
	if raw.Name == "" {
		return nil, fmt.Errorf("%w: no name in item %s", domain.ErrParse, location.URL)
	}
	return raw, nil
}

func (f *JSONFetcher) field(item any, name string) string {
	return stringify(lookupOr(item, f.cfg.Fields[name]))
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// lookup walks a dotted path through objects and arrays; numeric segments index arrays.
// An empty path returns the node itself.
func lookup(node any, path string) (any, bool) {
	if path == "" {
		return node, true
	}
	for _, key := range strings.Split(path, ".") {
		switch n := node.(type) {
		case map[string]any:
			v, ok := n[key]
			if !ok {
				return nil, false
			}
			node = v
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(n) {
				return nil, false
			}
			node = n[i]
		default:
			return nil, false
		}
	}
	return node, true
}

func lookupOr(node any, path string) any {
	if path == "" {
		return nil
	}
	v, _ := lookup(node, path)
	return v
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

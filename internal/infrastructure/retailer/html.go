package retailer

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/msrptw/backend/config"
	"github.com/msrptw/backend/internal/domain"
)

// HTMLFetcher scrapes listing pages: the category page links to item pages
// whose fields are read with CSS selectors.
type HTMLFetcher struct {
	cfg       config.RetailerConfig
	client    *Client
	base      *url.URL
	idPattern *regexp.Regexp
}

// NewHTMLFetcher validates the retailer configuration and builds the fetcher
func NewHTMLFetcher(cfg config.RetailerConfig, client *Client) (*HTMLFetcher, error) {
	if cfg.LinkSelector == "" {
		return nil, fmt.Errorf("retailer %s: link_selector is required", cfg.Name)
	}
	if cfg.Fields["name"] == "" || cfg.Fields["price"] == "" {
		return nil, fmt.Errorf("retailer %s: name and price fields are required", cfg.Name)
	}

	base, idPattern, err := parseCommon(cfg)
	if err != nil {
		return nil, err
	}
	return &HTMLFetcher{cfg: cfg, client: client, base: base, idPattern: idPattern}, nil
}

// Source returns the retailer name
func (f *HTMLFetcher) Source() string {
	return f.cfg.Name
}

// Selectors returns the category's listing selectors
func (f *HTMLFetcher) Selectors(category string) ([]string, bool) {
	return categorySelectors(f.cfg, category)
}

// LocationsFor returns the item pages linked from one listing page, deduplicated and sorted
func (f *HTMLFetcher) LocationsFor(ctx context.Context, selector string) ([]domain.Location, error) {
	listURL := listURL(f.cfg, selector)
	body, err := f.client.Get(ctx, listURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing page %s: %w", listURL, err)
	}

	page := resolveBase(f.base, listURL)
	seen := make(map[string]bool)
	var links []string
	doc.Find(f.cfg.LinkSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		abs := resolve(page, href)
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
	})
	sort.Strings(links)

	locations := make([]domain.Location, 0, len(links))
	for _, link := range links {
		locations = append(locations, domain.Location{URL: link})
	}
	return locations, nil
}

// Fetch reads one item page into a raw listing
func (f *HTMLFetcher) Fetch(ctx context.Context, location domain.Location) (*domain.RawListing, error) {
	body, err := f.client.Get(ctx, location.URL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: item page %s: %v", domain.ErrParse, location.URL, err)
	}

	raw := &domain.RawListing{
		Name:          f.text(doc, "name"),
		Weight:        f.text(doc, "weight"),
		Origin:        f.text(doc, "origin"),
		Price:         f.text(doc, "price"),
		Count:         f.text(doc, "count"),
		Reference:     location.URL,
		DefaultOrigin: domain.Origin(f.cfg.DefaultOrigin),
	}

	raw.ExternalID = matchID(f.idPattern, location.URL)
	if raw.ExternalID == "" {
		raw.ExternalID = f.text(doc, "id")
	}
	if raw.Name == "" {
		return nil, fmt.Errorf("%w: no name on %s", domain.ErrParse, location.URL)
	}
	return raw, nil
}

// text joins the trimmed text of every node matching the field's selector
func (f *HTMLFetcher) text(doc *goquery.Document, field string) string {
	selector := f.cfg.Fields[field]
	if selector == "" {
		return ""
	}

	var parts []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if t := strings.Join(strings.Fields(s.Text()), " "); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

func parseCommon(cfg config.RetailerConfig) (*url.URL, *regexp.Regexp, error) {
	var base *url.URL
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("retailer %s: base_url: %w", cfg.Name, err)
		}
		base = u
	}

	var idPattern *regexp.Regexp
	if cfg.IDPattern != "" {
		re, err := regexp.Compile(cfg.IDPattern)
		if err != nil {
			return nil, nil, fmt.Errorf("retailer %s: id_pattern: %w", cfg.Name, err)
		}
		idPattern = re
	}
	return base, idPattern, nil
}

func categorySelectors(cfg config.RetailerConfig, category string) ([]string, bool) {
	selectors, ok := cfg.Categories[category]
	if !ok || len(selectors) == 0 {
		return nil, false
	}
	return append([]string(nil), selectors...), true
}

func listURL(cfg config.RetailerConfig, selector string) string {
	return strings.ReplaceAll(cfg.ListURL, "{selector}", url.QueryEscape(selector))
}

// resolveBase prefers the configured base URL and falls back to the page itself
func resolveBase(base *url.URL, page string) *url.URL {
	if base != nil {
		return base
	}
	if u, err := url.Parse(page); err == nil && u.IsAbs() {
		return u
	}
	return nil
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// matchID returns the last submatch of pattern in s, or the whole match when
// the pattern has no groups.
func matchID(pattern *regexp.Regexp, s string) string {
	if pattern == nil {
		return ""
	}
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[len(m)-1]
}

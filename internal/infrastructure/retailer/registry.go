package retailer

import (
	"fmt"

	"github.com/msrptw/backend/config"
	"github.com/msrptw/backend/internal/domain"
)

// NewFetchers builds one fetcher per configured retailer. Each retailer gets
// its own client so rate limits apply per site.
func NewFetchers(cfgs []config.RetailerConfig, opts ClientOptions) ([]domain.Fetcher, error) {
	fetchers := make([]domain.Fetcher, 0, len(cfgs))
	for _, cfg := range cfgs {
		client := NewClient(opts)

		var (
			fetcher domain.Fetcher
			err     error
		)
		switch cfg.Kind {
		case "html":
			fetcher, err = NewHTMLFetcher(cfg, client)
		case "json":
			fetcher, err = NewJSONFetcher(cfg, client)
		default:
			err = fmt.Errorf("retailer %s: unknown kind %q", cfg.Name, cfg.Kind)
		}
		if err != nil {
			return nil, err
		}
		fetchers = append(fetchers, fetcher)
	}
	return fetchers, nil
}

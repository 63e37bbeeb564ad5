package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/msrptw/backend/internal/domain"
)

// CoordinatorConfig holds configuration for the fetch coordinator
type CoordinatorConfig struct {
	Workers      int           // size of the fetch pool, 0 means runtime.NumCPU()
	FetchTimeout time.Duration // per-location timeout, 0 means 30s
	Now          func() time.Time
}

// RunSummary counts what one ingest run did
type RunSummary struct {
	RunID            string `json:"runId"`
	Locations        int64  `json:"locations"`
	Fetched          int64  `json:"fetched"`
	Dropped          int64  `json:"dropped"`
	Deferred         int64  `json:"deferred"`
	Priced           int64  `json:"priced"`
	AutoClassified   int64  `json:"autoClassified"`
	ManualClassified int64  `json:"manualClassified"`
	Abandoned        int64  `json:"abandoned"`
}

type runCounters struct {
	locations, fetched, dropped, deferred, priced atomic.Int64
	auto, manual, abandoned                       atomic.Int64
}

// FetchCoordinator runs retailer fetchers on a bounded worker pool, routes
// every listing through the reconciler and, after all fetch work has
// finished, classifies and stores the deferred new products.
type FetchCoordinator struct {
	repo       domain.Repository
	reconciler *Reconciler
	classifier *Classifier
	parser     *ListingParser
	logger     *zap.Logger
	workers    int
	timeout    time.Duration
	now        func() time.Time
}

// NewFetchCoordinator wires the coordinator's collaborators
func NewFetchCoordinator(
	repo domain.Repository,
	classifier *Classifier,
	parser *ListingParser,
	logger *zap.Logger,
	config CoordinatorConfig,
) *FetchCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if parser == nil {
		parser = NewListingParser(nil)
	}

	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	timeout := config.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &FetchCoordinator{
		repo:       repo,
		reconciler: NewReconciler(repo, logger),
		classifier: classifier,
		parser:     parser,
		logger:     logger,
		workers:    workers,
		timeout:    timeout,
		now:        now,
	}
}

// Direct performs one ingest run over the given fetchers. Item-level failures
// are logged and dropped; only storage failures abort the run and are returned.
func (c *FetchCoordinator) Direct(ctx context.Context, fetchers []domain.Fetcher) (RunSummary, error) {
	runID := uuid.NewString()
	log := c.logger.With(zap.String("run_id", runID))
	counters := &runCounters{}
	summary := func() RunSummary { return counters.summary(runID) }

	taxonomy, err := c.repo.LoadTaxonomy(ctx)
	if err != nil {
		return summary(), fmt.Errorf("load taxonomy: %w", err)
	}

	date := domain.Day(c.now())
	queue := NewDeferredQueue()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	// Listing runs outside the pool so that scheduling never waits on a pool slot it holds
	var listers sync.WaitGroup
	for _, fetcher := range fetchers {
		source, err := c.repo.FindSource(ctx, fetcher.Source())
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				log.Error("unknown source", zap.String("source", fetcher.Source()))
				continue
			}
			return summary(), fmt.Errorf("find source %q: %w", fetcher.Source(), err)
		}

		listers.Add(1)
		go func(fetcher domain.Fetcher, source *domain.Source) {
			defer listers.Done()
			c.schedule(gctx, g, log, fetcher, source, taxonomy, date, queue, counters)
		}(fetcher, source)
	}
	listers.Wait()

	if err := g.Wait(); err != nil {
		return summary(), err
	}

	if err := c.clearQueue(ctx, log, queue, counters); err != nil {
		return summary(), err
	}

	result := summary()
	log.Info("ingest run finished",
		zap.Int64("locations", result.Locations),
		zap.Int64("fetched", result.Fetched),
		zap.Int64("dropped", result.Dropped),
		zap.Int64("deferred", result.Deferred),
		zap.Int64("priced", result.Priced),
		zap.Int64("auto_classified", result.AutoClassified),
		zap.Int64("manual_classified", result.ManualClassified),
		zap.Int64("abandoned", result.Abandoned))
	return result, nil
}

// schedule lists the locations of every category the fetcher serves and
// submits one fetch task per location to the pool.
func (c *FetchCoordinator) schedule(
	ctx context.Context,
	g *errgroup.Group,
	log *zap.Logger,
	fetcher domain.Fetcher,
	source *domain.Source,
	taxonomy []domain.Category,
	date time.Time,
	queue *DeferredQueue,
	counters *runCounters,
) {
	log = log.With(zap.String("source", source.Name))

	for i := range taxonomy {
		category := &taxonomy[i]
		selectors, ok := fetcher.Selectors(category.Name)
		if !ok {
			log.Error("no selector configured for category",
				zap.String("category", category.Name),
				zap.Error(domain.ErrNoSelector))
			continue
		}

		log.Info("fetching category", zap.String("category", category.Name), zap.Int("selectors", len(selectors)))
		for _, selector := range selectors {
			if ctx.Err() != nil {
				return
			}

			locations, err := c.listLocations(ctx, fetcher, selector)
			if err != nil {
				log.Warn("fetch failed",
					zap.String("category", category.Name),
					zap.String("location", selector),
					zap.Error(err))
				continue
			}
			counters.locations.Add(int64(len(locations)))

			for _, location := range locations {
				g.Go(func() error {
					return c.fetchOne(ctx, log, fetcher, source, category, location, date, queue, counters)
				})
			}
		}
	}
}

func (c *FetchCoordinator) listLocations(ctx context.Context, fetcher domain.Fetcher, selector string) ([]domain.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return fetcher.LocationsFor(ctx, selector)
}

// fetchOne fetches, parses and routes a single location. Only storage errors
// are returned; they cancel the remaining work of the run.
func (c *FetchCoordinator) fetchOne(
	ctx context.Context,
	log *zap.Logger,
	fetcher domain.Fetcher,
	source *domain.Source,
	category *domain.Category,
	location domain.Location,
	date time.Time,
	queue *DeferredQueue,
	counters *runCounters,
) error {
	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	raw, err := fetcher.Fetch(fetchCtx, location)
	cancel()
	if err != nil {
		counters.dropped.Add(1)
		if errors.Is(err, domain.ErrParse) {
			log.Warn("listing parse failed",
				zap.String("reference", location.URL),
				zap.Error(err))
		} else {
			log.Warn("fetch failed",
				zap.String("location", location.URL),
				zap.Error(err))
		}
		return nil
	}

	product, observation, err := c.parser.Parse(raw, source.ID, date)
	if err != nil {
		counters.dropped.Add(1)
		log.Warn("listing parse failed",
			zap.String("reference", raw.Reference),
			zap.String("raw", raw.Name),
			zap.Error(err))
		return nil
	}
	counters.fetched.Add(1)

	route, err := c.reconciler.Route(ctx, category, product, observation, queue)
	if err != nil {
		return err
	}
	switch route {
	case RouteDeferred:
		counters.deferred.Add(1)
	case RoutePriced:
		counters.priced.Add(1)
	}
	return nil
}

// clearQueue drains the deferred products exactly once: the automatic pass
// covers the whole batch before the first manual prompt, and manual review
// follows the order the products were deferred in.
func (c *FetchCoordinator) clearQueue(ctx context.Context, log *zap.Logger, queue *DeferredQueue, counters *runCounters) error {
	var manual []domain.PendingItem

	for _, item := range queue.Drain() {
		if c.classifier.ClassifyAuto(item.Category, item.Product) == ResolutionPending {
			manual = append(manual, item)
			continue
		}
		counters.auto.Add(1)
		if err := c.store(ctx, item, counters); err != nil {
			return err
		}
	}

	// one review decision per (external id, source), shared by every copy
	decided := make(map[listingKey]*domain.Product, len(manual))

	reviewing := true
	for _, item := range manual {
		key := keyOf(item.Product)
		if first, ok := decided[key]; ok {
			item.Product.PartID = first.PartID
			item.Product.AliasID = first.AliasID
			log.Debug("listing already reviewed",
				zap.String("external_id", item.Product.ExternalID),
				zap.String("name", item.Product.Name))
			if err := c.store(ctx, item, counters); err != nil {
				return err
			}
			continue
		}
		decided[key] = item.Product

		resolution := ResolutionAbandoned
		if reviewing {
			var err error
			resolution, err = c.classifier.ClassifyManual(ctx, item.Category, item.Product)
			if err != nil {
				log.Warn("manual review stopped", zap.Error(err))
				reviewing = false
			}
		} else {
			c.classifier.abandon(item.Product, item.Category)
		}

		switch resolution {
		case ResolutionManual:
			counters.manual.Add(1)
		default:
			counters.abandoned.Add(1)
		}
		if err := c.store(ctx, item, counters); err != nil {
			return err
		}
	}
	return nil
}

type listingKey struct {
	externalID string
	sourceID   int64
}

func keyOf(product *domain.Product) listingKey {
	externalID, sourceID := product.Key()
	return listingKey{externalID: externalID, sourceID: sourceID}
}

// store persists a drained product. Classified products get their observation
// stored; abandoned ones are kept without a part and are never priced.
func (c *FetchCoordinator) store(ctx context.Context, item domain.PendingItem, counters *runCounters) error {
	product, err := c.reconciler.SaveProduct(ctx, item.Product)
	if err != nil {
		return err
	}
	if !product.Classified() {
		return nil
	}
	if err := c.reconciler.UpsertPrice(ctx, product, item.Observation); err != nil {
		return err
	}
	counters.priced.Add(1)
	return nil
}

func (rc *runCounters) summary(runID string) RunSummary {
	return RunSummary{
		RunID:            runID,
		Locations:        rc.locations.Load(),
		Fetched:          rc.fetched.Load(),
		Dropped:          rc.dropped.Load(),
		Deferred:         rc.deferred.Load(),
		Priced:           rc.priced.Load(),
		AutoClassified:   rc.auto.Load(),
		ManualClassified: rc.manual.Load(),
		Abandoned:        rc.abandoned.Load(),
	}
}

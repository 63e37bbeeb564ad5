package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/msrptw/backend/config"
	"github.com/msrptw/backend/internal/domain"
	"github.com/msrptw/backend/internal/infrastructure/seed"
)

type StoreSuite struct {
	suite.Suite
	cfg   func(t *testing.T) config.StorageConfig
	store *Store
	ctx   context.Context
}

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &StoreSuite{cfg: func(t *testing.T) config.StorageConfig {
		path := filepath.Join(t.TempDir(), "test.db")
		return config.StorageConfig{Driver: "sqlite", DSN: "file:" + path + "?_foreign_keys=on"}
	}})
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("MSRPTW_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MSRPTW_TEST_POSTGRES_DSN not set")
	}
	suite.Run(t, &StoreSuite{cfg: func(t *testing.T) config.StorageConfig {
		return config.StorageConfig{Driver: "postgres", DSN: dsn, MaxConns: 4}
	}})
}

var tables = []string{"logs", "observations", "products", "sources", "aliases", "parts", "categories"}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()

	store, err := Open(s.ctx, s.cfg(s.T()))
	s.Require().NoError(err)
	for _, table := range tables {
		_, err := store.db.ExecContext(s.ctx, "DROP TABLE IF EXISTS "+table)
		s.Require().NoError(err)
	}
	s.Require().NoError(store.Setup(s.ctx, seed.Default()))
	s.store = store
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		s.store.Close()
	}
}

func (s *StoreSuite) source(name string) *domain.Source {
	src, err := s.store.FindSource(s.ctx, name)
	s.Require().NoError(err)
	return src
}

func (s *StoreSuite) TestTaxonomyOrderAndAliases() {
	categories, err := s.store.LoadTaxonomy(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(categories, 5)
	s.Equal("雞肉", categories[0].Name)
	s.Equal("水果", categories[4].Name)

	chicken := categories[0]
	s.Equal([]string{"全雞", "雞切塊", "雞胸肉", "里肌", "骨腿", "腿肉", "棒腿", "腿排"}, chicken.PartNames())

	loin := chicken.Parts[3]
	s.Require().Len(loin.Aliases, 2)
	s.Equal("雞柳", loin.Aliases[0].Name)
	s.False(loin.Aliases[0].Anti)
	s.Equal("豬", loin.Aliases[1].Name)
	s.True(loin.Aliases[1].Anti)
}

func (s *StoreSuite) TestSetupIsIdempotent() {
	before, err := s.store.LoadTaxonomy(s.ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Setup(s.ctx, seed.Default()))

	after, err := s.store.LoadTaxonomy(s.ctx)
	s.Require().NoError(err)
	s.Equal(before, after)

	sources, err := s.store.ListSources(s.ctx)
	s.Require().NoError(err)
	s.Len(sources, 4)
}

func (s *StoreSuite) TestFindSourceNotFound() {
	_, err := s.store.FindSource(s.ctx, "nowhere")
	s.True(errors.Is(err, domain.ErrNotFound))
}

func (s *StoreSuite) TestProductLifecycle() {
	src := s.source("愛買")
	weight := 300.0

	p := &domain.Product{
		ExternalID: "4710000000001",
		SourceID:   src.ID,
		Name:       "紅蘿蔔",
		Origin:     domain.OriginTaiwan,
		Weight:     &weight,
		Unit:       domain.UnitGram,
		Count:      1,
		Reference:  "https://example.test/item/1",
	}
	s.Require().NoError(s.store.SaveProduct(s.ctx, p))
	s.NotZero(p.ID)

	found, err := s.store.FindProduct(s.ctx, p.ExternalID, src.ID)
	s.Require().NoError(err)
	s.Equal(p.ID, found.ID)
	s.Equal("紅蘿蔔", found.Name)
	s.Nil(found.PartID)
	s.Require().NotNil(found.Weight)
	s.Equal(300.0, *found.Weight)

	dup := *p
	dup.ID = 0
	err = s.store.SaveProduct(s.ctx, &dup)
	s.True(errors.Is(err, domain.ErrConflict), "got %v", err)

	categories, err := s.store.LoadTaxonomy(s.ctx)
	s.Require().NoError(err)
	carrot := categories[3].Parts[0]
	found.PartID = &carrot.ID
	s.Require().NoError(s.store.SaveProduct(s.ctx, found))

	classified := true
	products, err := s.store.ListProducts(s.ctx, domain.ProductFilter{Classified: &classified, CategoryID: categories[3].ID})
	s.Require().NoError(err)
	s.Require().Len(products, 1)
	s.Equal(carrot.ID, *products[0].PartID)

	_, err = s.store.GetProduct(s.ctx, 99999)
	s.True(errors.Is(err, domain.ErrNotFound))
}

func (s *StoreSuite) TestObservationUpsert() {
	src := s.source("頂好")
	p := &domain.Product{ExternalID: "x1", SourceID: src.ID, Name: "香蕉", Origin: domain.OriginTaiwan, Count: 1}
	s.Require().NoError(s.store.SaveProduct(s.ctx, p))

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local)
	first := &domain.Observation{ProductID: p.ID, Price: decimal.RequireFromString("39.9"), Date: day}
	s.Require().NoError(s.store.SaveObservation(s.ctx, first))

	second := &domain.Observation{ProductID: p.ID, Price: decimal.RequireFromString("42"), Date: day}
	s.Require().NoError(s.store.SaveObservation(s.ctx, second))
	s.Equal(first.ID, second.ID)

	found, err := s.store.FindObservation(s.ctx, p.ID, day)
	s.Require().NoError(err)
	s.True(found.Price.Equal(decimal.NewFromInt(42)), "price %s", found.Price)
	s.True(day.Equal(found.Date), "date %s", found.Date)

	_, err = s.store.FindObservation(s.ctx, p.ID, day.AddDate(0, 0, 1))
	s.True(errors.Is(err, domain.ErrNotFound))

	s.Require().NoError(s.store.SaveObservation(s.ctx,
		&domain.Observation{ProductID: p.ID, Price: decimal.NewFromInt(40), Date: day.AddDate(0, 0, 1)}))

	history, err := s.store.ListObservations(s.ctx, p.ID, day, day.AddDate(0, 0, 7))
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.True(day.Equal(history[0].Date))

	rows, err := s.store.ListPriceRows(s.ctx, day, day)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal("頂好", rows[0].Source)
	s.Equal("", rows[0].Part)
	s.Equal("香蕉", rows[0].Product)
}

func (s *StoreSuite) TestConcurrentInsertsOfOneKey() {
	src := s.source("大潤發")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.store.SaveProduct(s.ctx, &domain.Product{ExternalID: "same", SourceID: src.ID, Name: "洋蔥", Origin: domain.OriginOther, Count: 1})
		}()
	}
	wg.Wait()
	close(errs)

	ok, conflicts := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrConflict):
			conflicts++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, ok)
	s.Equal(7, conflicts)
}

func (s *StoreSuite) TestLogCore() {
	logger := zap.New(s.store.LogCore("crawl", zapcore.InfoLevel)).With(zap.String("run_id", "r1"))
	logger.Info("fetch failed", zap.String("source", "楓康"), zap.Int("attempt", 2))
	logger.Debug("dropped below level")

	records, err := s.store.RecentLogs(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal("crawl", records[0].Logger)
	s.Equal("info", records[0].Level)
	s.Equal("fetch failed", records[0].Message)
	s.Equal("楓康", records[0].Fields["source"])
	s.Equal("r1", records[0].Fields["run_id"])
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: DialectPostgres}
	if got := pg.rebind("SELECT ? WHERE a = ? AND b = ?"); got != "SELECT $1 WHERE a = $2 AND b = $3" {
		t.Errorf("rebind() = %q", got)
	}

	lite := &Store{dialect: DialectSQLite}
	if got := lite.rebind("SELECT ?"); got != "SELECT ?" {
		t.Errorf("rebind() = %q", got)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Driver: "oracle"})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("Open() error = %v, want ErrInvalidRequest", err)
	}
}

package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msrptw/backend/internal/domain"
)

func TestCleanName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"紅蘿蔔300g", "紅蘿蔔"},
		{"  紅蘿蔔 約300g", "紅蘿蔔"},
		{"高麗菜(大)", "高麗菜"},
		{"台灣香蕉", "臺灣香蕉"},
		{"雞胸肉-１kg", "雞胸肉"},
		{"300g", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanName(tt.input))
		})
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"45", "45", false},
		{"$1,299.5", "1299.5", false},
		{"NT$ ９９", "99", false},
		{"特價 59 元 (原價 79)", "59", false},
		{"0", "", true},
		{"免費", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePrice(tt.input)
			if tt.wantErr {
				assert.True(t, errors.Is(err, domain.ErrParse), "error = %v, want ErrParse", err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "ParsePrice(%q) = %s", tt.input, got)
		})
	}
}

func TestListingParser_Parse(t *testing.T) {
	parser := NewListingParser(nil)
	now := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)

	t.Run("fetched carrot listing", func(t *testing.T) {
		product, observation, err := parser.Parse(&domain.RawListing{
			ExternalID: "A1",
			Name:       "紅蘿蔔300g",
			Origin:     "臺灣",
			Price:      "45",
			Reference:  "https://shop.example/item/A1",
		}, 7, now)
		require.NoError(t, err)

		assert.Equal(t, "紅蘿蔔", product.Name)
		assert.Equal(t, "A1", product.ExternalID)
		assert.Equal(t, int64(7), product.SourceID)
		require.NotNil(t, product.Weight)
		assert.Equal(t, 300.0, *product.Weight)
		assert.Equal(t, domain.UnitGram, product.Unit)
		assert.Equal(t, domain.OriginTaiwan, product.Origin)
		assert.Equal(t, 1, product.Count)
		assert.Equal(t, "https://shop.example/item/A1", product.Reference)
		assert.False(t, product.Classified())
		assert.False(t, product.Persisted())

		assert.True(t, decimal.NewFromInt(45).Equal(observation.Price))
		assert.Equal(t, "2024-03-01", observation.DateKey())
		assert.True(t, observation.Date.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("weight from field", func(t *testing.T) {
		product, _, err := parser.Parse(&domain.RawListing{ExternalID: "B", Name: "香蕉", Weight: "600g", Price: "39"}, 1, now)
		require.NoError(t, err)
		assert.Equal(t, 600.0, *product.Weight)
	})

	t.Run("differing weight in name wins", func(t *testing.T) {
		product, _, err := parser.Parse(&domain.RawListing{ExternalID: "B", Name: "香蕉1kg", Weight: "600g", Price: "39"}, 1, now)
		require.NoError(t, err)
		assert.Equal(t, 1000.0, *product.Weight)
	})

	t.Run("count from name", func(t *testing.T) {
		product, _, err := parser.Parse(&domain.RawListing{ExternalID: "E", Name: "雞蛋10入 600g", Price: "65"}, 1, now)
		require.NoError(t, err)
		assert.Equal(t, "雞蛋", product.Name)
		assert.Equal(t, 10, product.Count)
	})

	t.Run("count field overrides name", func(t *testing.T) {
		product, _, err := parser.Parse(&domain.RawListing{ExternalID: "E", Name: "雞蛋10入 600g", Count: "2盒", Price: "65"}, 1, now)
		require.NoError(t, err)
		assert.Equal(t, 2, product.Count)
	})

	t.Run("default origin when origin text is unknown", func(t *testing.T) {
		product, _, err := parser.Parse(&domain.RawListing{
			ExternalID: "F", Name: "洋蔥1kg", Origin: "產地詳見包裝", Price: "50", DefaultOrigin: domain.OriginUSA,
		}, 1, now)
		require.NoError(t, err)
		assert.Equal(t, domain.OriginUSA, product.Origin)
	})

	failures := []struct {
		name string
		raw  *domain.RawListing
	}{
		{"nil listing", nil},
		{"name is only a size", &domain.RawListing{ExternalID: "X", Name: "300g", Price: "10"}},
		{"missing external id", &domain.RawListing{Name: "紅蘿蔔300g", Price: "10"}},
		{"missing weight", &domain.RawListing{ExternalID: "X", Name: "香蕉", Price: "10"}},
		{"missing price", &domain.RawListing{ExternalID: "X", Name: "香蕉1kg", Price: "洽詢"}},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			product, observation, err := parser.Parse(tt.raw, 1, now)
			assert.True(t, errors.Is(err, domain.ErrParse), "error = %v, want ErrParse", err)
			assert.Nil(t, product)
			assert.Nil(t, observation)
		})
	}
}

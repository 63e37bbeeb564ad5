package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/msrptw/backend/internal/domain"
)

func TestWriteXLSX(t *testing.T) {
	weight := 300.0
	rows := []domain.PriceRow{
		{
			Date:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Source:   "愛買",
			Category: "蔬菜",
			Part:     "紅蘿蔔",
			Product:  "紅蘿蔔",
			Origin:   domain.OriginTaiwan,
			Weight:   &weight,
			Unit:     domain.UnitGram,
			Count:    1,
			Price:    decimal.RequireFromString("35.5"),
		},
		{
			Date:    time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
			Source:  "頂好",
			Product: "香蕉",
			Origin:  domain.OriginOther,
			Count:   2,
			Price:   decimal.NewFromInt(49),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, Headers, got[0])
	assert.Equal(t, []string{"2024-03-01", "愛買", "蔬菜", "紅蘿蔔", "紅蘿蔔", "臺灣", "300", "g", "1", "35.5"}, got[1])
	assert.Equal(t, "2024-03-02", got[2][0])
	assert.Equal(t, "", got[2][6])
	assert.Equal(t, "49", got[2][9])
}

func TestWriteXLSX_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

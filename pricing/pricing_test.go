package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propwise/models"
)

var now = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func sold(price int64, size float64, unit models.AreaUnit, at time.Time) models.Listing {
	return models.Listing{
		Price:    price,
		AreaSize: size,
		AreaUnit: unit,
		Status:   models.ListingStatusSold,
		SoldAt:   &at,
	}
}

func TestToSquareFeet(t *testing.T) {
	tests := []struct {
		size  float64
		unit  models.AreaUnit
		want  float64
		known bool
	}{
		{5, models.AreaUnitMarla, 1361.25, true},
		{1, models.AreaUnitKanal, 5445, true},
		{100, models.AreaUnitSqYard, 900, true},
		{1200, models.AreaUnitSqFt, 1200, true},
		{3, models.AreaUnit("acre"), 3, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.unit), func(t *testing.T) {
			got, known := ToSquareFeet(tt.size, tt.unit)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, tt.known, known)
		})
	}
}

func TestPricePerSqFtFiveMarla(t *testing.T) {
	l := sold(13_612_500, 5, models.AreaUnitMarla, now)
	v, known, ok := PricePerSqFt(&l)
	require.True(t, ok)
	assert.True(t, known)
	assert.InDelta(t, 10_000, v, 1e-9)
}

func TestPricePerSqFtExcludesUnusable(t *testing.T) {
	for _, l := range []models.Listing{
		sold(0, 5, models.AreaUnitMarla, now),
		sold(-10, 5, models.AreaUnitMarla, now),
		sold(1_000_000, 0, models.AreaUnitMarla, now),
	} {
		_, _, ok := PricePerSqFt(&l)
		assert.False(t, ok)
	}
}

func TestMonthlyTrendSingleMonthIsEmpty(t *testing.T) {
	trend := MonthlyTrend([]models.Listing{
		sold(13_612_500, 5, models.AreaUnitMarla, now.AddDate(0, 0, -2)),
		sold(10_000_000, 1000, models.AreaUnitSqFt, now.AddDate(0, 0, -3)),
	}, now)

	assert.NotNil(t, trend.Points)
	assert.Empty(t, trend.Points)
}

func TestMonthlyTrendAveragesPerMonth(t *testing.T) {
	may := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
	march := time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC)

	trend := MonthlyTrend([]models.Listing{
		sold(13_612_500, 5, models.AreaUnitMarla, may),     // 10,000
		sold(20_000_000, 1000, models.AreaUnitSqFt, may),   // 20,000
		sold(5_445_000, 1, models.AreaUnitKanal, march),    // 1,000
		sold(9_000_000, 100, models.AreaUnitSqYard, march), // 10,000
		sold(0, 100, models.AreaUnitSqYard, march),         // excluded
		sold(1, 1, models.AreaUnitSqFt, now.AddDate(-2, 0, 0)),
	}, now)

	require.Len(t, trend.Points, 2)
	assert.Equal(t, "Mar 2025", trend.Points[0].Label)
	assert.InDelta(t, 5_500, trend.Points[0].AvgPricePerSqFt, 1e-9)
	assert.Equal(t, 2, trend.Points[0].Samples)
	assert.Equal(t, "May 2025", trend.Points[1].Label)
	assert.InDelta(t, 15_000, trend.Points[1].AvgPricePerSqFt, 1e-9)
	assert.Equal(t, 1, trend.Excluded)
	assert.Zero(t, trend.UnknownUnits)
}

func TestMonthlyTrendFlagsUnknownUnits(t *testing.T) {
	trend := MonthlyTrend([]models.Listing{
		sold(1_000_000, 100, models.AreaUnit("acre"), now),
		sold(1_000_000, 100, models.AreaUnitSqFt, now.AddDate(0, -1, 0)),
	}, now)

	require.Len(t, trend.Points, 2)
	assert.Equal(t, 1, trend.UnknownUnits)
	assert.InDelta(t, 10_000, trend.Points[1].AvgPricePerSqFt, 1e-9)
}

func TestMonthlyTrendIgnoresUnsold(t *testing.T) {
	active := sold(1_000_000, 100, models.AreaUnitSqFt, now)
	active.Status = models.ListingStatusActive

	trend := MonthlyTrend([]models.Listing{active}, now)
	assert.Empty(t, trend.Points)
	assert.Equal(t, 1, trend.Excluded)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "PKR 50,000,000", FormatPrice("PKR", 50_000_000))
	assert.Equal(t, "950", FormatPrice("", 950))
	assert.Equal(t, "PKR 10,000", FormatRate("PKR", 9_999.6))
}

package pricing

import (
	"sort"
	"time"

	"propwise/models"
)

const TrendMonths = 12

type TrendPoint struct {
	Month           time.Time `json:"month"`
	Label           string    `json:"label"`
	AvgPricePerSqFt float64   `json:"avg_price_per_sqft"`
	Samples         int       `json:"samples"`
}

type Trend struct {
	Points []TrendPoint `json:"points"`
	// UnknownUnits counts listings whose unit was used as-is
	UnknownUnits int `json:"unknown_units"`
	// Excluded counts listings dropped for missing price, size or sale date
	Excluded int `json:"excluded"`
}

// MonthlyTrend averages price per square foot of sold listings by calendar
// month (UTC) over the trailing twelve months ending at now. A series with
// fewer than two months is not a trend and comes back empty.
func MonthlyTrend(listings []models.Listing, now time.Time) Trend {
	now = now.UTC()
	since := now.AddDate(0, -TrendMonths, 0)

	type bucket struct {
		sum float64
		n   int
	}
	buckets := make(map[time.Time]*bucket)
	trend := Trend{Points: []TrendPoint{}}

	for i := range listings {
		l := &listings[i]
		if l.Status != models.ListingStatusSold || l.SoldAt == nil {
			trend.Excluded++
			continue
		}
		sold := l.SoldAt.UTC()
		if sold.Before(since) || sold.After(now) {
			continue
		}

		v, known, ok := PricePerSqFt(l)
		if !ok {
			trend.Excluded++
			continue
		}
		if !known {
			trend.UnknownUnits++
		}

		month := time.Date(sold.Year(), sold.Month(), 1, 0, 0, 0, 0, time.UTC)
		b, exists := buckets[month]
		if !exists {
			b = &bucket{}
			buckets[month] = b
		}
		b.sum += v
		b.n++
	}

	if len(buckets) < 2 {
		return trend
	}

	for month, b := range buckets {
		trend.Points = append(trend.Points, TrendPoint{
			Month:           month,
			Label:           month.Format("Jan 2006"),
			AvgPricePerSqFt: b.sum / float64(b.n),
			Samples:         b.n,
		})
	}
	sort.Slice(trend.Points, func(i, j int) bool {
		return trend.Points[i].Month.Before(trend.Points[j].Month)
	})

	return trend
}

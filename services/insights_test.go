package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propwise/apperr"
	"propwise/config"
	"propwise/models"
)

func fp(v float64) *float64 { return &v }
func ip(v int64) *int64     { return &v }

var styles = config.AmenityStyles{
	models.AmenitySchool: {Icon: "fa-school", Color: "blue"},
	models.AmenityOther:  {Icon: "fa-map-marker-alt", Color: "gray"},
}

func newInsights(store *memStore, kv KV, now time.Time) *InsightsService {
	s := NewInsightsService(store, kv, styles, "PKR")
	s.now = func() time.Time { return now }
	return s
}

func TestMapPins(t *testing.T) {
	store := newMemStore()
	withCoords := newListing("mapped", t0)
	withCoords.AreaLat, withCoords.AreaLng = fp(31.52), fp(74.35)
	withCoords.Lat, withCoords.Lng = fp(31.6), fp(74.4)
	withCoords.AreaName, withCoords.CityName = "Gulberg", "Lahore"
	withCoords.Price = 50_000_000
	store.listings = []models.Listing{withCoords, newListing("no coords", t0.Add(time.Minute))}

	pins, err := newInsights(store, nil, t0).MapPins(context.Background())
	require.NoError(t, err)
	require.Len(t, pins, 1)

	pin := pins[0]
	assert.Equal(t, withCoords.ID, pin.ID)
	assert.Equal(t, "PKR 50,000,000", pin.Price)
	assert.Equal(t, "Gulberg, Lahore", pin.AreaName)
	assert.Equal(t, "/properties/"+withCoords.ID.String()+"/", pin.DetailURL)
	assert.Equal(t, 31.52, pin.Lat)
	assert.Equal(t, 74.35, pin.Lng)
}

func TestNearbyAmenities(t *testing.T) {
	store := newMemStore()
	l := newListing("house", t0)
	l.Lat, l.Lng = fp(31.5204), fp(74.3587)
	noCoords := newListing("plot", t0)
	noCoords.AreaLat, noCoords.AreaLng = fp(31.5204), fp(74.3587)
	halfCoords := newListing("flat", t0)
	halfCoords.Lat = fp(31.5204)
	halfCoords.AreaLat, halfCoords.AreaLng = fp(31.5204), fp(74.3587)
	store.listings = []models.Listing{l, noCoords, halfCoords}
	for i := int64(1); i <= 7; i++ {
		store.amenities = append(store.amenities, models.Amenity{
			ID: i, Name: "school", Category: models.AmenitySchool,
			Lat: fp(31.5204 + float64(i)*0.01), Lng: fp(74.3587),
		})
	}
	store.amenities = append(store.amenities, models.Amenity{ID: 99, Name: "unmapped"})

	svc := newInsights(store, nil, t0)
	ctx := context.Background()

	got, err := svc.NearbyAmenities(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "fa-school", got[0].Icon)
	for i := 1; i < len(got); i++ {
		assert.Less(t, *got[i-1].DistanceKm, *got[i].DistanceKm)
	}
	assert.InDelta(t, 1.11, *got[0].DistanceKm, 0.01)

	got, err = svc.NearbyAmenities(ctx, noCoords.ID)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = svc.NearbyAmenities(ctx, halfCoords.ID)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = svc.NearbyAmenities(ctx, uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestAreaAmenities(t *testing.T) {
	store := newMemStore()
	store.amenities = []models.Amenity{
		{ID: 1, Name: "Park View", Category: models.AmenityPark, AreaID: ip(3), Lat: fp(1), Lng: fp(2)},
		{ID: 2, Name: "Unmapped", Category: models.AmenitySchool, AreaID: ip(3)},
		{ID: 3, Name: "Elsewhere", Category: models.AmenitySchool, AreaID: ip(4), Lat: fp(1), Lng: fp(2)},
	}

	got, err := newInsights(store, nil, t0).AreaAmenities(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Park View", got[0].Name)
	assert.Equal(t, "gray", got[0].Color, "unstyled category falls back to other")
	assert.Nil(t, got[0].DistanceKm)
}

func soldListing(areaID int64, price int64, marla float64, at time.Time) models.Listing {
	l := newListing("sold", at.AddDate(0, -1, 0))
	l.AreaID = &areaID
	l.Price = price
	l.AreaSize = marla
	l.AreaUnit = models.AreaUnitMarla
	l.Status = models.ListingStatusSold
	l.SoldAt = &at
	return l
}

func TestPriceTrend(t *testing.T) {
	now := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	store := newMemStore()
	store.areas[3] = models.Area{ID: 3, Name: "Johar Town", CityName: "Lahore"}
	store.listings = []models.Listing{
		soldListing(3, 13_612_500, 5, time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC)),
		soldListing(3, 27_225_000, 5, time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC)),
		soldListing(4, 1, 1, time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC)),
	}

	kv := newMemKV()
	svc := newInsights(store, kv, now)
	ctx := context.Background()

	got, err := svc.PriceTrend(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Johar Town", got.Area.Name)
	require.Len(t, got.Trend.Points, 2)
	assert.InDelta(t, 10_000, got.Trend.Points[0].AvgPricePerSqFt, 1e-9)
	assert.InDelta(t, 20_000, got.Trend.Points[1].AvgPricePerSqFt, 1e-9)
	assert.Len(t, kv.data, 1)

	store.listings = nil
	cached, err := svc.PriceTrend(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, cached.Trend.Points, 2, "second call is served from cache")

	_, err = svc.PriceTrend(ctx, 42)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestPriceTrendSingleMonthWithoutCache(t *testing.T) {
	now := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	store := newMemStore()
	store.areas[3] = models.Area{ID: 3, Name: "Johar Town"}
	store.listings = []models.Listing{soldListing(3, 13_612_500, 5, now.AddDate(0, 0, -1))}

	kv := newMemKV()
	kv.err = errBoom
	got, err := newInsights(store, kv, now).PriceTrend(context.Background(), 3)
	require.NoError(t, err, "cache failures are not fatal")
	assert.Empty(t, got.Trend.Points)
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"propwise/apperr"
	"propwise/config"
	"propwise/geo"
	"propwise/identity"
	"propwise/models"
	"propwise/pricing"
)

const (
	mapPinLimit   = 500
	trendCacheTTL = time.Hour
)

type InsightsStore interface {
	GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	GetArea(ctx context.Context, id int64) (*models.Area, error)
	ListMapListings(ctx context.Context, limit int) ([]models.Listing, error)
	ListAmenitiesWithCoordinates(ctx context.Context) ([]models.Amenity, error)
	ListAmenitiesForArea(ctx context.Context, areaID int64) ([]models.Amenity, error)
	ListSoldListingsForArea(ctx context.Context, areaID int64, since time.Time) ([]models.Listing, error)
}

// KV is a byte cache. Get returns nil, nil on a miss.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MapPin is one marker on the listings map.
type MapPin struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Price     string    `json:"price"`
	AreaName  string    `json:"area_name"`
	ImageURL  string    `json:"image_url,omitempty"`
	DetailURL string    `json:"detail_url"`
}

// AmenityMarker is an amenity styled for the area map.
type AmenityMarker struct {
	Name       string                 `json:"name"`
	Type       models.AmenityCategory `json:"type"`
	Lat        float64                `json:"lat"`
	Lng        float64                `json:"lng"`
	Icon       string                 `json:"icon"`
	Color      string                 `json:"color"`
	DistanceKm *float64               `json:"distance_km,omitempty"`
}

type AreaTrend struct {
	Area  models.Area   `json:"area"`
	Trend pricing.Trend `json:"trend"`
}

// InsightsService serves the read-only map and price views. Geo and price
// failures degrade to empty results.
type InsightsService struct {
	store    InsightsStore
	cache    KV
	styles   config.AmenityStyles
	currency string
	now      func() time.Time
}

func NewInsightsService(store InsightsStore, cache KV, styles config.AmenityStyles, currency string) *InsightsService {
	return &InsightsService{
		store:    store,
		cache:    cache,
		styles:   styles,
		currency: currency,
		now:      time.Now,
	}
}

func (s *InsightsService) MapPins(ctx context.Context) ([]MapPin, error) {
	listings, err := s.store.ListMapListings(ctx, mapPinLimit)
	if err != nil {
		return nil, fmt.Errorf("list map listings: %w", err)
	}

	pins := make([]MapPin, 0, len(listings))
	for _, l := range listings {
		if !l.HasAreaCoordinates() {
			continue
		}
		pins = append(pins, MapPin{
			ID:        l.ID,
			Title:     l.Title,
			Lat:       *l.AreaLat,
			Lng:       *l.AreaLng,
			Price:     pricing.FormatPrice(s.currency, l.Price),
			AreaName:  l.AreaLabel(),
			ImageURL:  l.MainImageURL,
			DetailURL: "/properties/" + l.ID.String() + "/",
		})
	}
	return pins, nil
}

// NearbyAmenities ranks the amenities closest to a listing.
func (s *InsightsService) NearbyAmenities(ctx context.Context, listingID uuid.UUID) ([]AmenityMarker, error) {
	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	if l == nil {
		return nil, apperr.NotFound("listing not found")
	}
	if !l.HasCoordinates() {
		return []AmenityMarker{}, nil
	}

	amenities, err := s.store.ListAmenitiesWithCoordinates(ctx)
	if err != nil {
		log.Warn().Err(err).Str("listing_id", listingID.String()).Msg("nearby amenities unavailable")
		return []AmenityMarker{}, nil
	}

	ranked := geo.Nearest(l, amenities, geo.DefaultNearest)
	markers := make([]AmenityMarker, 0, len(ranked))
	for _, r := range ranked {
		m := s.marker(r.Amenity)
		d := geo.RoundKm(r.DistanceKm, 2)
		m.DistanceKm = &d
		markers = append(markers, m)
	}
	return markers, nil
}

// AreaAmenities returns the mapped amenities of an area.
func (s *InsightsService) AreaAmenities(ctx context.Context, areaID int64) ([]AmenityMarker, error) {
	amenities, err := s.store.ListAmenitiesForArea(ctx, areaID)
	if err != nil {
		log.Warn().Err(err).Int64("area_id", areaID).Msg("area amenities unavailable")
		return []AmenityMarker{}, nil
	}

	markers := make([]AmenityMarker, 0, len(amenities))
	for _, a := range amenities {
		if !a.HasCoordinates() {
			continue
		}
		markers = append(markers, s.marker(a))
	}
	return markers, nil
}

func (s *InsightsService) marker(a models.Amenity) AmenityMarker {
	style := s.styles.For(a.Category)
	return AmenityMarker{
		Name:  a.Name,
		Type:  a.Category,
		Lat:   *a.Lat,
		Lng:   *a.Lng,
		Icon:  style.Icon,
		Color: style.Color,
	}
}

// PriceTrend returns the monthly price-per-square-foot series of an area.
// Results are cached for an hour.
func (s *InsightsService) PriceTrend(ctx context.Context, areaID int64) (*AreaTrend, error) {
	area, err := s.store.GetArea(ctx, areaID)
	if err != nil {
		return nil, fmt.Errorf("get area: %w", err)
	}
	if area == nil {
		return nil, apperr.NotFound("area not found")
	}

	now := s.now().UTC()
	key := "trend:" + identity.Fingerprint(strconv.FormatInt(areaID, 10), now.Format("2006-01"))

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err != nil {
			log.Warn().Err(err).Msg("trend cache read failed")
		} else if raw != nil {
			var trend pricing.Trend
			if err := json.Unmarshal(raw, &trend); err == nil {
				return &AreaTrend{Area: *area, Trend: trend}, nil
			}
		}
	}

	since := now.AddDate(0, -pricing.TrendMonths, 0)
	sold, err := s.store.ListSoldListingsForArea(ctx, areaID, since)
	if err != nil {
		log.Warn().Err(err).Int64("area_id", areaID).Msg("price trend unavailable")
		return &AreaTrend{Area: *area, Trend: pricing.Trend{Points: []pricing.TrendPoint{}}}, nil
	}

	trend := pricing.MonthlyTrend(sold, now)
	if trend.UnknownUnits > 0 {
		log.Warn().
			Int64("area_id", areaID).
			Int("listings", trend.UnknownUnits).
			Msg("price trend includes listings with unknown area units; sizes used as square feet")
	}

	if s.cache != nil {
		if raw, err := json.Marshal(trend); err == nil {
			if err := s.cache.Set(ctx, key, raw, trendCacheTTL); err != nil {
				log.Warn().Err(err).Msg("trend cache write failed")
			}
		}
	}

	return &AreaTrend{Area: *area, Trend: trend}, nil
}

package geo

import (
	"math"
	"sort"

	"propwise/models"
)

const earthRadiusKm = 6371.0

// DefaultNearest is how many amenities a listing page shows.
const DefaultNearest = 5

// Haversine returns the great-circle distance in kilometres between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLon := degreesToRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(degreesToRadians(lat1))*math.Cos(degreesToRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

type Ranked struct {
	Amenity    models.Amenity `json:"amenity"`
	DistanceKm float64        `json:"distance_km"`
}

// Nearest returns up to k amenities closest to the listing, nearest first.
// Amenities without coordinates are skipped; a listing without coordinates
// yields no results. Equal distances are ordered by amenity ID.
func Nearest(l *models.Listing, amenities []models.Amenity, k int) []Ranked {
	if l == nil || !l.HasCoordinates() || k <= 0 {
		return []Ranked{}
	}

	ranked := make([]Ranked, 0, len(amenities))
	for _, a := range amenities {
		if !a.HasCoordinates() {
			continue
		}
		ranked = append(ranked, Ranked{
			Amenity:    a,
			DistanceKm: Haversine(*l.Lat, *l.Lng, *a.Lat, *a.Lng),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].DistanceKm != ranked[j].DistanceKm {
			return ranked[i].DistanceKm < ranked[j].DistanceKm
		}
		return ranked[i].Amenity.ID < ranked[j].Amenity.ID
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// RoundKm rounds a distance for display.
func RoundKm(km float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(km*p) / p
}

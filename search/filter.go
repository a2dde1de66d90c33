package search

import (
	"net/url"
	"strconv"
	"strings"

	"propwise/apperr"
	"propwise/models"
)

// Filter is the user-facing search form. It backs both the live listing
// search and saved-search creation.
type Filter struct {
	Keyword      *string
	CityID       *int64
	PropertyType *models.PropertyType
	Purpose      *models.PropertyPurpose
	MinPrice     *int64
	MaxPrice     *int64
	MinBedrooms  *int
	MaxBedrooms  *int
}

// ParseFilter reads a filter from query/form values. Malformed numbers are
// dropped rather than rejected; unknown enum values are a validation error.
func ParseFilter(v url.Values) (Filter, error) {
	var f Filter

	if kw := strings.TrimSpace(v.Get("keyword")); kw != "" {
		f.Keyword = &kw
	}
	f.CityID = parseInt64(v.Get("city"))
	f.MinPrice = parsePrice(v.Get("price_min"))
	f.MaxPrice = parsePrice(v.Get("price_max"))
	f.MinBedrooms = parseInt(v.Get("bedrooms_min"))
	f.MaxBedrooms = parseInt(v.Get("bedrooms_max"))

	if raw := strings.TrimSpace(v.Get("property_type")); raw != "" {
		t := models.PropertyType(strings.ToLower(raw))
		if !t.Valid() {
			return Filter{}, apperr.Validation("unknown property type " + strconv.Quote(raw))
		}
		f.PropertyType = &t
	}
	if raw := strings.TrimSpace(v.Get("purpose")); raw != "" {
		p := models.PropertyPurpose(strings.ToLower(raw))
		if !p.Valid() {
			return Filter{}, apperr.Validation("unknown purpose " + strconv.Quote(raw))
		}
		f.Purpose = &p
	}

	return f, nil
}

// Predicate returns the filter's conditions without a creation-time anchor.
func (f Filter) Predicate() Predicate {
	var p Predicate
	if f.CityID != nil {
		p.conds = append(p.conds, cityIs{*f.CityID})
	}
	if f.Keyword != nil {
		p.conds = append(p.conds, titleContains{*f.Keyword})
	}
	if f.PropertyType != nil {
		p.conds = append(p.conds, typeIs{*f.PropertyType})
	}
	if f.Purpose != nil {
		p.conds = append(p.conds, purposeIs{*f.Purpose})
	}
	if f.MinPrice != nil {
		p.conds = append(p.conds, priceAtLeast{*f.MinPrice})
	}
	if f.MaxPrice != nil {
		p.conds = append(p.conds, priceAtMost{*f.MaxPrice})
	}
	if f.MinBedrooms != nil {
		p.conds = append(p.conds, bedroomsAtLeast{*f.MinBedrooms})
	}
	if f.MaxBedrooms != nil {
		p.conds = append(p.conds, bedroomsAtMost{*f.MaxBedrooms})
	}
	return p
}

// Criteria copies the filter onto a saved search. Max bedrooms is not part
// of saved criteria.
func (f Filter) Criteria(s *models.SavedSearch) {
	s.Keyword = f.Keyword
	s.CityID = f.CityID
	s.PropertyType = f.PropertyType
	s.Purpose = f.Purpose
	s.MinPrice = f.MinPrice
	s.MaxPrice = f.MaxPrice
	s.MinBedrooms = f.MinBedrooms
}

// parsePrice accepts thousands separators ("5,000,000").
func parsePrice(raw string) *int64 {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	return parseInt64(raw)
}

func parseInt64(raw string) *int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func parseInt(raw string) *int {
	n := parseInt64(raw)
	if n == nil {
		return nil
	}
	i := int(*n)
	return &i
}
